package entities

import (
	"time"

	"github.com/google/uuid"
)

// DirectoryEventType represents the type of directory event
type DirectoryEventType string

const (
	DirectoryEventReloaded             DirectoryEventType = "directory_reloaded"
	DirectoryEventSyncFailed           DirectoryEventType = "directory_sync_failed"
	DirectoryEventEstablishmentChanged DirectoryEventType = "establishment_changed"
)

// DirectoryEvent tells subscribed clients that the aggregate changed and
// should be re-fetched. Origin identifies the publishing API instance.
type DirectoryEvent struct {
	ID        string                 `json:"id"`
	Type      DirectoryEventType     `json:"type"`
	Version   uint64                 `json:"version,omitempty"`
	Count     int                    `json:"count,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Origin    string                 `json:"origin,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// NewDirectoryEvent creates a new directory event
func NewDirectoryEvent(eventType DirectoryEventType, version uint64, count int, details map[string]interface{}) *DirectoryEvent {
	return &DirectoryEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Version:   version,
		Count:     count,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}
}
