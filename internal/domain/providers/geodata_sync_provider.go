package providers

import "context"

// SyncScope selects the area imported by a geodata sync.
type SyncScope struct {
	Province string `json:"province"`
	City     string `json:"city,omitempty"`
	Persist  bool   `json:"persist"`
}

// SyncResult is the outcome reported by the remote sync function.
type SyncResult struct {
	Imported int    `json:"imported"`
	Message  string `json:"message,omitempty"`
}

// GeodataSyncProvider is the remote callable that fetches and optionally
// persists external provider records.
type GeodataSyncProvider interface {
	Sync(ctx context.Context, scope SyncScope) (*SyncResult, error)
}
