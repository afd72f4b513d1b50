package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
)

const remoteReloadTimeout = time.Minute

// ReplicaRefreshService keeps this instance's aggregate in step with other
// API instances. When a peer commits a new aggregate, this instance reloads
// too. Reloads it triggers are tagged LoadCauseRemote and are not followed.
type ReplicaRefreshService struct {
	eventBus  providers.EventBus
	directory DirectoryLoader
	origin    string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReplicaRefreshService creates a refresher. origin is the identity this
// instance stamps on its own events.
func NewReplicaRefreshService(eventBus providers.EventBus, directory DirectoryLoader, origin string) *ReplicaRefreshService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ReplicaRefreshService{
		eventBus:  eventBus,
		directory: directory,
		origin:    origin,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start begins listening for directory events.
func (s *ReplicaRefreshService) Start() error {
	events, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelDirectory)
	if err != nil {
		close(s.done)
		return fmt.Errorf("failed to subscribe to directory events: %w", err)
	}

	go s.processEvents(events)
	observability.GetLogger().Info().Str("origin", s.origin).Msg("replica refresh started")
	return nil
}

// Stop stops listening and waits for an in-flight reload to finish.
func (s *ReplicaRefreshService) Stop() {
	s.cancel()
	<-s.done
}

func (s *ReplicaRefreshService) processEvents(events <-chan *entities.DirectoryEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if s.shouldReload(event) {
				s.reload(event)
			}
		}
	}
}

func (s *ReplicaRefreshService) shouldReload(event *entities.DirectoryEvent) bool {
	if event == nil || event.Type != entities.DirectoryEventReloaded {
		return false
	}
	if event.Origin == "" || event.Origin == s.origin {
		return false
	}
	cause, _ := event.Details["cause"].(string)
	return cause != LoadCauseRemote
}

func (s *ReplicaRefreshService) reload(event *entities.DirectoryEvent) {
	ctx, cancel := context.WithTimeout(WithLoadCause(s.ctx, LoadCauseRemote), remoteReloadTimeout)
	defer cancel()

	logger := observability.GetLogger().With().
		Str("peer", event.Origin).
		Uint64("peer_version", event.Version).
		Logger()

	report, err := s.directory.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("reload after peer update failed")
		return
	}
	logger.Info().Uint64("version", report.Version).Int("count", report.Count).Msg("reloaded after peer update")
}
