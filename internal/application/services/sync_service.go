package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

// DirectoryLoader rebuilds the directory aggregate.
type DirectoryLoader interface {
	Load(ctx context.Context) (*LoadReport, error)
}

// SourceInvalidator drops cached source records.
type SourceInvalidator interface {
	Invalidate(ctx context.Context) error
}

// SyncReport is the outcome of a geodata sync.
type SyncReport struct {
	Imported int         `json:"imported"`
	Message  string      `json:"message,omitempty"`
	Load     *LoadReport `json:"load,omitempty"`
}

// SyncService imports external geodata and refreshes the directory.
type SyncService struct {
	syncer    providers.GeodataSyncProvider
	directory DirectoryLoader
	eventBus  providers.EventBus
	metrics   *observability.DirectoryMetrics
	caches    []SourceInvalidator
}

// NewSyncService creates a new sync service
func NewSyncService(syncer providers.GeodataSyncProvider, directory DirectoryLoader, eventBus providers.EventBus, metrics *observability.DirectoryMetrics) *SyncService {
	return &SyncService{
		syncer:    syncer,
		directory: directory,
		eventBus:  eventBus,
		metrics:   metrics,
	}
}

// WithInvalidators registers caches that must be dropped before a reload
// following a persisted import.
func (s *SyncService) WithInvalidators(caches ...SourceInvalidator) *SyncService {
	s.caches = append(s.caches, caches...)
	return s
}

// Sync imports providers for scope. On failure the current aggregate is left
// untouched and a directory_sync_failed event is published. When the import
// was persisted the directory is reloaded.
func (s *SyncService) Sync(ctx context.Context, scope providers.SyncScope) (*SyncReport, error) {
	scope.Province = strings.TrimSpace(scope.Province)
	scope.City = strings.TrimSpace(scope.City)
	if scope.Province == "" {
		return nil, apperrors.NewValidationError("province is required")
	}

	ctx, span := observability.StartSpan(ctx, "SyncService.Sync")
	defer span.End()
	logger := observability.LoggerFromContext(ctx).With().
		Str("province", scope.Province).
		Str("city", scope.City).
		Bool("persist", scope.Persist).
		Logger()

	started := time.Now()
	result, err := s.syncer.Sync(ctx, scope)
	if err != nil {
		s.metrics.ObserveDuration("sync", "error", time.Since(started).Seconds())
		observability.RecordError(span, err)
		logger.Error().Err(err).Msg("geodata sync failed")
		s.publishFailure(ctx, scope, err)

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.NewExternalError("geodata sync failed", err)
	}
	s.metrics.ObserveDuration("sync", "ok", time.Since(started).Seconds())
	logger.Info().Int("imported", result.Imported).Msg("geodata sync completed")

	report := &SyncReport{Imported: result.Imported, Message: result.Message}
	if !scope.Persist {
		return report, nil
	}

	for _, c := range s.caches {
		if err := c.Invalidate(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to invalidate source cache")
		}
	}

	load, err := s.directory.Load(ctx)
	if err != nil {
		return report, err
	}
	report.Load = load
	return report, nil
}

func (s *SyncService) publishFailure(ctx context.Context, scope providers.SyncScope, cause error) {
	if s.eventBus == nil {
		return
	}
	event := entities.NewDirectoryEvent(entities.DirectoryEventSyncFailed, 0, 0, map[string]interface{}{
		"province": scope.Province,
		"city":     scope.City,
		"reason":   apperrors.UserMessage(cause),
	})
	if err := s.eventBus.Publish(context.WithoutCancel(ctx), providers.EventChannelDirectory, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to publish sync failure event")
	}
}
