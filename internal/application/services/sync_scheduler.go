package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
)

const scheduledSyncTimeout = 10 * time.Minute

// ScopeSyncer runs one geodata import.
type ScopeSyncer interface {
	Sync(ctx context.Context, scope providers.SyncScope) (*SyncReport, error)
}

// SyncScheduler imports geodata for a fixed list of provinces on a cron
// schedule. Runs never overlap.
type SyncScheduler struct {
	cron      *cron.Cron
	syncer    ScopeSyncer
	provinces []string
}

// NewSyncScheduler validates spec and registers the job. Nothing runs until
// Start.
func NewSyncScheduler(syncer ScopeSyncer, spec string, provinces []string) (*SyncScheduler, error) {
	s := &SyncScheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		syncer:    syncer,
		provinces: provinces,
	}
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *SyncScheduler) Start() {
	s.cron.Start()
	observability.GetLogger().Info().Strs("provinces", s.provinces).Msg("geodata sync schedule started")
}

// Stop stops the schedule and waits for a running import.
func (s *SyncScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *SyncScheduler) runOnce() {
	s.run(context.Background())
}

// run imports every province in turn. One failing province does not stop the
// others.
func (s *SyncScheduler) run(ctx context.Context) {
	logger := observability.GetLogger()
	for _, province := range s.provinces {
		runCtx, cancel := context.WithTimeout(ctx, scheduledSyncTimeout)
		report, err := s.syncer.Sync(runCtx, providers.SyncScope{Province: province, Persist: true})
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("province", province).Msg("scheduled geodata sync failed")
			continue
		}
		logger.Info().Str("province", province).Int("imported", report.Imported).Msg("scheduled geodata sync done")
	}
}
