package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/domain/repositories"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

// Warning codes returned alongside results.
const (
	WarningLocationUnavailable = "location_unavailable"
	WarningUnknownSortKey      = "unknown_sort_key"
	WarningSourceUnavailable   = "source_unavailable"
)

// LoadCauseRemote marks loads triggered by another instance's reload.
const LoadCauseRemote = "remote"

type loadCauseKey struct{}

// WithLoadCause tags loads run under ctx. The cause is echoed in the
// directory_reloaded event details.
func WithLoadCause(ctx context.Context, cause string) context.Context {
	return context.WithValue(ctx, loadCauseKey{}, cause)
}

func loadCause(ctx context.Context) string {
	cause, _ := ctx.Value(loadCauseKey{}).(string)
	return cause
}

// Warning is a non-blocking notice attached to a load or a search.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DirectoryOptions tunes a DirectoryService.
type DirectoryOptions struct {
	Locale               string
	DefaultMaxDistanceKm float64
	LoadTimeout          time.Duration
}

// DirectoryDeps are the collaborators of a DirectoryService. Only Sources is
// required.
type DirectoryDeps struct {
	Sources    []repositories.ProviderSource
	SearchRepo repositories.ProviderSearchRepository
	EventBus   providers.EventBus
	Metrics    *observability.DirectoryMetrics
}

// LoadReport summarizes one aggregation run. Superseded is set when a newer
// load committed first and this run's result was discarded.
type LoadReport struct {
	Version       uint64        `json:"version"`
	Count         int           `json:"count"`
	Dropped       int           `json:"dropped"`
	FailedSources []string      `json:"failed_sources,omitempty"`
	Warnings      []Warning     `json:"warnings,omitempty"`
	Superseded    bool          `json:"superseded,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// SearchQuery is a search request against the current aggregate.
type SearchQuery struct {
	Filter       FilterSpec
	Sort         string
	UserLocation *entities.Coordinates
}

// SearchResult is an ordered list of providers with the aggregate version
// it was computed from.
type SearchResult struct {
	Providers []entities.ProviderResult `json:"providers"`
	Total     int                       `json:"total"`
	Version   uint64                    `json:"version"`
	Sort      SortKey                   `json:"sort"`
	Warnings  []Warning                 `json:"warnings,omitempty"`
}

type directorySnapshot struct {
	version   uint64
	providers []entities.Provider
	byID      map[string]int
	loadedAt  time.Time
}

// DirectoryService builds the provider aggregate from every source and
// answers searches over it.
type DirectoryService struct {
	sources    []repositories.ProviderSource
	normalizer *ProviderNormalizer
	dedup      *ProviderDeduplicator
	filter     *ProviderFilter
	searchRepo repositories.ProviderSearchRepository
	eventBus   providers.EventBus
	metrics    *observability.DirectoryMetrics
	opts       DirectoryOptions

	tokens  atomic.Uint64
	current atomic.Pointer[directorySnapshot]
}

// NewDirectoryService creates a directory service. Sources are consulted in
// priority order, highest first.
func NewDirectoryService(deps DirectoryDeps, opts DirectoryOptions) *DirectoryService {
	sources := append([]repositories.ProviderSource(nil), deps.Sources...)
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Source().Priority() > sources[j].Source().Priority()
	})
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	if opts.Locale == "" {
		opts.Locale = "fr"
	}

	return &DirectoryService{
		sources:    sources,
		normalizer: NewProviderNormalizer(),
		dedup:      NewProviderDeduplicator(),
		filter:     NewProviderFilter(opts.Locale, opts.DefaultMaxDistanceKm),
		searchRepo: deps.SearchRepo,
		eventBus:   deps.EventBus,
		metrics:    deps.Metrics,
		opts:       opts,
	}
}

type sourceFetch struct {
	source  entities.Source
	records []entities.RawRecord
	err     error
}

// Load rebuilds the aggregate. A failing source is skipped with a warning;
// when every source fails the previous aggregate is kept and an EXTERNAL
// error is returned. A load that finishes after a newer one has committed
// is discarded.
func (s *DirectoryService) Load(ctx context.Context) (*LoadReport, error) {
	token := s.tokens.Add(1)
	started := time.Now()
	logger := observability.LoggerFromContext(ctx).With().Uint64("version", token).Logger()

	ctx, span := observability.StartSpan(ctx, "DirectoryService.Load")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()

	// 1. Fetch every source concurrently
	fetches := s.fetchAll(ctx)

	report := &LoadReport{Version: token}
	var records []entities.RawRecord
	for _, f := range fetches {
		if f.err != nil {
			logger.Warn().Err(f.err).Str("source", string(f.source)).Msg("provider source failed")
			s.metrics.ObserveSourceFailure(string(f.source))
			report.FailedSources = append(report.FailedSources, string(f.source))
			report.Warnings = append(report.Warnings, Warning{
				Code:    WarningSourceUnavailable,
				Message: fmt.Sprintf("%s providers are temporarily unavailable", f.source),
			})
			continue
		}
		records = append(records, f.records...)
	}

	if len(s.sources) > 0 && len(report.FailedSources) == len(s.sources) {
		s.metrics.ObserveDuration("load", "error", time.Since(started).Seconds())
		err := apperrors.NewExternalError("all provider sources failed", fmt.Errorf("sources: %s", strings.Join(report.FailedSources, ", ")))
		observability.RecordError(span, err)
		return nil, err
	}

	// 2. Normalize, dropping records that cannot be mapped
	normalized, failures := s.normalizer.NormalizeAll(records)
	dropped := make(map[entities.Source]int)
	for _, f := range failures {
		logger.Warn().
			Str("source", string(f.Source)).
			Str("record_id", f.RecordID).
			Str("reason", f.Reason).
			Msg("dropping provider record")
		dropped[f.Source]++
	}
	for src, n := range dropped {
		s.metrics.ObserveDropped(string(src), n)
	}
	report.Dropped = len(failures)

	// 3. Deduplicate across sources
	aggregate := s.dedup.Deduplicate(normalized)
	report.Count = len(aggregate)

	// 4. Commit unless a newer load already did
	snap := newSnapshot(token, aggregate)
	if !s.commit(snap) {
		logger.Info().Msg("discarding superseded directory load")
		s.metrics.ObserveStaleLoad()
		report.Superseded = true
		report.Duration = time.Since(started)
		return report, nil
	}

	report.Duration = time.Since(started)
	s.metrics.SetAggregateSize(len(aggregate))
	s.metrics.ObserveDuration("load", "ok", report.Duration.Seconds())
	observability.SetSpanAttributes(span,
		attribute.Int64("directory.version", int64(token)),
		attribute.Int("directory.count", len(aggregate)),
		attribute.Int("directory.dropped", report.Dropped),
	)
	logger.Info().
		Int("count", report.Count).
		Int("dropped", report.Dropped).
		Strs("failed_sources", report.FailedSources).
		Dur("duration", report.Duration).
		Msg("directory loaded")

	// 5. Refresh the suggest index and notify subscribers
	s.afterCommit(context.WithoutCancel(ctx), snap)

	return report, nil
}

func (s *DirectoryService) fetchAll(ctx context.Context) []sourceFetch {
	results := make([]sourceFetch, len(s.sources))
	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src repositories.ProviderSource) {
			defer wg.Done()
			records, err := src.Fetch(ctx)
			results[i] = sourceFetch{source: src.Source(), records: records, err: err}
		}(i, src)
	}
	wg.Wait()
	return results
}

// commit installs snap unless the current snapshot is newer.
func (s *DirectoryService) commit(snap *directorySnapshot) bool {
	for {
		cur := s.current.Load()
		if cur != nil && cur.version > snap.version {
			return false
		}
		if s.current.CompareAndSwap(cur, snap) {
			return true
		}
	}
}

func (s *DirectoryService) afterCommit(ctx context.Context, snap *directorySnapshot) {
	logger := observability.LoggerFromContext(ctx)

	if s.searchRepo != nil {
		if err := s.searchRepo.IndexAll(ctx, snap.providers); err != nil {
			logger.Warn().Err(err).Uint64("version", snap.version).Msg("failed to index directory")
		}
	}

	if s.eventBus != nil {
		var details map[string]interface{}
		if cause := loadCause(ctx); cause != "" {
			details = map[string]interface{}{"cause": cause}
		}
		event := entities.NewDirectoryEvent(entities.DirectoryEventReloaded, snap.version, len(snap.providers), details)
		if err := s.eventBus.Publish(ctx, providers.EventChannelDirectory, event); err != nil {
			logger.Warn().Err(err).Msg("failed to publish directory event")
		}
	}
}

func newSnapshot(version uint64, aggregate []entities.Provider) *directorySnapshot {
	byID := make(map[string]int, len(aggregate))
	for i, p := range aggregate {
		byID[p.ID] = i
	}
	return &directorySnapshot{
		version:   version,
		providers: aggregate,
		byID:      byID,
		loadedAt:  time.Now().UTC(),
	}
}

// ensureLoaded returns the current snapshot, loading it on first use.
func (s *DirectoryService) ensureLoaded(ctx context.Context) (*directorySnapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	if _, err := s.Load(ctx); err != nil {
		return nil, err
	}
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	return nil, apperrors.NewInternalError("directory is not loaded", nil)
}

// Search filters and sorts the current aggregate.
func (s *DirectoryService) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	ctx, span := observability.StartSpan(ctx, "DirectoryService.Search")
	defer span.End()

	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	result := &SearchResult{Version: snap.version}

	key, ok := ParseSortKey(q.Sort)
	if !ok {
		observability.LoggerFromContext(ctx).Warn().Str("sort", q.Sort).Msg("unknown sort key, using name-asc")
		result.Warnings = append(result.Warnings, Warning{
			Code:    WarningUnknownSortKey,
			Message: fmt.Sprintf("unknown sort %q, sorted by name", q.Sort),
		})
	}
	result.Sort = key
	s.metrics.ObserveSearch(string(key))

	outcome := s.filter.Apply(snap.providers, q.Filter, key, q.UserLocation)
	if outcome.LocationMissing {
		result.Warnings = append(result.Warnings, Warning{
			Code:    WarningLocationUnavailable,
			Message: "your location is unavailable, nearby search needs it",
		})
	}
	result.Providers = outcome.Results
	result.Total = len(outcome.Results)

	observability.SetSpanAttributes(span,
		attribute.Int("directory.results", result.Total),
		attribute.String("directory.sort", string(key)),
	)
	return result, nil
}

// Get returns one provider of the current aggregate.
func (s *DirectoryService) Get(ctx context.Context, id string) (*entities.Provider, error) {
	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	idx, ok := snap.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("provider %s not found", id))
	}
	p := snap.providers[idx]
	return &p, nil
}

// Suggest returns up to limit providers whose name starts with query. The
// search index is used when configured; otherwise, or when it fails, the
// aggregate is scanned.
func (s *DirectoryService) Suggest(ctx context.Context, query string, limit int) ([]entities.Provider, error) {
	if limit <= 0 {
		limit = 10
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []entities.Provider{}, nil
	}
	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	if s.searchRepo != nil {
		ids, err := s.searchRepo.Suggest(ctx, query, limit)
		if err == nil {
			out := make([]entities.Provider, 0, len(ids))
			for _, id := range ids {
				if idx, ok := snap.byID[id]; ok {
					out = append(out, snap.providers[idx])
				}
			}
			return out, nil
		}
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("suggest index unavailable, scanning aggregate")
	}

	q := strings.ToLower(query)
	out := make([]entities.Provider, 0, limit)
	for _, p := range snap.providers {
		if strings.HasPrefix(strings.ToLower(p.Name), q) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Snapshot returns a copy of the current aggregate and its version. The
// aggregate is empty before the first load.
func (s *DirectoryService) Snapshot() ([]entities.Provider, uint64) {
	snap := s.current.Load()
	if snap == nil {
		return []entities.Provider{}, 0
	}
	return append([]entities.Provider(nil), snap.providers...), snap.version
}

// Version returns the committed aggregate version, 0 before the first load.
func (s *DirectoryService) Version() uint64 {
	if snap := s.current.Load(); snap != nil {
		return snap.version
	}
	return 0
}

// Reindex pushes the current aggregate to the search index.
func (s *DirectoryService) Reindex(ctx context.Context) (int, error) {
	if s.searchRepo == nil {
		return 0, apperrors.NewValidationError("search index is not configured")
	}
	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.searchRepo.InitSchema(ctx); err != nil {
		return 0, apperrors.NewExternalError("failed to prepare search index", err)
	}
	if err := s.searchRepo.IndexAll(ctx, snap.providers); err != nil {
		return 0, apperrors.NewExternalError("failed to index providers", err)
	}
	return len(snap.providers), nil
}
