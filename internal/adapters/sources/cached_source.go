package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/domain/repositories"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
)

// CachedSource wraps a ProviderSource with a cache of its raw records.
// Cache failures never fail a fetch.
type CachedSource struct {
	source  repositories.ProviderSource
	cache   providers.CacheProvider
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedSource creates a cached source. metrics may be nil.
func NewCachedSource(source repositories.ProviderSource, cache providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{source: source, cache: cache, ttl: ttl, metrics: metrics}
}

var _ repositories.ProviderSource = (*CachedSource)(nil)

func sourceCacheKey(src entities.Source) string {
	return fmt.Sprintf("source:%s:records", src)
}

// Source returns the wrapped source's tag.
func (s *CachedSource) Source() entities.Source {
	return s.source.Source()
}

// Fetch serves cached records when present, otherwise fetches and stores them.
func (s *CachedSource) Fetch(ctx context.Context) ([]entities.RawRecord, error) {
	src := s.source.Source()
	key := sourceCacheKey(src)
	logger := observability.LoggerFromContext(ctx)

	cached, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		records, decodeErr := decodeCached(cached)
		if decodeErr == nil {
			observability.RecordCacheHit(ctx, s.metrics, string(src))
			return records, nil
		}
		logger.Warn().Err(decodeErr).Str("source", string(src)).Msg("discarding unreadable cached records")
	case errors.Is(err, providers.ErrCacheMiss):
	default:
		logger.Warn().Err(err).Str("source", string(src)).Msg("source cache unavailable")
	}
	observability.RecordCacheMiss(ctx, s.metrics, string(src))

	records, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	observability.RecordSourceFetch(ctx, s.metrics, string(src), len(records))

	if data, err := json.Marshal(records); err == nil {
		if err := s.cache.Set(ctx, key, data, int(s.ttl.Seconds())); err != nil {
			logger.Warn().Err(err).Str("source", string(src)).Msg("failed to cache source records")
		}
	}
	return records, nil
}

func decodeCached(data []byte) ([]entities.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []entities.RawRecord
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

// Invalidate drops the cached records so the next fetch reads the origin.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, sourceCacheKey(s.source.Source()))
}
