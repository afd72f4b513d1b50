package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
)

// cacheableReads maps directory read paths to their response TTL in seconds.
var cacheableReads = map[string]int{
	"/api/providers":         300,
	"/api/providers.geojson": 300,
	"/api/providers/suggest": 120,
}

// CacheMiddleware caches GET responses in Redis. Keys include the aggregate
// version, so a reload makes every earlier entry unreachable. Versions are
// counted per process, so keys are also scoped to the instance that owns
// the counter.
type CacheMiddleware struct {
	cache    providers.CacheProvider
	instance string
	version  func() uint64
}

// NewCacheMiddleware creates a cache middleware for the directory read routes.
// instance must be unique among processes sharing the cache.
func NewCacheMiddleware(cache providers.CacheProvider, instance string, version func() uint64) *CacheMiddleware {
	return &CacheMiddleware{cache: cache, instance: instance, version: version}
}

func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ttl, ok := cacheableReads[r.URL.Path]
		if !ok || r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}
		// nothing is cached until the first aggregate is committed
		version := m.version()
		if version == 0 {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := responseKey(r, m.instance, version)
		if body, err := m.cache.Get(ctx, key); err == nil {
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", readContentType(r.URL.Path))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}

		w.Header().Set("X-Cache", "MISS")
		tee := &teeWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(tee, r)
		if tee.status != http.StatusOK || tee.body.Len() == 0 {
			return
		}
		if err := m.cache.Set(ctx, key, tee.body.Bytes(), ttl); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to cache response")
		}
	})
}

// responseKey hashes the path and the canonical (sorted) query string.
func responseKey(r *http.Request, instance string, version uint64) string {
	sum := sha256.Sum256([]byte(r.URL.Path + "?" + r.URL.Query().Encode()))
	return "http:cache:" + instance + ":v" + strconv.FormatUint(version, 10) + ":" + hex.EncodeToString(sum[:])
}

func readContentType(path string) string {
	if strings.HasSuffix(path, ".geojson") {
		return "application/geo+json"
	}
	return "application/json"
}

// teeWriter forwards the response and keeps a copy of the body.
type teeWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (t *teeWriter) WriteHeader(status int) {
	if t.wroteHeader {
		return
	}
	t.wroteHeader = true
	t.status = status
	t.ResponseWriter.WriteHeader(status)
}

func (t *teeWriter) Write(p []byte) (int, error) {
	t.WriteHeader(http.StatusOK)
	t.body.Write(p)
	return t.ResponseWriter.Write(p)
}
