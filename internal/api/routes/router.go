package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zatekoja/cartosante/internal/api/handlers"
	"github.com/zatekoja/cartosante/internal/api/loaders"
	"github.com/zatekoja/cartosante/internal/api/middleware"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
)

// Handlers groups the route handlers. Nil handlers leave their routes
// unregistered.
type Handlers struct {
	Provider      *handlers.ProviderHandler
	Admin         *handlers.AdminHandler
	Establishment *handlers.EstablishmentHandler
	Auth          *handlers.AuthHandler
	SSE           *handlers.SSEHandler
	Health        *handlers.HealthHandler
}

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	handlers      Handlers
	authenticator middleware.Authenticator
	establishment loaders.EstablishmentFetcher

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	gatherer        prometheus.Gatherer
	allowedOrigins  []string
}

// Options configures the optional parts of a Router.
type Options struct {
	CacheMiddleware *middleware.CacheMiddleware
	Metrics         *observability.Metrics
	// Gatherer backs GET /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Establishments feeds the per-request establishment loaders.
	Establishments loaders.EstablishmentFetcher
	// AllowedOrigins limits CORS; empty allows any origin.
	AllowedOrigins []string
}

// NewRouter creates a new router
func NewRouter(h Handlers, authenticator middleware.Authenticator, opts Options) *Router {
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Router{
		mux:             http.NewServeMux(),
		handlers:        h,
		authenticator:   authenticator,
		establishment:   opts.Establishments,
		cacheMiddleware: opts.CacheMiddleware,
		metrics:         opts.Metrics,
		gatherer:        gatherer,
		allowedOrigins:  origins,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	if r.handlers.Health != nil {
		r.mux.HandleFunc("GET /health", r.handlers.Health.Health)
	}
	r.mux.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))

	// Public directory
	if p := r.handlers.Provider; p != nil {
		r.mux.HandleFunc("GET /api/providers", p.SearchProviders)
		r.mux.HandleFunc("GET /api/providers.geojson", p.ExportGeoJSON)
		r.mux.HandleFunc("GET /api/providers/suggest", p.SuggestProviders)
		r.mux.HandleFunc("GET /api/providers/{id}", p.GetProvider)
	}

	if s := r.handlers.SSE; s != nil {
		r.mux.HandleFunc("GET /api/stream/directory", s.StreamDirectoryUpdates)
	}

	// Authentication
	if a := r.handlers.Auth; a != nil {
		r.mux.HandleFunc("POST /api/auth/sign-in", a.SignIn)
		r.mux.HandleFunc("POST /api/auth/sign-out", a.SignOut)
		r.mux.Handle("GET /api/patient/session", r.patient(a.PatientSession))
	}

	// Admin
	if a := r.handlers.Admin; a != nil {
		r.mux.Handle("POST /api/admin/directory/reload", r.admin(a.ReloadDirectory))
		r.mux.Handle("POST /api/admin/directory/sync", r.admin(a.SyncGeodata))
		r.mux.Handle("POST /api/admin/directory/reindex", r.admin(a.ReindexDirectory))
	}

	if e := r.handlers.Establishment; e != nil {
		r.mux.Handle("GET /api/admin/establishments", r.admin(e.ListEstablishments))
		r.mux.Handle("POST /api/admin/establishments", r.admin(e.CreateEstablishment))
		r.mux.Handle("GET /api/admin/establishments/{id}", r.admin(e.GetEstablishment))
		r.mux.Handle("PATCH /api/admin/establishments/{id}", r.admin(e.UpdateEstablishment))
		r.mux.Handle("DELETE /api/admin/establishments/{id}", r.admin(e.DeactivateEstablishment))
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORS(r.allowedOrigins)(handler)

	return handler
}

func (r *Router) admin(fn http.HandlerFunc) http.Handler {
	var h http.Handler = fn
	if r.establishment != nil {
		h = loaders.Middleware(r.establishment)(h)
	}
	return middleware.RequireAdmin(r.authenticator)(h)
}

func (r *Router) patient(fn http.HandlerFunc) http.Handler {
	return middleware.RequirePatient(r.authenticator)(fn)
}
