package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zatekoja/cartosante/internal/adapters/cache"
	"github.com/zatekoja/cartosante/internal/adapters/database"
	"github.com/zatekoja/cartosante/internal/adapters/events"
	"github.com/zatekoja/cartosante/internal/adapters/providers/auth"
	"github.com/zatekoja/cartosante/internal/adapters/providers/geocoding"
	"github.com/zatekoja/cartosante/internal/adapters/providers/geosync"
	"github.com/zatekoja/cartosante/internal/adapters/search"
	"github.com/zatekoja/cartosante/internal/adapters/sources"
	"github.com/zatekoja/cartosante/internal/api/handlers"
	"github.com/zatekoja/cartosante/internal/api/middleware"
	"github.com/zatekoja/cartosante/internal/api/routes"
	"github.com/zatekoja/cartosante/internal/application/services"
	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/domain/repositories"
	"github.com/zatekoja/cartosante/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/cartosante/internal/infrastructure/clients/redis"
	"github.com/zatekoja/cartosante/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
	"github.com/zatekoja/cartosante/pkg/config"
	"github.com/zatekoja/cartosante/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Log.Environment, cfg.Log.Level)
	logger := observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			observability.ForwardToOTel(cfg.OTEL.ServiceName)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	directoryMetrics := observability.NewDirectoryMetrics(prometheus.DefaultRegisterer)

	if cfg.Database.AutoMigrate {
		if _, err := postgres.Migrate(ctx, &cfg.Database); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply database migrations")
		}
	}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis and Typesense are optional; the directory works without them.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	var redisBus *events.RedisEventBus
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, running without cache and realtime events")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient, "cartosante")
		redisBus = events.NewRedisEventBus(redisClient)
		eventBus = redisBus
	}

	var searchRepo repositories.ProviderSearchRepository
	tsClient, err := typesense.NewClient(ctx, &cfg.Typesense, retry.DefaultConfig())
	if err != nil {
		logger.Warn().Err(err).Msg("Typesense unavailable, suggestions will scan the aggregate")
	} else {
		searchRepo = search.NewTypesenseAdapter(tsClient)
	}

	establishmentRepo := database.NewEstablishmentAdapter(pgClient)
	geodataRepo := database.NewGeodataAdapter(pgClient)
	roleRepo := database.NewUserRoleAdapter(pgClient)

	// Operator records are read fresh on every load; the other two sources
	// go through the Redis cache when it is available.
	var curated repositories.ProviderSource = sources.NewCuratedSource(cfg.Directory.CuratedDatasetPath)
	var geodata repositories.ProviderSource = sources.NewGeodataSource(geodataRepo, repositories.GeodataScope{})
	var invalidators []services.SourceInvalidator
	if cacheProvider != nil && cfg.Directory.SourceCacheTTL > 0 {
		cachedCurated := sources.NewCachedSource(curated, cacheProvider, cfg.Directory.SourceCacheTTL, metrics)
		cachedGeodata := sources.NewCachedSource(geodata, cacheProvider, cfg.Directory.SourceCacheTTL, metrics)
		curated, geodata = cachedCurated, cachedGeodata
		invalidators = append(invalidators, cachedCurated, cachedGeodata)
	}

	directory := services.NewDirectoryService(services.DirectoryDeps{
		Sources: []repositories.ProviderSource{
			sources.NewEstablishmentSource(establishmentRepo),
			curated,
			geodata,
		},
		SearchRepo: searchRepo,
		EventBus:   eventBus,
		Metrics:    directoryMetrics,
	}, services.DirectoryOptions{
		Locale:               cfg.Directory.Locale,
		DefaultMaxDistanceKm: cfg.Directory.DefaultMaxDistanceKm,
		LoadTimeout:          cfg.Directory.LoadTimeout,
	})

	syncService := services.NewSyncService(
		geosync.NewHTTPSyncProvider(cfg.GeoSync.FunctionURL, cfg.GeoSync.APIKey, cfg.GeoSync.Timeout),
		directory,
		eventBus,
		directoryMetrics,
	).WithInvalidators(invalidators...)

	var scheduler *services.SyncScheduler
	if cfg.Directory.SyncSchedule != "" {
		scheduler, err = services.NewSyncScheduler(syncService, cfg.Directory.SyncSchedule, cfg.Directory.SyncProvinces)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule geodata sync")
		}
		scheduler.Start()
	}

	establishmentService := services.NewEstablishmentService(establishmentRepo, directory, eventBus)
	if cfg.Geocoding.APIKey != "" {
		establishmentService.WithGeocoder(geocoding.NewGoogleGeocoder(cfg.Geocoding.APIKey, cacheProvider, geocoding.WithBaseURL(cfg.Geocoding.BaseURL)))
	}
	accessService := services.NewAccessService(
		auth.NewHTTPAuthProvider(cfg.Auth.BaseURL, cfg.Auth.APIKey),
		auth.NewJWTVerifier(cfg.Auth.JWTSecret),
		roleRepo,
	)

	go func() {
		report, err := directory.Load(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("initial directory load failed, will retry on first search")
			return
		}
		logger.Info().Uint64("version", report.Version).Int("count", report.Count).Msg("directory loaded")
	}()

	var refresher *services.ReplicaRefreshService
	if redisBus != nil {
		refresher = services.NewReplicaRefreshService(redisBus, directory, redisBus.Origin())
		if err := refresher.Start(); err != nil {
			logger.Warn().Err(err).Msg("replica refresh disabled")
			refresher = nil
		}
	}

	checks := map[string]handlers.HealthCheck{"postgres": pgClient.Ping}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}

	h := routes.Handlers{
		Provider:      handlers.NewProviderHandler(directory),
		Admin:         handlers.NewAdminHandler(directory, syncService),
		Establishment: handlers.NewEstablishmentHandler(establishmentService),
		Auth:          handlers.NewAuthHandler(accessService),
		Health:        handlers.NewHealthHandler(directory.Version, checks),
	}
	if eventBus != nil {
		h.SSE = handlers.NewSSEHandler(eventBus, directory.Version)
	}

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, redisBus.Origin(), directory.Version)
	}

	router := routes.NewRouter(h, accessService, routes.Options{
		CacheMiddleware: cacheMiddleware,
		Metrics:         metrics,
		Establishments:  establishmentService,
		AllowedOrigins:  middleware.ParseOrigins(cfg.Server.AllowedOrigins),
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// no write timeout: the directory stream stays open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	if refresher != nil {
		refresher.Stop()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing event bus")
		}
	}
	logger.Info().Msg("server stopped")
}
