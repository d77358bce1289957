// Package main is the entrypoint for the RankPulse tracking API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rankpulse/tracker/internal/analytics"
	"github.com/rankpulse/tracker/internal/cache"
	"github.com/rankpulse/tracker/internal/config"
	"github.com/rankpulse/tracker/internal/geo"
	"github.com/rankpulse/tracker/internal/handler"
	"github.com/rankpulse/tracker/internal/metrics"
	"github.com/rankpulse/tracker/internal/middleware"
	"github.com/rankpulse/tracker/internal/ratelimit"
	"github.com/rankpulse/tracker/internal/repository"
	"github.com/rankpulse/tracker/internal/server"
	"github.com/rankpulse/tracker/internal/service"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Redis is only needed for shared rate-limit windows or geo cache
	var cacheClient *cache.Cache
	if cfg.NeedsRedis() {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			repo.Close()
			os.Exit(1)
		}
		logger.Info("connected to Redis")
	}

	recorder := metrics.NewInMemory()

	resolver := geo.NewResolver(
		geo.NewIPAPIProvider(cfg.GeoProviderURL, cfg.GeoLookupTimeout),
		newGeoCache(cfg, cacheClient),
		geo.ResolverConfig{
			MaxLookups:     cfg.GeoMaxLookups,
			LookupInterval: cfg.GeoLookupInterval,
		},
		logger,
		recorder,
	)
	worldViewService := service.NewWorldViewService(repo, resolver, logger, recorder)

	deps := routerDeps{
		cfg:       cfg,
		logger:    logger,
		base:      handler.New(),
		health:    handler.NewHealthHandler(logger, healthDependencies(repo, cacheClient)...),
		metrics:   handler.NewMetricsHandler(recorder),
		beacon:    handler.NewBeaconHandler(cfg.PublicBaseURL, logger),
		track:     handler.NewTrackHandler(repo, logger, recorder),
		worldView: handler.NewWorldViewHandler(worldViewService, logger, cfg.AggregationTimeout),
		limiter:   newLimiter(cfg, cacheClient),
		recorder:  recorder,
	}

	srv := server.New(newRouter(deps), server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: redis closes before postgres
	srv.OnShutdown("postgres", func(ctx context.Context) error {
		repo.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(ctx context.Context) error {
			return cacheClient.Close()
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"public_base_url", cfg.PublicBaseURL,
		"env", cfg.AppEnv,
		"rate_limit_store", cfg.RateLimitStore,
		"geo_cache_store", cfg.GeoCacheStore,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLimiter picks the ingestion limiter backend. A nil result disables limiting.
func newLimiter(cfg *config.Config, cacheClient *cache.Cache) ratelimit.Limiter {
	if !cfg.RateLimitEnabled {
		return nil
	}
	if cfg.RateLimitStore == config.StoreRedis && cacheClient != nil {
		return cacheClient.NewWindowLimiter(cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
	}
	return ratelimit.NewMemory(cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
}

// newGeoCache picks where resolved IPs are kept between aggregations.
func newGeoCache(cfg *config.Config, cacheClient *cache.Cache) geo.Cache {
	if cfg.GeoCacheStore == config.StoreRedis && cacheClient != nil {
		return cacheClient.NewGeoStore()
	}
	return geo.NewMemoryCache()
}

func healthDependencies(repo *repository.Repository, cacheClient *cache.Cache) []handler.Dependency {
	deps := []handler.Dependency{{Name: "postgres", Checker: repo}}
	if cacheClient != nil {
		deps = append(deps, handler.Dependency{Name: "redis", Checker: cacheClient})
	} else {
		deps = append(deps, handler.Dependency{Name: "redis"})
	}
	return deps
}

// routerDeps carries everything newRouter mounts.
type routerDeps struct {
	cfg       *config.Config
	logger    *slog.Logger
	base      *handler.Handler
	health    *handler.HealthHandler
	metrics   *handler.MetricsHandler
	beacon    *handler.BeaconHandler
	track     *handler.TrackHandler
	worldView *handler.WorldViewHandler
	limiter   ratelimit.Limiter
	recorder  metrics.Recorder
}

// newRouter configures the chi router with all routes and middleware.
func newRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: d.cfg.IsDevelopment()}))

	// Probes and metrics
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Get("/metrics", d.metrics.Metrics)

	// Beacon surface, called from arbitrary customer origins
	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(middleware.BeaconCORSConfig()))

		r.Get("/beacon.js", d.beacon.Script)
		r.Options("/beacon.js", noContent)

		r.Options(analytics.TrackEventPath, noContent)
		r.With(
			middleware.RateLimitIP(middleware.RateLimitConfig{
				Logger:  d.logger,
				Limiter: d.limiter,
				Metrics: d.recorder,
				Window:  d.cfg.RateLimitWindow,
			}),
			middleware.MaxBodySize(d.cfg.TrackMaxBodySize),
		).Post(analytics.TrackEventPath, d.track.Track)
	})

	// Dashboard API; identity comes from the auth gateway in front of us
	r.Route("/api/v1", func(r chi.Router) {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowedOrigins = d.cfg.GetCORSAllowedOrigins()
		r.Use(middleware.CORS(corsCfg))

		r.Get("/world-view", d.worldView.WorldView)
		r.Options("/world-view", noContent)
	})

	// 404 and 405 handlers
	r.NotFound(d.base.NotFound)
	r.MethodNotAllowed(d.base.MethodNotAllowed)

	return r
}

// noContent answers OPTIONS requests that carry no CORS preflight headers.
func noContent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
