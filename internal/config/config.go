// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store backends for the rate limiter and geo cache.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	// Cache (Redis). Only required when a store below is "redis".
	RedisURL string `env:"REDIS_URL"`

	// Public origin of this service, baked into the beacon script
	// (e.g., https://track.rankpulse.io)
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Ingestion rate limiting, per client IP
	RateLimitEnabled     bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitStore       string        `env:"RATE_LIMIT_STORE" envDefault:"memory"`
	RateLimitMaxRequests int           `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"100"`
	RateLimitWindow      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`

	// Geo resolution
	GeoProviderURL    string        `env:"GEO_PROVIDER_URL" envDefault:"http://ip-api.com"`
	GeoLookupInterval time.Duration `env:"GEO_LOOKUP_INTERVAL" envDefault:"1500ms"`
	GeoMaxLookups     int           `env:"GEO_MAX_LOOKUPS" envDefault:"300"`
	GeoLookupTimeout  time.Duration `env:"GEO_LOOKUP_TIMEOUT" envDefault:"5s"`
	GeoCacheStore     string        `env:"GEO_CACHE_STORE" envDefault:"memory"`

	// World view requests can wait on many paced geo lookups
	AggregationTimeout time.Duration `env:"AGGREGATION_TIMEOUT" envDefault:"10m"`

	// CORS for the dashboard API. The ingestion endpoint and beacon are
	// always open to any origin.
	// Comma-separated list of allowed origins (e.g., "https://app.rankpulse.io")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Body size limit for POST /track-event in bytes (default 16KB)
	TrackMaxBodySize int64 `env:"TRACK_MAX_BODY_SIZE" envDefault:"16384"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// NeedsRedis reports whether any component is configured to use Redis.
func (c *Config) NeedsRedis() bool {
	return (c.RateLimitEnabled && c.RateLimitStore == StoreRedis) || c.GeoCacheStore == StoreRedis
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	for name, store := range map[string]string{
		"RATE_LIMIT_STORE": c.RateLimitStore,
		"GEO_CACHE_STORE":  c.GeoCacheStore,
	} {
		if store != StoreMemory && store != StoreRedis {
			errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", name, StoreMemory, StoreRedis, store))
		}
	}

	if c.NeedsRedis() && c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required when a store is redis"))
	}
	if c.RateLimitMaxRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX_REQUESTS must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.GeoMaxLookups <= 0 {
		errs = append(errs, errors.New("GEO_MAX_LOOKUPS must be positive"))
	}
	if c.GeoLookupInterval < 0 {
		errs = append(errs, errors.New("GEO_LOOKUP_INTERVAL must not be negative"))
	}
	if c.TrackMaxBodySize <= 0 {
		errs = append(errs, errors.New("TRACK_MAX_BODY_SIZE must be positive"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
