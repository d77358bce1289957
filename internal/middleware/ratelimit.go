package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rankpulse/tracker/internal/analytics"
	"github.com/rankpulse/tracker/internal/metrics"
	"github.com/rankpulse/tracker/internal/ratelimit"
)

// RateLimitConfig holds configuration for per-IP rate limiting.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter ratelimit.Limiter
	Metrics metrics.Recorder
	// Window is advertised in Retry-After when a request is denied.
	Window time.Duration
}

// RateLimitIP returns middleware that admits at most the limiter's quota of
// requests per client IP. A nil Limiter disables limiting. When the limiter
// itself fails the request is let through.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		if cfg.Limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := analytics.ClientIP(r)

			allowed, err := cfg.Limiter.Allow(r.Context(), ip)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("ip", ip),
				)
				// Fail open - allow request
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				recorder.IncRateLimited()
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				if cfg.Window > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
