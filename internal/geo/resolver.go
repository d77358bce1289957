package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rankpulse/tracker/internal/metrics"
	"github.com/rankpulse/tracker/internal/model"
)

const (
	// DefaultMaxLookups caps external lookups per Resolve call.
	DefaultMaxLookups = 300

	// DefaultLookupInterval spaces external lookups to stay under the
	// provider's request quota (ip-api free tier: 45 req/min).
	DefaultLookupInterval = 1500 * time.Millisecond
)

// ResolverConfig tunes a Resolver.
type ResolverConfig struct {
	// MaxLookups caps external lookups per call; extra IPs resolve to nil.
	MaxLookups int
	// LookupInterval is the minimum spacing between external lookups.
	// Zero disables pacing.
	LookupInterval time.Duration
}

// Resolver converts IP sets into country resolutions.
// Lookups are issued one at a time, paced by a token bucket shared by all
// callers of the same Resolver.
type Resolver struct {
	provider   Provider
	cache      Cache
	pacer      *rate.Limiter
	maxLookups int
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// NewResolver creates a Resolver backed by provider and cache.
func NewResolver(provider Provider, cache Cache, cfg ResolverConfig, logger *slog.Logger, recorder metrics.Recorder) *Resolver {
	if cfg.MaxLookups <= 0 {
		cfg.MaxLookups = DefaultMaxLookups
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	limit := rate.Inf
	if cfg.LookupInterval > 0 {
		limit = rate.Every(cfg.LookupInterval)
	}

	return &Resolver{
		provider:   provider,
		cache:      cache,
		pacer:      rate.NewLimiter(limit, 1),
		maxLookups: cfg.MaxLookups,
		logger:     logger.With("component", "geo.resolver"),
		metrics:    recorder,
	}
}

// Resolve maps every distinct input IP to its resolution, or nil when it
// is invalid, non-public, beyond the lookup cap, or failed to resolve.
//
// Single-IP failures never fail the batch. Resolve returns ErrUnavailable
// only when lookups were attempted and none of them reached the provider,
// and ErrInterrupted when ctx ends mid-batch. Successful lookups are cached
// as they complete, so an interrupted batch still warms the cache.
func (r *Resolver) Resolve(ctx context.Context, ips []string) (map[string]*model.CountryResolution, error) {
	results := make(map[string]*model.CountryResolution, len(ips))

	public := make([]string, 0, len(ips))
	nonPublic := 0
	for _, raw := range ips {
		ip := strings.TrimSpace(raw)
		if _, seen := results[ip]; seen {
			continue
		}
		results[ip] = nil
		if !IsResolvable(ip) {
			nonPublic++
			continue
		}
		public = append(public, ip)
	}
	r.metrics.AddGeoSkipped("non_public", nonPublic)

	pending := public
	if len(public) > 0 {
		cached, err := r.cache.GetMany(ctx, public)
		if err != nil {
			// A cache outage only costs extra lookups
			r.logger.Warn("geo cache read failed", "error", err)
			cached = nil
		}
		r.metrics.AddGeoCacheHits(len(cached))

		pending = make([]string, 0, len(public)-len(cached))
		for _, ip := range public {
			if res, ok := cached[ip]; ok {
				results[ip] = res
				continue
			}
			pending = append(pending, ip)
		}
	}

	if len(pending) > r.maxLookups {
		r.logger.Warn("geo lookup cap reached, leaving IPs unresolved",
			"pending", len(pending),
			"cap", r.maxLookups,
		)
		r.metrics.AddGeoSkipped("over_cap", len(pending)-r.maxLookups)
		pending = pending[:r.maxLookups]
	}

	var attempted, unreachable int
	for _, ip := range pending {
		if err := r.pacer.Wait(ctx); err != nil {
			return results, fmt.Errorf("%w: %v", ErrInterrupted, err)
		}

		attempted++
		res, err := r.provider.Lookup(ctx, ip)
		if err != nil {
			if ctx.Err() != nil {
				return results, fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
			}
			if errors.Is(err, ErrTransport) {
				unreachable++
			}
			r.metrics.IncGeoLookup("failed")
			r.logger.Debug("geo lookup failed", "ip", ip, "error", err)
			continue
		}

		r.metrics.IncGeoLookup("success")
		results[ip] = res
		if err := r.cache.Add(ctx, res); err != nil {
			r.logger.Warn("geo cache write failed", "ip", ip, "error", err)
		}
	}

	if attempted > 0 && unreachable == attempted {
		return results, fmt.Errorf("%w: %d of %d lookups could not reach the provider", ErrUnavailable, unreachable, attempted)
	}

	return results, nil
}
