// Package geo resolves visitor IP addresses to countries.
//
// Resolution is batch oriented: callers hand a set of IPs to a Resolver,
// which answers cached and non-routable addresses immediately and paces the
// remaining lookups against an external provider to respect its quota.
package geo

import (
	"context"
	"errors"

	"github.com/rankpulse/tracker/internal/model"
)

// Sentinel errors for geo resolution.
var (
	// ErrLookupFailed marks a single-IP failure (non-success status, bad payload).
	ErrLookupFailed = errors.New("geo lookup failed")

	// ErrTransport marks a failure to reach the provider at all.
	ErrTransport = errors.New("geo provider unreachable")

	// ErrUnavailable is returned by Resolve when every external lookup in a
	// batch failed to reach the provider.
	ErrUnavailable = errors.New("geo resolution unavailable")

	// ErrInterrupted is returned by Resolve when the caller's context ends mid-batch.
	ErrInterrupted = errors.New("geo resolution interrupted")
)

// Provider looks up a single public IP.
type Provider interface {
	Lookup(ctx context.Context, ip string) (*model.CountryResolution, error)
}

// Cache stores resolutions for reuse. Entries are immutable once added.
type Cache interface {
	// GetMany returns cached resolutions among ips; misses are omitted.
	GetMany(ctx context.Context, ips []string) (map[string]*model.CountryResolution, error)
	// Add stores res unless its IP is already present.
	Add(ctx context.Context, res *model.CountryResolution) error
}
