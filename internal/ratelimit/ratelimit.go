// Package ratelimit provides per-client request throttling for beacon ingestion.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rankpulse/tracker/internal/model"
)

// Defaults for ingestion throttling.
const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxRequests = 100
)

// Limiter admits or denies one request for a key.
// Implementations must make the check-then-increment atomic per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory is a process-local fixed-window limiter.
//
// Each key owns its own window and mutex, so requests for different IPs never
// contend. Windows are never evicted; they are replaced in place once expired.
// Memory therefore grows with the number of distinct keys seen.
type Memory struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time

	windows sync.Map // key -> *bucket
}

type bucket struct {
	mu sync.Mutex
	model.RateLimitWindow
}

// Option configures a Memory limiter.
type Option func(*Memory)

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an in-memory limiter admitting maxRequests per window.
func NewMemory(maxRequests int, window time.Duration, opts ...Option) *Memory {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}

	m := &Memory{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allow consumes one request for key if the window has room.
// A missing or expired window is replaced with a fresh one counting this request.
// Denied requests do not increment the counter.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	v, _ := m.windows.LoadOrStore(key, &bucket{})
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := m.now()
	if b.ResetAt.IsZero() || b.Expired(now) {
		b.IP = key
		b.RequestCount = 1
		b.ResetAt = now.Add(m.window)
		return true, nil
	}

	if b.RequestCount < m.maxRequests {
		b.RequestCount++
		return true, nil
	}

	return false, nil
}

// Window returns a copy of the current window for key, if one exists.
func (m *Memory) Window(key string) (model.RateLimitWindow, bool) {
	v, ok := m.windows.Load(key)
	if !ok {
		return model.RateLimitWindow{}, false
	}
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.RateLimitWindow, true
}
