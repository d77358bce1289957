// Package cache holds the Redis state that instances share.
//
// Two workloads use it. The ingestion limiter runs one short script per
// beacon request on the hot path, and the limiter middleware fails open on
// any error, so calls here favour a quick failure over waiting. The geo
// store issues one batched MGET per aggregation and one SETNX per fresh
// resolution, all off the ingestion path.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	clientName = "rankpulse-tracker"

	// Ingestion traffic is bursty; keep a few connections warm for it.
	poolSize     = 32
	minIdleConns = 4

	// A beacon request waits at most this long for a pooled connection
	// before the limiter gives up and the request is let through.
	poolTimeout = time.Second

	// Window scripts and single-key commands answer in well under this.
	ioTimeout = 500 * time.Millisecond

	connMaxIdleTime = 5 * time.Minute
)

// Cache wraps the Redis client used by the limiter and the geo store.
type Cache struct {
	client *redis.Client
}

// New parses redisURL, dials and pings Redis.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := clientOptions(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewWithClient(client), nil
}

// clientOptions applies the pool and timeout settings for our workload on
// top of whatever redisURL specifies.
func clientOptions(redisURL string) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.ClientName = clientName
	opt.PoolSize = poolSize
	opt.MinIdleConns = minIdleConns
	opt.PoolTimeout = poolTimeout
	opt.ConnMaxIdleTime = connMaxIdleTime
	opt.ReadTimeout = ioTimeout
	opt.WriteTimeout = ioTimeout
	opt.ContextTimeoutEnabled = true

	// Window increments are not idempotent; a retried script could count a
	// request twice.
	opt.MaxRetries = -1

	return opt, nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
