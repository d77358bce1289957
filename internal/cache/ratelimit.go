package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitIPPrefix is the Redis key prefix for per-IP ingestion windows.
const rateLimitIPPrefix = "ratelimit:track:"

// fixedWindowScript admits a request if the key's window has room.
// A missing (expired) key starts a new window counting this request.
// Denied requests leave the counter untouched.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])

	local count = tonumber(redis.call('GET', key) or '0')

	if count == 0 then
		redis.call('SET', key, 1, 'PX', window_ms)
		return {1, 1}
	end

	if count < max_requests then
		redis.call('INCR', key)
		return {1, count + 1}
	end

	return {0, count}
`)

// WindowLimiter is a Redis-backed fixed-window limiter shared by all instances.
type WindowLimiter struct {
	cache       *Cache
	maxRequests int
	window      time.Duration
}

// NewWindowLimiter creates a limiter admitting maxRequests per window per key.
func (c *Cache) NewWindowLimiter(maxRequests int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		cache:       c,
		maxRequests: maxRequests,
		window:      window,
	}
}

// Allow consumes one request for ip if its window has room.
// IPs are hashed so raw addresses never land in Redis keys.
func (l *WindowLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	key := rateLimitIPPrefix + hashIP(ip)

	result, err := fixedWindowScript.Run(ctx, l.cache.client,
		[]string{key},
		l.maxRequests, l.window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("run rate limit script: %w", err)
	}

	return result[0] == 1, nil
}

// hashIP creates a truncated SHA256 hash of an IP address.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
