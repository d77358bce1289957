package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rankpulse/tracker/internal/model"
)

// geoKeyPrefix is the Redis key prefix for cached IP resolutions.
const geoKeyPrefix = "geo:ip:"

// GeoStore keeps IP resolutions in Redis so instances share lookups.
// Entries have no TTL; once written they are never overwritten.
type GeoStore struct {
	cache *Cache
}

// NewGeoStore creates a Redis-backed resolution store.
func (c *Cache) NewGeoStore() *GeoStore {
	return &GeoStore{cache: c}
}

// GetMany returns the cached resolutions among ips. Misses are omitted.
func (s *GeoStore) GetMany(ctx context.Context, ips []string) (map[string]*model.CountryResolution, error) {
	found := make(map[string]*model.CountryResolution)
	if len(ips) == 0 {
		return found, nil
	}

	keys := make([]string, len(ips))
	for i, ip := range ips {
		keys[i] = geoKeyPrefix + ip
	}

	values, err := s.cache.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}

		var res model.CountryResolution
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			// Corrupted entry - treat as miss
			continue
		}
		found[ips[i]] = &res
	}

	return found, nil
}

// Add stores res unless the IP is already cached.
func (s *GeoStore) Add(ctx context.Context, res *model.CountryResolution) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal resolution: %w", err)
	}

	if err := s.cache.client.SetNX(ctx, geoKeyPrefix+res.IP, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to cache resolution: %w", err)
	}
	return nil
}
