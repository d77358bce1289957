package geo

import (
	"context"
	"sync"

	"github.com/rankpulse/tracker/internal/model"
)

// MemoryCache is a process-local resolution cache.
// It grows monotonically: nothing is evicted or overwritten.
type MemoryCache struct {
	entries sync.Map // ip -> *model.CountryResolution
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// GetMany returns the cached resolutions among ips.
func (c *MemoryCache) GetMany(_ context.Context, ips []string) (map[string]*model.CountryResolution, error) {
	found := make(map[string]*model.CountryResolution)
	for _, ip := range ips {
		if v, ok := c.entries.Load(ip); ok {
			found[ip] = v.(*model.CountryResolution)
		}
	}
	return found, nil
}

// Add stores res unless the IP is already cached.
func (c *MemoryCache) Add(_ context.Context, res *model.CountryResolution) error {
	c.entries.LoadOrStore(res.IP, res)
	return nil
}

// Len returns the number of cached IPs.
func (c *MemoryCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
