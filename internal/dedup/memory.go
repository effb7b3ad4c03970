package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements an in-memory seen-key cache with TTL eviction.
type MemoryCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewMemoryCache constructs a MemoryCache. A non-positive TTL selects 24h.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryCache{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Seen marks the key as seen and reports whether it was already present.
func (c *MemoryCache) Seen(_ context.Context, key string, now time.Time) (bool, error) {
	if key == "" {
		return false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if at, exists := c.seen[key]; exists && now.Sub(at) < c.ttl {
		return true, nil
	}
	c.seen[key] = now

	// Opportunistic eviction keeps the map bounded between syncs.
	for k, at := range c.seen {
		if now.Sub(at) >= c.ttl {
			delete(c.seen, k)
		}
	}
	return false, nil
}
