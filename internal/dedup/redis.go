package dedup

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSeenTTL = 24 * time.Hour

// RedisCache implements a seen-key cache backed by Redis SET NX.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache constructs a RedisCache.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Seen marks the key as seen and reports whether it was already present.
func (c *RedisCache) Seen(ctx context.Context, key string, _ time.Time) (bool, error) {
	if key == "" || c == nil || c.client == nil {
		return false, nil
	}
	set, errSet := c.client.SetNX(ctx, c.buildKey(key), 1, redisSeenTTL).Result()
	if errSet != nil {
		return false, errSet
	}
	// SetNX succeeds only when the key was absent.
	return !set, nil
}

func (c *RedisCache) buildKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}
