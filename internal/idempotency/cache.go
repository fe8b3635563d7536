package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "idem"

// Cache is a read-through Redis cache in front of the store's
// idempotency-key mapping. It only ever caches key -> transfer id; a cache
// miss or Redis failure degrades to the database, never to an error.
type Cache struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewCache(redis redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{redis: redis, ttl: ttl}
}

// Get returns the cached transfer id for a key, if any.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.redis == nil {
		return "", false
	}

	val, err := c.redis.Get(ctx, redisKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("idempotency cache lookup failed", zap.Error(err))
		}
		return "", false
	}
	return val, true
}

// Put records a key -> transfer id mapping with the configured TTL.
func (c *Cache) Put(ctx context.Context, key, transferID string) {
	if c == nil || c.redis == nil {
		return
	}

	if err := c.redis.Set(ctx, redisKey(key), transferID, c.ttl).Err(); err != nil {
		zap.L().Warn("idempotency cache set failed", zap.Error(err))
	}
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key)
}
