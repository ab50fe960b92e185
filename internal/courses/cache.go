package courses

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	cacheKeyCourse = "cache:course:"
	cacheKeyList   = "cache:courses:"
)

// Cache stores catalog responses in Redis. Failures are treated as misses
// so the catalog stays available when Redis is not.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache creates a catalog cache with the given entry TTL.
func NewCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

// GetCourse loads a cached course detail into out. ok is false on a miss.
func (c *Cache) GetCourse(ctx context.Context, idOrSlug string, out interface{}) bool {
	return c.get(ctx, cacheKeyCourse+idOrSlug, out)
}

// SetCourse caches a course detail under its id-or-slug key.
func (c *Cache) SetCourse(ctx context.Context, idOrSlug string, v interface{}) {
	c.set(ctx, cacheKeyCourse+idOrSlug, v)
}

// GetList loads a cached catalog page into out. ok is false on a miss.
func (c *Cache) GetList(ctx context.Context, key string, out interface{}) bool {
	return c.get(ctx, cacheKeyList+key, out)
}

// SetList caches a catalog page under the filter key.
func (c *Cache) SetList(ctx context.Context, key string, v interface{}) {
	c.set(ctx, cacheKeyList+key, v)
}

func (c *Cache) get(ctx context.Context, key string, out interface{}) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Debug("cache entry invalid", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Debug("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("cache set failed", zap.String("key", key), zap.Error(err))
	}
}
