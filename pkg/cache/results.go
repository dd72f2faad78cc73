package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinrota/clinrota-api/internal/scheduler"
)

const resultKeyPrefix = "generation:result:"

// RedisResultCache stores generation results in Redis so idempotency replay
// survives process restarts and is shared across instances. It implements
// scheduler.ResultCache.
type RedisResultCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisResultCache wraps a Redis client as a generation result cache.
func NewRedisResultCache(client *redis.Client, logger *zap.Logger) *RedisResultCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisResultCache{client: client, logger: logger}
}

// Get returns the cached result for a fingerprint, if any. Cache errors are
// treated as misses so a Redis outage degrades to re-running the solver.
func (c *RedisResultCache) Get(key string) (*scheduler.Result, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, resultKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("result cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var result scheduler.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("result cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return &result, true
}

// Set stores a result under the fingerprint for the retention period.
func (c *RedisResultCache) Set(key string, result *scheduler.Result, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("result cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, resultKeyPrefix+key, raw, ttl).Err(); err != nil {
		c.logger.Warn("result cache write failed", zap.Error(err))
	}
}
