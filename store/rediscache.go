package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// RedisSearchCache stores search results in Redis. Keys embed a generation
// number; Invalidate bumps the generation so stale entries are never read
// and expire on their own TTL.
type RedisSearchCache struct {
	client *redis.Client
	config CacheConfig
	logger *slog.Logger
}

// NewRedisSearchCache creates a Redis-backed search cache.
func NewRedisSearchCache(client *redis.Client, config CacheConfig, logger *slog.Logger) *RedisSearchCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSearchCache{
		client: client,
		config: config,
		logger: logger,
	}
}

func (c *RedisSearchCache) generationKey() string {
	return c.config.KeyPrefix + "generation"
}

func (c *RedisSearchCache) generation(ctx context.Context) (Generation, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return -1, err
	}
	return Generation(gen), nil
}

func (c *RedisSearchCache) key(gen Generation, q string) string {
	return c.config.KeyPrefix + strconv.FormatInt(int64(gen), 10) + ":" + q
}

// Get returns the cached result for q. Redis errors count as misses.
func (c *RedisSearchCache) Get(ctx context.Context, q string) (*SearchResult, Generation, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("search cache unavailable", "error", err)
		return nil, gen, false
	}

	key := c.key(gen, q)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("search cache read failed", "error", err)
		}
		return nil, gen, false
	}

	var result SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("search cache entry corrupt", "key", key, "error", err)
		return nil, gen, false
	}
	return &result, gen, true
}

// Set stores the result for q under generation gen with the configured TTL.
// Nothing is written once the generation has moved on, and an entry written
// under an old generation is never read back.
func (c *RedisSearchCache) Set(ctx context.Context, q string, gen Generation, result *SearchResult) {
	if gen < 0 {
		return
	}

	current, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("search cache unavailable", "error", err)
		return
	}
	if current != gen {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("search cache encode failed", "error", err)
		return
	}

	if err := c.client.Set(ctx, c.key(gen, q), data, c.config.TTL).Err(); err != nil {
		c.logger.Warn("search cache write failed", "error", err)
	}
}

// Invalidate bumps the cache generation.
func (c *RedisSearchCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		c.logger.Warn("search cache invalidation failed", "error", err)
	}
}
