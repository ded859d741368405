package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultKeyPrefix 流地址缓存键前缀
const DefaultKeyPrefix = "toonbeat:stream:"

// RedisHandleCache 使用 Redis 缓存预签名流地址
type RedisHandleCache struct {
	client *redis.Client
	prefix string
}

func NewRedisHandleCache(client *redis.Client, prefix string) *RedisHandleCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisHandleCache{client: client, prefix: prefix}
}

func (c *RedisHandleCache) key(trackID string) string {
	return c.prefix + trackID
}

// Get 获取缓存的流地址
func (c *RedisHandleCache) Get(ctx context.Context, trackID string) (string, bool, error) {
	if c.client == nil {
		return "", false, fmt.Errorf("Redis client not initialized")
	}
	val, err := c.client.Get(ctx, c.key(trackID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get stream handle: %w", err)
	}
	return val, true, nil
}

// Set 缓存流地址
func (c *RedisHandleCache) Set(ctx context.Context, trackID, uri string, ttl time.Duration) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := c.client.Set(ctx, c.key(trackID), uri, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache stream handle: %w", err)
	}
	return nil
}

// Invalidate 删除缓存的流地址
func (c *RedisHandleCache) Invalidate(ctx context.Context, trackID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return c.client.Del(ctx, c.key(trackID)).Err()
}
