package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the optional fast path for presence lookups. Every caller must
// treat "no cache configured" and "cache call failed" identically; the
// engine holds a nil Cache when the fast path is disabled.
type Cache interface {
	Set(ctx context.Context, userID, status string, ttl time.Duration) error
	GetMany(ctx context.Context, userIDs []string) (map[string]string, error)
	Ping(ctx context.Context) error
}

const cacheKeyPrefix = "presence:"

// RedisCache stores plain status strings under presence-prefixed keys with
// the TTL attached at write time.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Set(ctx context.Context, userID, status string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, cacheKeyPrefix+userID, status, ttl).Err(); err != nil {
		return fmt.Errorf("presence cache: set: %w", err)
	}
	return nil
}

// GetMany resolves several users with one MGET. Keys with no value are
// simply absent from the result; the caller treats them as misses.
func (c *RedisCache) GetMany(ctx context.Context, userIDs []string) (map[string]string, error) {
	if len(userIDs) == 0 {
		return map[string]string{}, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = cacheKeyPrefix + id
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("presence cache: mget: %w", err)
	}
	out := make(map[string]string, len(userIDs))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[userIDs[i]] = s
		}
	}
	return out, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("presence cache: ping: %w", err)
	}
	return nil
}
