package textcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "edgespeak:text:"

// RedisCache is a Redis-backed Cache for multi-instance deployments. Expiry
// is delegated to key TTLs; listing scans the key prefix.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache. Zero ttl selects DefaultTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Put(ctx context.Context, text string) (string, error) {
	id := uuid.NewString()
	if err := c.client.Set(ctx, keyPrefix+id, text, c.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set failed: %w", err)
	}
	return id, nil
}

func (c *RedisCache) Get(ctx context.Context, id string) (string, error) {
	text, err := c.client.Get(ctx, keyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return text, nil
}

func (c *RedisCache) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	return ids, nil
}
