package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the remote backend, namespacing keys as "ns:key" and
// passing TTL straight through to SETEX, grounded on the pack's Redis
// usage convention (namespaced keys, TTL passthrough).
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func redisKey(ns, key string) string {
	return ns + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, ns, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, redisKey(ns, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, ns, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, redisKey(ns, key), value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, ns, key string) error {
	return c.client.Del(ctx, redisKey(ns, key)).Err()
}

// Clear scans and deletes every key under ns's prefix. Redis has no
// namespace primitive, so this is a SCAN+DEL sweep rather than an O(1)
// operation.
func (c *RedisCache) Clear(ctx context.Context, ns string) error {
	iter := c.client.Scan(ctx, 0, ns+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Stats(ctx context.Context, ns string) (Stats, error) {
	iter := c.client.Scan(ctx, 0, ns+":*", 0).Iterator()
	count := 0
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, err
	}
	return Stats{Keys: count}, nil
}

func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
