package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyCache remembers which quote number a caller-supplied
// Idempotency-Key produced, so a retried create returns the original quote
// instead of minting a new one.
type IdempotencyCache interface {
	Lookup(ctx context.Context, key string) (quoteNumber string, found bool, err error)
	Remember(ctx context.Context, key, quoteNumber string) error
}

// RedisIdempotencyCache stores idempotency keys with a short TTL.
type RedisIdempotencyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyCache creates a cache over the given Redis client.
func NewRedisIdempotencyCache(client *redis.Client, ttl time.Duration) *RedisIdempotencyCache {
	return &RedisIdempotencyCache{client: client, ttl: ttl}
}

func idempotencyCacheKey(key string) string {
	return "quotes:idem:" + key
}

// Lookup returns the quote number previously recorded under the key.
func (c *RedisIdempotencyCache) Lookup(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, idempotencyCacheKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	return val, true, nil
}

// Remember records the key. SetNX keeps the first writer's quote number when
// two retries race.
func (c *RedisIdempotencyCache) Remember(ctx context.Context, key, quoteNumber string) error {
	if err := c.client.SetNX(ctx, idempotencyCacheKey(key), quoteNumber, c.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency remember failed: %w", err)
	}
	return nil
}
