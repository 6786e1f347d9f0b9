package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	SetCycleStatus(ctx context.Context, userID uuid.UUID, status string, ttl time.Duration) error
	GetCycleStatus(ctx context.Context, userID uuid.UUID) (string, bool, error)
	IncrCycleCount(ctx context.Context, userID uuid.UUID) (int64, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// SetCycleStatus records the state of the user's current (or last) cycle so
// the API can answer status queries without touching the database.
func (c *RedisCache) SetCycleStatus(ctx context.Context, userID uuid.UUID, status string, ttl time.Duration) error {
	return c.client.Set(ctx, CycleStatusKey(userID), status, ttl).Err()
}

func (c *RedisCache) GetCycleStatus(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	val, err := c.client.Get(ctx, CycleStatusKey(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// IncrCycleCount bumps the user's completed-cycle counter. The counter never
// expires; it drives the every-Nth-cycle proposal gate.
func (c *RedisCache) IncrCycleCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return c.client.Incr(ctx, CycleCountKey(userID)).Result()
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
