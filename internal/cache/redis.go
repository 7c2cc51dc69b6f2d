package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = 12 * time.Hour

// Redis caches document payloads in a shared Redis instance so that multiple
// service processes observe the same invalidations.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig configures the Redis-backed cache.
type RedisConfig struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// NewRedis constructs a Redis cache and verifies connectivity.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, errors.New("cache: redis client required")
	}
	if err := cfg.Client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "everafter"
	}
	return &Redis{client: cfg.Client, prefix: prefix, ttl: ttl}, nil
}

func (r *Redis) key(key string) string {
	return r.prefix + ":" + key
}

// Get returns the cached value for key, reporting a miss for absent keys.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key with the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

// Invalidate removes key from the shared cache.
func (r *Redis) Invalidate(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
