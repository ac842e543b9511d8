package tcgplayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCacheConfig configures the Redis cache backend.
type RedisCacheConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password authenticates the connection when set.
	Password string

	// DB selects the logical database.
	DB int

	// KeyPrefix namespaces cache keys. Defaults to "tcgplayer:cache".
	KeyPrefix string

	// PoolSize caps the connection pool. Zero takes the driver default.
	PoolSize int

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration
}

// RedisCache stores cache entries in Redis, delegating TTL expiry to the
// server. Entry bodies are JSON so the embedded expiry survives round-trips
// through backends that ignore per-key TTLs.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(config *RedisCacheConfig) (*RedisCache, error) {
	if config == nil {
		return nil, ErrRedisConfigRequired
	}

	prefix := strings.Trim(config.KeyPrefix, ":")
	if prefix == "" {
		prefix = "tcgplayer:cache"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        config.Addr,
		Password:    config.Password,
		DB:          config.DB,
		PoolSize:    config.PoolSize,
		DialTimeout: config.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := rdb.Ping(pingCtx).Result()
	if err != nil {
		_ = rdb.Close()

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{rdb: rdb, prefix: prefix}, nil
}

// Get returns the entry for key.
func (c *RedisCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	data, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrCacheKeyNotFound, key)
		}

		return nil, fmt.Errorf("failed to read redis entry: %w", err)
	}

	var entry CacheEntry

	err = json.Unmarshal(data, &entry)
	if err != nil {
		return nil, fmt.Errorf("failed to decode redis entry: %w", err)
	}

	if entry.Expired() {
		_ = c.rdb.Del(ctx, c.redisKey(key)).Err()

		return nil, fmt.Errorf("%w: %s", ErrCacheEntryExpired, key)
	}

	return &entry, nil
}

// Set stores the entry under key with a server-side TTL matching the
// entry's expiry.
func (c *RedisCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode redis entry: %w", err)
	}

	var ttl time.Duration
	if !entry.ExpiresAt.IsZero() {
		ttl = time.Until(entry.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}

	err = c.rdb.Set(ctx, c.redisKey(key), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to write redis entry: %w", err)
	}

	return nil
}

// Delete removes the entry for key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	err := c.rdb.Del(ctx, c.redisKey(key)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete redis entry: %w", err)
	}

	return nil
}

// Clear removes every entry under the key prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, c.prefix+":*", 0).Iterator()

	for iter.Next(ctx) {
		err := c.rdb.Del(ctx, iter.Val()).Err()
		if err != nil {
			return fmt.Errorf("failed to delete redis entry: %w", err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan redis keys: %w", err)
	}

	return nil
}

// Has reports whether key is present and unexpired.
func (c *RedisCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func (c *RedisCache) redisKey(key string) string {
	return c.prefix + ":" + key
}
