package tcgplayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

// CacheType selects a cache backend.
type CacheType string

const (
	// CacheTypeMemory selects the in-process LRU cache.
	CacheTypeMemory CacheType = "memory"

	// CacheTypeNATS selects a NATS JetStream key-value bucket.
	CacheTypeNATS CacheType = "nats"

	// CacheTypeRedis selects a Redis backend.
	CacheTypeRedis CacheType = "redis"

	// CacheTypeNone disables caching entirely.
	CacheTypeNone CacheType = "none"
)

// Static errors for err113 compliance.
var (
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS cache")
	ErrRedisConfigRequired   = errors.New("redis configuration required for redis cache")
	ErrUnsupportedCacheType  = errors.New("unsupported cache type")
	ErrKeyNotFoundInAnyCache = errors.New("key not found in any cache")
)

// CacheConfig selects and tunes a cache backend. Exactly one backend section
// matching Type must be set; Memory may stay nil to take the defaults.
type CacheConfig struct {
	// Type names the backend to build.
	Type CacheType

	// Memory tunes the in-process backend.
	Memory *MemoryCacheConfig

	// NATS holds connection settings for the JetStream KV backend.
	NATS *NATSKVConfig

	// Redis holds connection settings for the Redis backend.
	Redis *RedisCacheConfig

	// Options applies to any backend. Nil takes DefaultCacheOptions.
	Options *CacheOptions
}

// MemoryCacheConfig tunes the in-process cache.
type MemoryCacheConfig struct {
	// MaxSize caps the number of stored entries; the least recently used
	// entry is evicted beyond it.
	MaxSize int

	// CleanupInterval is a duration string ("30s", "5m") controlling how
	// often expired entries are swept. Empty selects the default sweep.
	CleanupInterval string
}

// DefaultCacheConfig returns the memory backend with default sizing.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Type: CacheTypeMemory,
		Memory: &MemoryCacheConfig{
			MaxSize:         constants.DefaultCacheSize,
			CleanupInterval: "1m",
		},
		Options: DefaultCacheOptions(),
	}
}

// NewCacheFromConfig builds the backend named by config.Type. A nil config
// builds the default memory cache.
func NewCacheFromConfig(config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	switch config.Type {
	case CacheTypeMemory:
		return NewMemoryCacheFromConfig(config.Memory)

	case CacheTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		return NewNATSKVCache(config.NATS)

	case CacheTypeRedis:
		if config.Redis == nil {
			return nil, ErrRedisConfigRequired
		}

		return NewRedisCache(config.Redis)

	case CacheTypeNone:
		return NewNoOpCache(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCacheType, config.Type)
	}
}

// NewMemoryCacheFromConfig builds the in-process cache and starts its expiry
// sweeper. A nil config takes the default sizing.
func NewMemoryCacheFromConfig(config *MemoryCacheConfig) (Cache, error) {
	maxSize := constants.DefaultCacheSize
	interval := constants.DefaultCacheCleanupInterval

	if config != nil {
		if config.MaxSize > 0 {
			maxSize = config.MaxSize
		}

		if config.CleanupInterval != "" {
			parsed, err := time.ParseDuration(config.CleanupInterval)
			if err != nil {
				return nil, fmt.Errorf("parsing cleanup interval: %w", err)
			}

			interval = parsed
		}
	}

	cache := NewMemoryCache(maxSize)
	cache.StartJanitor(interval)

	return cache, nil
}

// NoOpCache satisfies Cache without storing anything. It backs the
// cache-disabled configuration.
type NoOpCache struct{}

// NewNoOpCache returns the non-storing cache.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Get reports every key as a miss.
func (c *NoOpCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	return nil, fmt.Errorf("%w: %s", ErrCacheKeyNotFound, key)
}

// Set discards the entry.
func (c *NoOpCache) Set(_ context.Context, _ string, _ *CacheEntry) error {
	return nil
}

// Delete is a no-op.
func (c *NoOpCache) Delete(_ context.Context, _ string) error {
	return nil
}

// Clear is a no-op.
func (c *NoOpCache) Clear(_ context.Context) error {
	return nil
}

// Has reports false for every key.
func (c *NoOpCache) Has(_ context.Context, _ string) bool {
	return false
}

// CacheBuilder assembles a CacheConfig fluently and builds the backend.
type CacheBuilder struct {
	config *CacheConfig
}

// NewCacheBuilder starts from the memory backend with default options.
func NewCacheBuilder() *CacheBuilder {
	return &CacheBuilder{
		config: &CacheConfig{
			Type:    CacheTypeMemory,
			Options: DefaultCacheOptions(),
		},
	}
}

// WithType selects the backend.
func (b *CacheBuilder) WithType(cacheType CacheType) *CacheBuilder {
	b.config.Type = cacheType

	return b
}

// WithMemoryConfig tunes the in-process backend.
func (b *CacheBuilder) WithMemoryConfig(maxSize int, cleanupInterval string) *CacheBuilder {
	b.config.Memory = &MemoryCacheConfig{
		MaxSize:         maxSize,
		CleanupInterval: cleanupInterval,
	}

	return b
}

// WithNATSConfig supplies JetStream KV connection settings.
func (b *CacheBuilder) WithNATSConfig(config *NATSKVConfig) *CacheBuilder {
	b.config.NATS = config

	return b
}

// WithRedisConfig supplies Redis connection settings.
func (b *CacheBuilder) WithRedisConfig(config *RedisCacheConfig) *CacheBuilder {
	b.config.Redis = config

	return b
}

// WithOptions applies backend-independent tuning.
func (b *CacheBuilder) WithOptions(options *CacheOptions) *CacheBuilder {
	b.config.Options = options

	return b
}

// Build constructs the configured backend.
func (b *CacheBuilder) Build() (Cache, error) {
	return NewCacheFromConfig(b.config)
}

// CacheChain reads through an ordered list of caches, front to back. A hit at
// a deeper level is promoted into every level before it, so hot entries
// migrate toward the front. Writes and deletes reach every level.
type CacheChain struct {
	levels []Cache
}

// NewCacheChain orders the given caches front (fastest) to back.
func NewCacheChain(caches ...Cache) *CacheChain {
	return &CacheChain{levels: caches}
}

// Get returns the first hit, promoting it into the levels in front.
func (c *CacheChain) Get(ctx context.Context, key string) (*CacheEntry, error) {
	for depth, level := range c.levels {
		entry, err := level.Get(ctx, key)
		if err != nil {
			continue
		}

		c.promote(ctx, key, entry, depth)

		return entry, nil
	}

	return nil, ErrKeyNotFoundInAnyCache
}

// promote copies a hit into every level shallower than depth.
func (c *CacheChain) promote(ctx context.Context, key string, entry *CacheEntry, depth int) {
	for i := 0; i < depth; i++ {
		_ = c.levels[i].Set(ctx, key, entry)
	}
}

// Set stores the entry at every level, returning the last failure if any.
func (c *CacheChain) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return c.eachLevel(func(level Cache) error {
		return level.Set(ctx, key, entry)
	})
}

// Delete removes the key from every level.
func (c *CacheChain) Delete(ctx context.Context, key string) error {
	return c.eachLevel(func(level Cache) error {
		return level.Delete(ctx, key)
	})
}

// Clear empties every level.
func (c *CacheChain) Clear(ctx context.Context) error {
	return c.eachLevel(func(level Cache) error {
		return level.Clear(ctx)
	})
}

// Has reports whether any level holds the key.
func (c *CacheChain) Has(ctx context.Context, key string) bool {
	for _, level := range c.levels {
		if level.Has(ctx, key) {
			return true
		}
	}

	return false
}

// eachLevel applies op to every level, keeping the last error so one failing
// level does not stop the others.
func (c *CacheChain) eachLevel(op func(Cache) error) error {
	var lastErr error

	for _, level := range c.levels {
		if err := op(level); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
