package tcgplayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

// NATSKVConfig configures the NATS JetStream key-value cache backend.
type NATSKVConfig struct {
	// URL is the NATS server URL (comma-separated for clusters).
	URL string

	// Bucket is the KV bucket name holding cache entries.
	Bucket string

	// CreateBucket creates the bucket when it does not exist.
	CreateBucket bool

	// Replicas is the bucket replication factor when created here.
	Replicas int

	// TTL is the bucket-level TTL applied when the bucket is created here.
	// Entries also carry their own expiry, so shorter per-entry TTLs are
	// honored regardless.
	TTL time.Duration

	// Username and Password authenticate the connection when set.
	Username string
	Password string

	// Token authenticates the connection when set.
	Token string

	// Timeout bounds the initial connect.
	Timeout time.Duration
}

// NATSKVCache stores cache entries in a NATS JetStream key-value bucket,
// letting multiple client processes share one response cache.
type NATSKVCache struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

// NewNATSKVCache connects to NATS and opens (or creates) the bucket.
func NewNATSKVCache(config *NATSKVConfig) (*NATSKVCache, error) {
	if config == nil {
		return nil, ErrNATSConfigRequired
	}

	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = constants.TokenHTTPTimeout
	}

	opts := []nats.Option{
		nats.Name("tcgplayer-go cache"),
		nats.Timeout(timeout),
	}

	if config.Username != "" {
		opts = append(opts, nats.UserInfo(config.Username, config.Password))
	}

	if config.Token != "" {
		opts = append(opts, nats.Token(config.Token))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to open JetStream context: %w", err)
	}

	kv, err := js.KeyValue(config.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) && config.CreateBucket {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:   config.Bucket,
			TTL:      config.TTL,
			Replicas: config.Replicas,
		})
	}

	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to open KV bucket %q: %w", config.Bucket, err)
	}

	return &NATSKVCache{conn: conn, kv: kv}, nil
}

// Get returns the entry for key, honoring its embedded expiry.
func (c *NATSKVCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	kvEntry, err := c.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCacheKeyNotFound, key)
		}

		return nil, fmt.Errorf("failed to read KV entry: %w", err)
	}

	var entry CacheEntry

	err = json.Unmarshal(kvEntry.Value(), &entry)
	if err != nil {
		return nil, fmt.Errorf("failed to decode KV entry: %w", err)
	}

	if entry.Expired() {
		_ = c.kv.Purge(key)

		return nil, fmt.Errorf("%w: %s", ErrCacheEntryExpired, key)
	}

	return &entry, nil
}

// Set stores the entry under key.
func (c *NATSKVCache) Set(_ context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode KV entry: %w", err)
	}

	_, err = c.kv.Put(key, data)
	if err != nil {
		return fmt.Errorf("failed to write KV entry: %w", err)
	}

	return nil
}

// Delete removes the entry for key.
func (c *NATSKVCache) Delete(_ context.Context, key string) error {
	err := c.kv.Purge(key)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to purge KV entry: %w", err)
	}

	return nil
}

// Clear removes every entry in the bucket.
func (c *NATSKVCache) Clear(_ context.Context) error {
	keys, err := c.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil
		}

		return fmt.Errorf("failed to list KV keys: %w", err)
	}

	for _, key := range keys {
		err = c.kv.Purge(key)
		if err != nil {
			return fmt.Errorf("failed to purge KV entry: %w", err)
		}
	}

	return nil
}

// Has reports whether key is present and unexpired.
func (c *NATSKVCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Close drops the NATS connection.
func (c *NATSKVCache) Close() error {
	c.conn.Close()

	return nil
}
