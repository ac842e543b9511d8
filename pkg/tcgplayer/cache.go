package tcgplayer

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

// Cache is the storage backend for idempotent response bodies. Backend
// faults must be returned, never swallowed; the CacheManager decides how to
// degrade.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// CacheEntry is a stored response body with its expiry.
type CacheEntry struct {
	Data      []byte    `json:"data"       yaml:"data"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
	ETag      string    `json:"etag"       yaml:"etag"`
}

// Expired reports whether the entry is past its TTL.
func (e *CacheEntry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// CacheOptions carries backend-independent cache tuning.
type CacheOptions struct {
	// TTL is the default time-to-live for stored entries.
	TTL time.Duration

	// MaxSize is the entry-count limit for bounded backends.
	MaxSize int

	// EnableETags stores response ETags alongside bodies.
	EnableETags bool
}

// DefaultCacheOptions returns the default cache tuning.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		TTL:         constants.DefaultCacheTTL,
		MaxSize:     constants.DefaultCacheSize,
		EnableETags: true,
	}
}

// MemoryCache is an in-process Cache with TTL expiry and LRU eviction. One
// mutex covers both the key map and the recency list, so a lookup and its
// recency update are a single atomic step.
type MemoryCache struct {
	mu          sync.Mutex
	maxSize     int
	entries     map[string]*list.Element
	order       *list.List
	janitorStop chan struct{}
}

type memoryCacheItem struct {
	key   string
	entry *CacheEntry
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
// Once full, the least recently used entry is evicted regardless of its
// remaining TTL.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = constants.DefaultCacheSize
	}

	return &MemoryCache{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the entry for key. Expired entries are removed lazily and
// reported as expired; a hit refreshes the entry's recency.
func (c *MemoryCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheKeyNotFound, key)
	}

	item, _ := element.Value.(*memoryCacheItem)
	if item.entry.Expired() {
		c.removeElement(element)

		return nil, fmt.Errorf("%w: %s", ErrCacheEntryExpired, key)
	}

	c.order.MoveToFront(element)

	return item.entry, nil
}

// Set stores the entry, evicting the least recently used entry when the
// cache is full.
func (c *MemoryCache) Set(_ context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		item, _ := element.Value.(*memoryCacheItem)
		item.entry = entry
		c.order.MoveToFront(element)

		return nil
	}

	element := c.order.PushFront(&memoryCacheItem{key: key, entry: entry})
	c.entries[key] = element

	for len(c.entries) > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}

		c.removeElement(oldest)
	}

	return nil
}

// Delete removes the entry for key, if present.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		c.removeElement(element)
	}

	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()

	return nil
}

// Has reports whether key is present and unexpired.
func (c *MemoryCache) Has(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		return false
	}

	item, _ := element.Value.(*memoryCacheItem)

	return !item.entry.Expired()
}

// Cleanup removes all expired entries.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for element := c.order.Back(); element != nil; {
		previous := element.Prev()

		item, _ := element.Value.(*memoryCacheItem)
		if item.entry.Expired() {
			c.removeElement(element)
		}

		element = previous
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// StartJanitor launches a background sweep that removes expired entries every
// interval. Expired entries are otherwise only dropped lazily on access, so
// rarely-read keys would pin memory until evicted. At most one janitor runs;
// it stops on Close.
func (c *MemoryCache) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = constants.DefaultCacheCleanupInterval
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.janitorStop != nil {
		return
	}

	stop := make(chan struct{})
	c.janitorStop = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.Cleanup()
			}
		}
	}()
}

// Close stops the janitor, if one was started. The cache remains usable.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.janitorStop != nil {
		close(c.janitorStop)
		c.janitorStop = nil
	}

	return nil
}

// removeElement drops an entry from both the map and the recency list.
// Callers must hold the mutex.
func (c *MemoryCache) removeElement(element *list.Element) {
	item, _ := element.Value.(*memoryCacheItem)
	delete(c.entries, item.key)
	c.order.Remove(element)
}

// CacheStats counts cache manager traffic.
type CacheStats struct {
	Hits   int64 `json:"hits"   yaml:"hits"`
	Misses int64 `json:"misses" yaml:"misses"`
	Sets   int64 `json:"sets"   yaml:"sets"`
}

// GetHitRate returns hits / (hits + misses), or zero with no traffic.
func (s *CacheStats) GetHitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// CacheManager wraps a Cache with request fingerprinting, a caching policy,
// and hit/miss accounting. A nil backend disables caching.
type CacheManager struct {
	cache  Cache
	policy *CachingPolicy
	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewCacheManager creates a manager over the given backend and policy. A nil
// policy takes the default.
func NewCacheManager(cache Cache, policy *CachingPolicy) *CacheManager {
	if policy == nil {
		policy = DefaultCachingPolicy()
	}

	return &CacheManager{
		cache:  cache,
		policy: policy,
	}
}

// GetCacheKey builds the fingerprint for a cache-eligible request: a SHA-256
// over method, normalized path, and sorted query parameters. Two requests
// differing only in parameter order share a fingerprint; the body is ignored
// because cache-eligible requests carry none. Hex output keeps keys valid
// for every backend key charset.
func (m *CacheManager) GetCacheKey(method, path string, query url.Values) string {
	hasher := sha256.New()
	hasher.Write([]byte(strings.ToUpper(method)))
	hasher.Write([]byte{'\n'})
	hasher.Write([]byte(normalizePath(path)))
	hasher.Write([]byte{'\n'})
	hasher.Write([]byte(normalizeQuery(query)))

	return hex.EncodeToString(hasher.Sum(nil))
}

// Get returns the cached body for key, counting hits and misses. Every
// failure, including backend faults, reports as a miss to the caller.
func (m *CacheManager) Get(ctx context.Context, key string) ([]byte, error) {
	if m.cache == nil {
		m.misses.Add(1)

		return nil, ErrCacheKeyNotFound
	}

	entry, err := m.cache.Get(ctx, key)
	if err != nil {
		m.misses.Add(1)

		return nil, err
	}

	if entry.Expired() {
		m.misses.Add(1)

		return nil, fmt.Errorf("%w: %s", ErrCacheEntryExpired, key)
	}

	m.hits.Add(1)

	return entry.Data, nil
}

// Set stores a body under key with the given TTL.
func (m *CacheManager) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return m.SetWithETag(ctx, key, data, "", ttl)
}

// SetWithETag stores a body with its ETag under key.
func (m *CacheManager) SetWithETag(ctx context.Context, key string, data []byte, etag string, ttl time.Duration) error {
	if m.cache == nil {
		return nil
	}

	if len(data) > constants.MaxCacheValueSize {
		return fmt.Errorf("%w: %d bytes", ErrCacheValueTooLarge, len(data))
	}

	entry := &CacheEntry{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
		ETag:      etag,
	}

	err := m.cache.Set(ctx, key, entry)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	m.sets.Add(1)

	return nil
}

// Invalidate removes the entry for key.
func (m *CacheManager) Invalidate(ctx context.Context, key string) error {
	if m.cache == nil {
		return nil
	}

	return m.cache.Delete(ctx, key)
}

// Clear removes every cached entry.
func (m *CacheManager) Clear(ctx context.Context) error {
	if m.cache == nil {
		return nil
	}

	return m.cache.Clear(ctx)
}

// ShouldCache consults the policy for this request and response status.
func (m *CacheManager) ShouldCache(method, path string, status int) bool {
	return m.policy.ShouldCache(method, path, status)
}

// GetStats returns a snapshot of hit/miss/set counts.
func (m *CacheManager) GetStats() CacheStats {
	return CacheStats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Sets:   m.sets.Load(),
	}
}

// GetHitRate returns the hit rate across the manager's lifetime.
func (m *CacheManager) GetHitRate() float64 {
	stats := m.GetStats()

	return stats.GetHitRate()
}

// CachingPolicy decides which requests are cacheable. The zero value caches
// nothing; use DefaultCachingPolicy for the GET-only default.
type CachingPolicy struct {
	// CacheGET enables caching GET responses.
	CacheGET bool

	// CachePOST enables caching POST responses. Off by default: POST is
	// not idempotent.
	CachePOST bool

	// CacheErrors enables caching non-2xx responses.
	CacheErrors bool

	// IncludePaths, when non-empty, restricts caching to paths with one of
	// these prefixes.
	IncludePaths []string

	// ExcludePaths lists path prefixes never cached.
	ExcludePaths []string
}

// DefaultCachingPolicy caches successful GET responses everywhere except the
// application-authorization endpoint, whose authorization codes are one-shot.
func DefaultCachingPolicy() *CachingPolicy {
	return &CachingPolicy{
		CacheGET:     true,
		ExcludePaths: []string{"/app/authorize"},
	}
}

// ShouldCache reports whether a response for this method, path, and status
// may be stored or served.
func (p *CachingPolicy) ShouldCache(method, path string, status int) bool {
	if p == nil {
		return false
	}

	switch strings.ToUpper(method) {
	case http.MethodGet:
		if !p.CacheGET {
			return false
		}
	case http.MethodPost:
		if !p.CachePOST {
			return false
		}
	default:
		return false
	}

	if !p.CacheErrors && (status < 200 || status >= 300) {
		return false
	}

	for _, excluded := range p.ExcludePaths {
		if strings.HasPrefix(path, excluded) {
			return false
		}
	}

	if len(p.IncludePaths) > 0 {
		for _, included := range p.IncludePaths {
			if strings.HasPrefix(path, included) {
				return true
			}
		}

		return false
	}

	return true
}

// normalizePath collapses trailing slashes so /catalog/categories and
// /catalog/categories/ share a fingerprint.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}

	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return path
}

// normalizeQuery renders query parameters with sorted keys and sorted
// values, making the fingerprint order-independent.
func normalizeQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	var b strings.Builder

	for i, key := range keys {
		values := append([]string(nil), query[key]...)
		sort.Strings(values)

		for j, value := range values {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}

			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value))
		}
	}

	return b.String()
}
