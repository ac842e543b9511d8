package tcgplayer_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshwilhelmi/tcgplayer-go/pkg/tcgplayer"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	t.Parallel()

	cache := tcgplayer.NewMemoryCache(10)
	ctx := context.Background()

	entry := &tcgplayer.CacheEntry{
		Data:      []byte(`{"results":[]}`),
		ExpiresAt: time.Now().Add(1 * time.Hour),
		ETag:      "abc123",
	}

	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)

	retrieved, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, entry.Data, retrieved.Data)
	assert.Equal(t, entry.ETag, retrieved.ETag)
}

func TestMemoryCache_GetNonExistent(t *testing.T) {
	t.Parallel()

	cache := tcgplayer.NewMemoryCache(10)

	_, err := cache.Get(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, tcgplayer.ErrCacheKeyNotFound)
}

func TestMemoryCache_GetExpired(t *testing.T) {
	t.Parallel()

	cache := tcgplayer.NewMemoryCache(10)
	ctx := context.Background()

	entry := &tcgplayer.CacheEntry{
		Data:      []byte("stale"),
		ExpiresAt: time.Now().Add(-1 * time.Hour), // Already expired
	}

	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)

	_, err = cache.Get(ctx, "key1")
	require.Error(t, err)
	assert.ErrorIs(t, err, tcgplayer.ErrCacheEntryExpired)

	// Expired entries are removed lazily on lookup.
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryCache_Delete(t *testing.T) {
	t.Parallel()

	cache := tcgplayer.NewMemoryCache(10)
	ctx := context.Background()

	entry := &tcgplayer.CacheEntry{
		Data:      []byte("data"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)
	assert.True(t, cache.Has(ctx, "key1"))

	err = cache.Delete(ctx, "key1")
	require.NoError(t, err)
	assert.False(t, cache.Has(ctx, "key1"))

	// Deleting a missing key is not an error.
	err = cache.Delete(ctx, "key1")
	require.NoError(t, err)
}

func TestMemoryCache_Clear(t *testing.T) {
	t.Parallel()

	cache := tcgplayer.NewMemoryCache(10)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		entry := &tcgplayer.CacheEntry{
			Data:      []byte("data"),
			ExpiresAt: time.Now().Add(1 * time.Hour),
		}
		_ = cache.Set(ctx, key, entry)
	}

	require.Equal(t, 3, cache.Len())

	err := cache.Clear(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, cache.Len())
	assert.False(t, cache.Has(ctx, "a"))
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	cache := tcgplayer.NewMemoryCache(2)
	ctx := context.Background()

	set := func(key string) {
		_ = cache.Set(ctx, key, &tcgplayer.CacheEntry{
			Data:      []byte(key),
			ExpiresAt: time.Now().Add(1 * time.Hour),
		})
	}

	set("a")
	set("b")

	// Touch "a" so "b" becomes the eviction candidate.
	_, err := cache.Get(ctx, "a")
	require.NoError(t, err)

	set("c")

	assert.True(t, cache.Has(ctx, "a"))
	assert.False(t, cache.Has(ctx, "b"))
	assert.True(t, cache.Has(ctx, "c"))
	assert.Equal(t, 2, cache.Len())
}

func TestMemoryCache_SetExistingKeyUpdates(t *testing.T) {
	t.Parallel()

	cache := tcgplayer.NewMemoryCache(2)
	ctx := context.Background()

	first := &tcgplayer.CacheEntry{Data: []byte("v1"), ExpiresAt: time.Now().Add(time.Hour)}
	second := &tcgplayer.CacheEntry{Data: []byte("v2"), ExpiresAt: time.Now().Add(time.Hour)}

	require.NoError(t, cache.Set(ctx, "key1", first))
	require.NoError(t, cache.Set(ctx, "key1", second))

	retrieved, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), retrieved.Data)
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCache_Cleanup(t *testing.T) {
	t.Parallel()

	cache := tcgplayer.NewMemoryCache(10)
	ctx := context.Background()

	_ = cache.Set(ctx, "expired", &tcgplayer.CacheEntry{
		Data:      []byte("expired"),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	})
	_ = cache.Set(ctx, "valid", &tcgplayer.CacheEntry{
		Data:      []byte("valid"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	})

	cache.Cleanup()

	assert.True(t, cache.Has(ctx, "valid"))
	assert.False(t, cache.Has(ctx, "expired"))
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCache_JanitorSweepsExpiredEntries(t *testing.T) {
	t.Parallel()

	cache := tcgplayer.NewMemoryCache(10)
	cache.StartJanitor(10 * time.Millisecond)
	// A second start is a no-op, not a second goroutine.
	cache.StartJanitor(10 * time.Millisecond)

	ctx := context.Background()
	_ = cache.Set(ctx, "shortlived", &tcgplayer.CacheEntry{
		Data:      []byte("x"),
		ExpiresAt: time.Now().Add(5 * time.Millisecond),
	})

	// The sweep drops the entry without any read touching it.
	assert.Eventually(t, func() bool { return cache.Len() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, cache.Close())
	require.NoError(t, cache.Close())
}

func TestCacheManager_GetCacheKey(t *testing.T) {
	t.Parallel()

	manager := tcgplayer.NewCacheManager(nil, nil)

	key := manager.GetCacheKey("GET", "/catalog/categories", nil)

	// SHA-256 hex fingerprint.
	assert.Len(t, key, 64)
	assert.Equal(t, strings.ToLower(key), key)

	// Method casing does not change the fingerprint.
	assert.Equal(t, key, manager.GetCacheKey("get", "/catalog/categories", nil))

	// Trailing slashes do not change the fingerprint.
	assert.Equal(t, key, manager.GetCacheKey("GET", "/catalog/categories/", nil))

	// A different path does.
	assert.NotEqual(t, key, manager.GetCacheKey("GET", "/catalog/groups", nil))

	// So does a different method.
	assert.NotEqual(t, key, manager.GetCacheKey("POST", "/catalog/categories", nil))
}

func TestCacheManager_GetCacheKeyQueryOrderIndependent(t *testing.T) {
	t.Parallel()

	manager := tcgplayer.NewCacheManager(nil, nil)

	first := url.Values{}
	first.Set("offset", "0")
	first.Set("limit", "10")

	second := url.Values{}
	second.Set("limit", "10")
	second.Set("offset", "0")

	keyA := manager.GetCacheKey("GET", "/catalog/categories", first)
	keyB := manager.GetCacheKey("GET", "/catalog/categories", second)
	assert.Equal(t, keyA, keyB)

	// Different parameter values produce a different fingerprint.
	second.Set("limit", "20")
	assert.NotEqual(t, keyA, manager.GetCacheKey("GET", "/catalog/categories", second))
}

func TestCacheManager_SetAndGet(t *testing.T) {
	t.Parallel()

	cache := tcgplayer.NewMemoryCache(10)
	manager := tcgplayer.NewCacheManager(cache, nil)
	ctx := context.Background()

	body := []byte(`{"success":true,"results":[1,2,3]}`)

	err := manager.Set(ctx, "key1", body, 1*time.Hour)
	require.NoError(t, err)

	data, err := manager.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, body, data)

	stats := manager.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestCacheManager_GetMissCounts(t *testing.T) {
	t.Parallel()

	manager := tcgplayer.NewCacheManager(tcgplayer.NewMemoryCache(10), nil)

	_, err := manager.Get(context.Background(), "missing")
	require.Error(t, err)

	stats := manager.GetStats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCacheManager_ExpiredEntryIsMiss(t *testing.T) {
	t.Parallel()

	cache := tcgplayer.NewMemoryCache(10)
	manager := tcgplayer.NewCacheManager(cache, nil)
	ctx := context.Background()

	err := manager.Set(ctx, "key1", []byte("data"), 1*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = manager.Get(ctx, "key1")
	require.Error(t, err)
	assert.ErrorIs(t, err, tcgplayer.ErrCacheEntryExpired)

	stats := manager.GetStats()
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCacheManager_NilBackend(t *testing.T) {
	t.Parallel()

	manager := tcgplayer.NewCacheManager(nil, nil)
	ctx := context.Background()

	// Sets are no-ops and gets are misses.
	err := manager.Set(ctx, "key1", []byte("data"), time.Hour)
	require.NoError(t, err)

	_, err = manager.Get(ctx, "key1")
	require.Error(t, err)

	require.NoError(t, manager.Invalidate(ctx, "key1"))
	require.NoError(t, manager.Clear(ctx))
}

func TestCacheManager_RejectsOversizedValues(t *testing.T) {
	t.Parallel()

	manager := tcgplayer.NewCacheManager(tcgplayer.NewMemoryCache(10), nil)

	huge := make([]byte, 2<<20) // 2 MiB, above the 1 MiB cap

	err := manager.Set(context.Background(), "key1", huge, time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, tcgplayer.ErrCacheValueTooLarge)
}

func TestCacheManager_SetWithETag(t *testing.T) {
	t.Parallel()

	cache := tcgplayer.NewMemoryCache(10)
	manager := tcgplayer.NewCacheManager(cache, nil)
	ctx := context.Background()

	err := manager.SetWithETag(ctx, "key1", []byte("data"), `W/"etag-1"`, time.Hour)
	require.NoError(t, err)

	entry, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, `W/"etag-1"`, entry.ETag)
}

func TestCacheManager_InvalidateAndClear(t *testing.T) {
	t.Parallel()

	manager := tcgplayer.NewCacheManager(tcgplayer.NewMemoryCache(10), nil)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "key1", []byte("one"), time.Hour))
	require.NoError(t, manager.Set(ctx, "key2", []byte("two"), time.Hour))

	require.NoError(t, manager.Invalidate(ctx, "key1"))

	_, err := manager.Get(ctx, "key1")
	require.Error(t, err)

	_, err = manager.Get(ctx, "key2")
	require.NoError(t, err)

	require.NoError(t, manager.Clear(ctx))

	_, err = manager.Get(ctx, "key2")
	require.Error(t, err)
}

func TestCacheManager_GetHitRate(t *testing.T) {
	t.Parallel()

	manager := tcgplayer.NewCacheManager(tcgplayer.NewMemoryCache(10), nil)
	ctx := context.Background()

	assert.Zero(t, manager.GetHitRate())

	require.NoError(t, manager.Set(ctx, "key1", []byte("data"), time.Hour))

	_, _ = manager.Get(ctx, "key1")   // hit
	_, _ = manager.Get(ctx, "absent") // miss

	assert.InDelta(t, 0.5, manager.GetHitRate(), 0.001)
}

func TestCachingPolicy_DefaultCachesOnlySuccessfulGETs(t *testing.T) {
	t.Parallel()

	policy := tcgplayer.DefaultCachingPolicy()

	assert.True(t, policy.ShouldCache(http.MethodGet, "/catalog/categories", http.StatusOK))
	assert.True(t, policy.ShouldCache("get", "/catalog/categories", http.StatusOK))

	// Mutating methods are never cached by default.
	assert.False(t, policy.ShouldCache(http.MethodPost, "/catalog/categories/1/search", http.StatusOK))
	assert.False(t, policy.ShouldCache(http.MethodPut, "/stores/1/inventory", http.StatusOK))
	assert.False(t, policy.ShouldCache(http.MethodDelete, "/orders/1", http.StatusOK))

	// Neither are error responses.
	assert.False(t, policy.ShouldCache(http.MethodGet, "/catalog/categories", http.StatusNotFound))
	assert.False(t, policy.ShouldCache(http.MethodGet, "/catalog/categories", http.StatusInternalServerError))

	// Authorization codes are one-shot and excluded.
	assert.False(t, policy.ShouldCache(http.MethodGet, "/app/authorize/code123", http.StatusOK))
}

func TestCachingPolicy_IncludePaths(t *testing.T) {
	t.Parallel()

	policy := &tcgplayer.CachingPolicy{
		CacheGET:     true,
		IncludePaths: []string{"/catalog/"},
	}

	assert.True(t, policy.ShouldCache(http.MethodGet, "/catalog/categories", http.StatusOK))
	assert.False(t, policy.ShouldCache(http.MethodGet, "/pricing/product/123", http.StatusOK))
}

func TestCachingPolicy_PostWhenEnabled(t *testing.T) {
	t.Parallel()

	policy := &tcgplayer.CachingPolicy{CacheGET: true, CachePOST: true}

	assert.True(t, policy.ShouldCache(http.MethodPost, "/catalog/categories/1/search", http.StatusOK))
}

func TestCachingPolicy_ZeroValueCachesNothing(t *testing.T) {
	t.Parallel()

	var policy tcgplayer.CachingPolicy

	assert.False(t, policy.ShouldCache(http.MethodGet, "/catalog/categories", http.StatusOK))
}
