package constants

import "time"

// API endpoints.
const (
	// DefaultAPIEndpoint is the TCGplayer marketplace API base URL.
	DefaultAPIEndpoint = "https://api.tcgplayer.com"

	// TokenPath is appended to the API endpoint to form the identity endpoint.
	TokenPath = "/token"
)

// Rate limiting.
const (
	// HardRateCeiling is the requests-per-second ceiling TCGplayer enforces.
	// Configured rates above this value are clamped, never honored.
	HardRateCeiling = 10

	// DefaultRequestsPerSecond is the default outbound request rate.
	DefaultRequestsPerSecond = 10

	// RateWindow is the accounting window for the fixed-window limiter.
	RateWindow = time.Second
)

// Request and handshake timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for a single HTTP attempt.
	DefaultHTTPTimeout = 30 * time.Second

	// TokenHTTPTimeout is the timeout for identity-endpoint exchanges.
	TokenHTTPTimeout = 15 * time.Second

	// DefaultIdleConnTimeout is how long idle pooled connections are kept.
	DefaultIdleConnTimeout = 90 * time.Second

	// DefaultTLSHandshakeTimeout bounds the TLS handshake.
	DefaultTLSHandshakeTimeout = 10 * time.Second
)

// Connection pooling.
const (
	// DefaultConnectionPoolSize is the overall idle connection cap.
	DefaultConnectionPoolSize = 100

	// DefaultPerHostPoolSize caps idle and total connections per host.
	DefaultPerHostPoolSize = 10
)

// Retry and backoff.
const (
	// DefaultRetryMaxAttempts is the default total number of attempts.
	DefaultRetryMaxAttempts = 3

	// DefaultRetryBaseDelay is the first backoff step.
	DefaultRetryBaseDelay = 1 * time.Second

	// DefaultRetryMaxDelay caps any single backoff wait.
	DefaultRetryMaxDelay = 10 * time.Second

	// DefaultRetryJitterBound is the additive jitter upper bound.
	DefaultRetryJitterBound = 500 * time.Millisecond

	// ExponentialBackoffBase is the growth factor between backoff steps.
	ExponentialBackoffBase = 2

	// MaxRetryAfter caps server-supplied Retry-After values.
	MaxRetryAfter = time.Hour
)

// Token lifecycle.
const (
	// TokenRefreshMargin is the safety margin before expiry at which a
	// token is considered stale and refreshed.
	TokenRefreshMargin = 30 * time.Second
)

// Cache sizing.
const (
	// DefaultCacheSize is the default cache entry limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is how long entries live when no TTL is configured.
	DefaultCacheTTL = 5 * time.Minute

	// CacheMinTTL is the floor applied to configured cache TTLs.
	CacheMinTTL = 30 * time.Second

	// DefaultCacheCleanupInterval is how often the memory cache sweeps
	// expired entries.
	DefaultCacheCleanupInterval = time.Minute

	// MaxCacheValueSize caps a single cached response body (1MB).
	MaxCacheValueSize = 1024 * 1024
)

// Filesystem permissions for persisted state.
const (
	// ConfigDirPerm is the mode for created config and token directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the mode for persisted token and config files.
	ConfigFilePerm = 0600
)

// Client identity.
const (
	// Version is the library version reported in the User-Agent.
	Version = "1.0.0"

	// DefaultUserAgent identifies this client to the API.
	DefaultUserAgent = "tcgplayer-go/" + Version
)

// Batch execution.
const (
	// DefaultBatchConcurrency limits concurrent batch operations.
	DefaultBatchConcurrency = 3

	// MaxBatchConcurrency is the upper bound for configured batch workers.
	MaxBatchConcurrency = 10

	// DefaultBatchTimeout bounds each operation in a batch.
	DefaultBatchTimeout = 5 * time.Minute
)

// Pagination.
const (
	// DefaultPageLimit is the default number of items per page.
	DefaultPageLimit = 10

	// MaxPageLimit is the largest page size the API accepts.
	MaxPageLimit = 100

	// MaxPages prevents infinite loops in pagination.
	MaxPages = 1000
)
