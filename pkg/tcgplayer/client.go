package tcgplayer

import (
	"context"
	"time"
)

// Client is the high-level interface for talking to the TCGplayer API.
//
// Every call funnels through Execute, which runs the full request pipeline:
// cache lookup, rate limiting, bearer-token injection, retry with backoff,
// and cache population. The verb helpers are thin wrappers over Execute.
type Client interface {
	// Execute performs a single API request through the full pipeline.
	Execute(ctx context.Context, req *Request) (*Response, error)

	// Get performs a GET request. Params may be nil.
	Get(ctx context.Context, path string, params *QueryParams) (*Response, error)
	// Post performs a POST request. Body may be nil.
	Post(ctx context.Context, path string, body interface{}) (*Response, error)
	// Put performs a PUT request. Body may be nil.
	Put(ctx context.Context, path string, body interface{}) (*Response, error)
	// Delete performs a DELETE request.
	Delete(ctx context.Context, path string) (*Response, error)

	// Token returns the current bearer token, refreshing it first if it is
	// missing or about to expire.
	Token(ctx context.Context) (string, error)
	// TokenInfo reports whether the client currently holds a valid token and
	// when it expires. It never triggers a refresh.
	TokenInfo() TokenInfo

	// RateLimiterStats reports the state of the request rate limiter.
	RateLimiterStats() RateLimiterStats
	// CacheStats reports cache hit/miss counters for this client.
	CacheStats() CacheStats
	// InvalidateCache removes the cached response for a single request shape.
	InvalidateCache(ctx context.Context, method, path string, params *QueryParams) error
	// ClearCache drops every cached response held by this client.
	ClearCache(ctx context.Context) error

	// Close releases pooled connections and any cache backend connections.
	Close() error
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a tcgplayer.Client.
//
// # Authentication precedence
//
// The following precedence is applied by the concrete client implementation
// (see pkg/tcgclient and internal/client):
//  1. BearerToken: if set, it is used directly as a static Bearer token and
//     ClientID/ClientSecret are ignored. Static tokens are never refreshed.
//  2. ClientID/ClientSecret: uses the OAuth2 client_credentials grant against
//     TokenURL. Tokens are cached and refreshed automatically shortly before
//     expiry; concurrent callers share a single refresh.
//  3. No credentials: construction fails. The API rejects anonymous calls, so
//     an unauthenticated client is never useful.
//
// # Rate limiting
//
// MaxRequestsPerSecond is clamped to the service ceiling of 10. Values above
// the ceiling are reduced, not rejected, and the clamp is logged once at
// construction. Every physical request attempt, including retries, consumes
// one slot; token endpoint calls do not.
//
// # Timeouts and retries
//
// Per-request deadlines should generally be controlled via the context passed
// to client methods; HTTPTimeout is the outer safety net per attempt. Retry
// behavior can be tuned via RetryMaxAttempts/RetryBaseDelay/RetryMaxDelay,
// or replaced wholesale with RetryPolicy.
type Config struct {
	// Required fields
	// APIEndpoint: base URL for the TCGplayer API. Defaults to
	// "https://api.tcgplayer.com". Normalized by trimming a trailing slash
	// and adding "https://" if no scheme is present.
	APIEndpoint string

	// Authentication options (provide one)
	// ClientID: public key of a TCGplayer application, used with the OAuth2
	// client_credentials grant.
	ClientID string
	// ClientSecret: private key used with ClientID.
	ClientSecret string
	// BearerToken: if set, used directly as a static Bearer token. No refresh
	// is attempted when it expires.
	BearerToken string
	// TokenURL: full OAuth2 token endpoint. If empty it defaults to
	// APIEndpoint + "/token".
	TokenURL string
	// TokenRefreshMargin: how long before expiry a token is treated as stale
	// and refreshed. Defaults to 30 seconds.
	TokenRefreshMargin time.Duration
	// TokenCachePath: when set, issued tokens are persisted to this file and
	// reloaded on startup, so restarts reuse a still-valid token instead of
	// performing a fresh exchange.
	TokenCachePath string

	// Rate limiting
	// MaxRequestsPerSecond: request budget per one-second window. Defaults to
	// 10 and is clamped to 10, the documented service ceiling.
	MaxRequestsPerSecond int

	// Retry behavior
	// RetryMaxAttempts: total attempts per request including the first.
	// Defaults to 3.
	RetryMaxAttempts int
	// RetryBaseDelay: backoff before the first retry. Defaults to 1s.
	RetryBaseDelay time.Duration
	// RetryMaxDelay: upper bound on any single backoff. Defaults to 10s.
	RetryMaxDelay time.Duration
	// RetryPolicy: full retry policy override. When set, the individual
	// Retry* fields above are ignored.
	RetryPolicy *RetryPolicy

	// Caching
	// DisableCache: turns response caching off entirely. When false (the
	// default) an in-memory TTL+LRU cache is used unless Cache selects
	// another backend.
	DisableCache bool
	// CacheTTL: lifetime of a cached response. Defaults to 5 minutes.
	CacheTTL time.Duration
	// CacheMaxSize: maximum number of cached responses before the least
	// recently used entry is evicted. Defaults to 1000.
	CacheMaxSize int
	// Cache: optional backend selection (memory, NATS JetStream KV, Redis).
	// When set, CacheTTL/CacheMaxSize seed its Options unless already set.
	Cache *CacheConfig

	// Connection pooling
	// ConnectionPoolSize: cap on idle connections across all hosts.
	// Defaults to 100.
	ConnectionPoolSize int
	// PerHostPoolSize: cap on connections per host. Defaults to 10.
	PerHostPoolSize int
	// HTTPTimeout: per-attempt HTTP timeout. Defaults to 30s.
	HTTPTimeout time.Duration
	// SkipTLSVerify: skips TLS certificate verification. Only for development
	// against self-signed endpoints; never set this in production.
	SkipTLSVerify bool

	// Optional configurations
	// Debug: enables verbose HTTP request/response logging when a Logger is
	// provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer and helpers.
	Logger Logger
	// UserAgent: overrides the default User-Agent header sent by the client.
	UserAgent string
	// Metrics: optional Prometheus collector. Nil disables instrumentation.
	Metrics *MetricsCollector
}

// HasCredentials reports whether the config carries any usable credentials.
func (c *Config) HasCredentials() bool {
	return c.BearerToken != "" || (c.ClientID != "" && c.ClientSecret != "")
}
