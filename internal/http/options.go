package http

import (
	nethttp "net/http"
	"time"

	"github.com/joshwilhelmi/tcgplayer-go/pkg/tcgplayer"
)

// Logger interface for HTTP client logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Option configures the HTTP client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging through the configured logger.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(policy *tcgplayer.RetryPolicy) Option {
	return func(c *Client) {
		if policy != nil {
			c.policy = policy
		}
	}
}

// WithRetryConfig tunes retry count and backoff bounds while keeping the
// default method and status rules. retryMax is the number of retries after
// the initial attempt.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		policy := tcgplayer.DefaultRetryPolicy()
		policy.MaxAttempts = retryMax + 1
		policy.BaseDelay = waitMin
		policy.MaxDelay = waitMax
		policy.JitterBound = waitMin / 2
		c.policy = policy
	}
}

// WithRateLimiter replaces the default rate limiter.
func WithRateLimiter(limiter *tcgplayer.RateLimiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithCacheManager sets the response cache.
func WithCacheManager(cache *tcgplayer.CacheManager) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithCacheTTL sets the time-to-live for cached responses.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithInterceptors sets the interceptor chain run around every request.
func WithInterceptors(chain *tcgplayer.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics *tcgplayer.MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithHTTPTimeout sets the per-attempt timeout.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpTimeout = timeout
		}
	}
}

// WithPoolConfig sets the connection pool caps: total idle connections
// across hosts and connections per host.
func WithPoolConfig(poolSize, perHostSize int) Option {
	return func(c *Client) {
		if poolSize > 0 {
			c.poolSize = poolSize
		}

		if perHostSize > 0 {
			c.perHostSize = perHostSize
		}
	}
}

// WithSkipTLSVerify disables TLS certificate verification on the pooled
// transport. Callers are expected to gate this behind a development
// environment check; it has no effect when a custom transport is supplied.
func WithSkipTLSVerify(skip bool) Option {
	return func(c *Client) {
		c.skipTLS = skip
	}
}

// WithTransport overrides the underlying transport. Pool options are ignored
// when a custom transport is supplied.
func WithTransport(transport nethttp.RoundTripper) Option {
	return func(c *Client) {
		c.baseTransport = transport
	}
}
