// Package client assembles the concrete tcgplayer.Client: it normalizes
// configuration, selects the token strategy, builds the rate limiter and
// cache, and wires them into the orchestrated HTTP pipeline.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joshwilhelmi/tcgplayer-go/internal/auth"
	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
	"github.com/joshwilhelmi/tcgplayer-go/internal/http"
	"github.com/joshwilhelmi/tcgplayer-go/pkg/tcgplayer"
)

// Static errors for err113 compliance.
var (
	ErrInvalidEndpoint          = errors.New("invalid API endpoint")
	ErrNoTokenManagerConfigured = errors.New("no token manager configured")
)

// Client implements the tcgplayer.Client interface.
type Client struct {
	httpClient   *http.Client
	tokenManager auth.TokenManager
	cacheBackend tcgplayer.Cache
	baseURL      string
	logger       tcgplayer.Logger
}

// New creates a client from config. Construction validates configuration and
// may read a persisted token from disk, but never performs network calls:
// the first API request triggers the first token exchange.
func New(ctx context.Context, config *tcgplayer.Config) (*Client, error) {
	if config == nil {
		return nil, tcgplayer.ErrConfigRequired
	}

	if !config.HasCredentials() {
		return nil, tcgplayer.ErrMissingCredentials
	}

	endpoint, err := normalizeEndpoint(config.APIEndpoint)
	if err != nil {
		return nil, err
	}

	tokenManager, err := createTokenManager(config, endpoint)
	if err != nil {
		return nil, err
	}

	return assemble(config, endpoint, tokenManager)
}

// NewWithTokenManager creates a client with a caller-supplied token manager.
// Credential fields on the config are ignored.
func NewWithTokenManager(config *tcgplayer.Config, tokenManager auth.TokenManager) (*Client, error) {
	if config == nil {
		return nil, tcgplayer.ErrConfigRequired
	}

	if tokenManager == nil {
		return nil, ErrNoTokenManagerConfigured
	}

	endpoint, err := normalizeEndpoint(config.APIEndpoint)
	if err != nil {
		return nil, err
	}

	return assemble(config, endpoint, tokenManager)
}

func assemble(config *tcgplayer.Config, endpoint string, tokenManager auth.TokenManager) (*Client, error) {
	if config.SkipTLSVerify && !isDevelopmentEnvironment() {
		return nil, fmt.Errorf("%w (set TCGPLAYER_DEV_MODE=true)", tcgplayer.ErrSkipTLSOnlyInDev)
	}

	limiter := createRateLimiter(config)

	cacheManager, cacheBackend, err := createCache(config)
	if err != nil {
		return nil, err
	}

	httpOpts := createHTTPClientOptions(config, limiter, cacheManager)

	return &Client{
		httpClient:   http.NewClient(endpoint, tokenManager, httpOpts...),
		tokenManager: tokenManager,
		cacheBackend: cacheBackend,
		baseURL:      endpoint,
		logger:       config.Logger,
	}, nil
}

// isDevelopmentEnvironment checks whether insecure TLS settings are allowed.
func isDevelopmentEnvironment() bool {
	devMode := os.Getenv("TCGPLAYER_DEV_MODE")

	return devMode == "true" || devMode == "1"
}

// normalizeEndpoint applies the default endpoint, prepends https when no
// scheme is present, and trims a trailing slash.
func normalizeEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		endpoint = constants.DefaultAPIEndpoint
	}

	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}

	return strings.TrimSuffix(endpoint, "/"), nil
}

// createTokenManager selects the token strategy based on config: a static
// bearer token wins over client credentials, and a token cache path wraps
// the OAuth2 manager with file persistence.
func createTokenManager(config *tcgplayer.Config, endpoint string) (auth.TokenManager, error) {
	if config.BearerToken != "" {
		return auth.NewStaticTokenManager(config.BearerToken), nil
	}

	oauthConfig := &auth.OAuth2Config{
		TokenURL:      tokenURL(config, endpoint),
		ClientID:      config.ClientID,
		ClientSecret:  config.ClientSecret,
		RefreshMargin: config.TokenRefreshMargin,
		UserAgent:     config.UserAgent,
	}

	if config.SkipTLSVerify {
		oauthConfig.HTTPClient = &nethttp.Client{
			Timeout: constants.TokenHTTPTimeout,
			Transport: &nethttp.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- Gated by the development environment check in assemble
			},
		}
	}

	if config.Metrics != nil {
		metrics := config.Metrics
		oauthConfig.OnRefresh = func(err error) {
			if err != nil {
				metrics.RecordTokenRefresh("failure")
			} else {
				metrics.RecordTokenRefresh("success")
			}
		}
	}

	if config.TokenCachePath == "" {
		return auth.NewOAuth2TokenManager(oauthConfig), nil
	}

	persister := auth.NewFileTokenPersister(config.TokenCachePath)

	initialToken, initialExpiry, err := persister.LoadToken(endpoint)
	if err != nil {
		return nil, fmt.Errorf("loading persisted token: %w", err)
	}

	return auth.NewPersistentTokenManager(oauthConfig, persister, endpoint, initialToken, initialExpiry), nil
}

// tokenURL returns the configured token endpoint or the API default.
func tokenURL(config *tcgplayer.Config, endpoint string) string {
	if config.TokenURL != "" {
		return config.TokenURL
	}

	return endpoint + constants.TokenPath
}

// createRateLimiter builds the fixed-window limiter, warning once when the
// configured rate was clamped to the service ceiling.
func createRateLimiter(config *tcgplayer.Config) *tcgplayer.RateLimiter {
	rate := config.MaxRequestsPerSecond
	if rate <= 0 {
		rate = constants.DefaultRequestsPerSecond
	}

	limiter := tcgplayer.NewRateLimiter(rate)

	if limiter.Clamped() && config.Logger != nil {
		config.Logger.Warn("Rate Limit Clamped", map[string]interface{}{
			"requested": rate,
			"ceiling":   limiter.Limit(),
		})
	}

	return limiter
}

// createCache builds the cache manager unless caching is disabled. The raw
// backend is returned as well so Close can release its connections.
func createCache(config *tcgplayer.Config) (*tcgplayer.CacheManager, tcgplayer.Cache, error) {
	if config.DisableCache {
		return nil, nil, nil
	}

	cacheConfig := config.Cache
	if cacheConfig == nil {
		maxSize := config.CacheMaxSize
		if maxSize <= 0 {
			maxSize = constants.DefaultCacheSize
		}

		cacheConfig = &tcgplayer.CacheConfig{
			Type: tcgplayer.CacheTypeMemory,
			Memory: &tcgplayer.MemoryCacheConfig{
				MaxSize:         maxSize,
				CleanupInterval: "1m",
			},
		}
	}

	if cacheConfig.Options == nil {
		options := tcgplayer.DefaultCacheOptions()
		options.TTL = effectiveCacheTTL(config)

		if config.CacheMaxSize > 0 {
			options.MaxSize = config.CacheMaxSize
		}

		cacheConfig.Options = options
	}

	backend, err := tcgplayer.NewCacheFromConfig(cacheConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("creating cache backend: %w", err)
	}

	return tcgplayer.NewCacheManager(backend, nil), backend, nil
}

// effectiveCacheTTL resolves the response TTL, enforcing the floor that keeps
// very short TTLs from turning the cache into a request amplifier.
func effectiveCacheTTL(config *tcgplayer.Config) time.Duration {
	ttl := config.CacheTTL

	if config.Cache != nil && config.Cache.Options != nil && config.Cache.Options.TTL > 0 {
		ttl = config.Cache.Options.TTL
	}

	if ttl <= 0 {
		return constants.DefaultCacheTTL
	}

	if ttl < constants.CacheMinTTL {
		return constants.CacheMinTTL
	}

	return ttl
}

// createHTTPClientOptions builds HTTP pipeline options from config.
func createHTTPClientOptions(
	config *tcgplayer.Config,
	limiter *tcgplayer.RateLimiter,
	cacheManager *tcgplayer.CacheManager,
) []http.Option {
	httpOpts := []http.Option{
		http.WithRateLimiter(limiter),
	}

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(&loggerAdapter{logger: config.Logger}))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if cacheManager != nil {
		httpOpts = append(httpOpts,
			http.WithCacheManager(cacheManager),
			http.WithCacheTTL(effectiveCacheTTL(config)),
		)
	}

	if policy := retryPolicyFromConfig(config); policy != nil {
		httpOpts = append(httpOpts, http.WithRetryPolicy(policy))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithHTTPTimeout(config.HTTPTimeout))
	}

	if config.ConnectionPoolSize > 0 || config.PerHostPoolSize > 0 {
		httpOpts = append(httpOpts, http.WithPoolConfig(config.ConnectionPoolSize, config.PerHostPoolSize))
	}

	if config.SkipTLSVerify {
		httpOpts = append(httpOpts, http.WithSkipTLSVerify(true))
	}

	if config.Metrics != nil {
		httpOpts = append(httpOpts, http.WithMetrics(config.Metrics))
	}

	return httpOpts
}

// retryPolicyFromConfig returns the retry policy implied by config, or nil
// when the defaults apply unchanged.
func retryPolicyFromConfig(config *tcgplayer.Config) *tcgplayer.RetryPolicy {
	if config.RetryPolicy != nil {
		return config.RetryPolicy
	}

	if config.RetryMaxAttempts <= 0 && config.RetryBaseDelay <= 0 && config.RetryMaxDelay <= 0 {
		return nil
	}

	policy := tcgplayer.DefaultRetryPolicy()

	if config.RetryMaxAttempts > 0 {
		policy.MaxAttempts = config.RetryMaxAttempts
	}

	if config.RetryBaseDelay > 0 {
		policy.BaseDelay = config.RetryBaseDelay
		policy.JitterBound = config.RetryBaseDelay / 2
	}

	if config.RetryMaxDelay > 0 {
		policy.MaxDelay = config.RetryMaxDelay
	}

	return policy
}

// Execute implements tcgplayer.Client.Execute.
func (c *Client) Execute(ctx context.Context, req *tcgplayer.Request) (*tcgplayer.Response, error) {
	return c.httpClient.Do(ctx, req)
}

// Get implements tcgplayer.Client.Get.
func (c *Client) Get(ctx context.Context, path string, params *tcgplayer.QueryParams) (*tcgplayer.Response, error) {
	return c.httpClient.Get(ctx, path, queryValues(params))
}

// Post implements tcgplayer.Client.Post.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*tcgplayer.Response, error) {
	return c.httpClient.Post(ctx, path, body)
}

// Put implements tcgplayer.Client.Put.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*tcgplayer.Response, error) {
	return c.httpClient.Put(ctx, path, body)
}

// Delete implements tcgplayer.Client.Delete.
func (c *Client) Delete(ctx context.Context, path string) (*tcgplayer.Response, error) {
	return c.httpClient.Delete(ctx, path)
}

// Token implements tcgplayer.Client.Token.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.tokenManager == nil {
		return "", ErrNoTokenManagerConfigured
	}

	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}

	return token, nil
}

// tokenInspector is implemented by managers that expose their stored token.
type tokenInspector interface {
	Current() *auth.Token
}

// TokenInfo implements tcgplayer.Client.TokenInfo. It never triggers a
// refresh.
func (c *Client) TokenInfo() tcgplayer.TokenInfo {
	inspector, ok := c.tokenManager.(tokenInspector)
	if !ok {
		return tcgplayer.TokenInfo{}
	}

	token := inspector.Current()
	if token == nil {
		return tcgplayer.TokenInfo{}
	}

	info := tcgplayer.TokenInfo{
		Authenticated: token.ValidFor(0),
	}

	if !token.ExpiresAt.IsZero() {
		info.ExpiresAt = token.ExpiresAt.Format(time.RFC3339)
	}

	return info
}

// RateLimiterStats implements tcgplayer.Client.RateLimiterStats.
func (c *Client) RateLimiterStats() tcgplayer.RateLimiterStats {
	return c.httpClient.RateLimiterStats()
}

// CacheStats implements tcgplayer.Client.CacheStats.
func (c *Client) CacheStats() tcgplayer.CacheStats {
	return c.httpClient.CacheStats()
}

// InvalidateCache implements tcgplayer.Client.InvalidateCache.
func (c *Client) InvalidateCache(ctx context.Context, method, path string, params *tcgplayer.QueryParams) error {
	return c.httpClient.InvalidateCache(ctx, method, path, queryValues(params))
}

// ClearCache implements tcgplayer.Client.ClearCache.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.httpClient.ClearCache(ctx)
}

// GetTokenManager returns the token manager for this client.
func (c *Client) GetTokenManager() auth.TokenManager {
	return c.tokenManager
}

// Close releases pooled connections and any cache backend connections.
func (c *Client) Close() error {
	c.httpClient.Close()

	if closer, ok := c.cacheBackend.(interface{ Close() error }); ok {
		err := closer.Close()
		if err != nil {
			return fmt.Errorf("closing cache backend: %w", err)
		}
	}

	return nil
}

func queryValues(params *tcgplayer.QueryParams) url.Values {
	if params == nil {
		return nil
	}

	return params.ToValues()
}

// loggerAdapter adapts tcgplayer.Logger to http.Logger.
type loggerAdapter struct {
	logger tcgplayer.Logger
}

func (l *loggerAdapter) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, fields)
}

func (l *loggerAdapter) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, fields)
}

func (l *loggerAdapter) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, fields)
}

func (l *loggerAdapter) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, fields)
}
