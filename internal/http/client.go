// Package http implements the orchestrated HTTP client underneath the public
// API surface. Every logical request flows through one pipeline: validation,
// interceptors, cache lookup, then a retrying network call in which each
// physical attempt claims a rate limit slot and a bearer token.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
	"github.com/joshwilhelmi/tcgplayer-go/pkg/tcgplayer"
)

// Client orchestrates API requests: rate limiting, response caching, retry
// with backoff, and token attachment compose around one retrying HTTP client.
type Client struct {
	baseURL      string
	tokenManager TokenManager
	policy       *tcgplayer.RetryPolicy
	limiter      *tcgplayer.RateLimiter
	cache        *tcgplayer.CacheManager
	cacheTTL     time.Duration
	interceptors *tcgplayer.InterceptorChain
	metrics      *tcgplayer.MetricsCollector
	logger       Logger
	debug        bool
	userAgent    string
	httpTimeout  time.Duration
	poolSize     int
	perHostSize  int
	skipTLS      bool

	baseTransport nethttp.RoundTripper
	retryClient   *retryablehttp.Client
}

// NewClient creates an orchestrated client rooted at baseURL. A nil
// tokenManager sends unauthenticated requests; a nil cache manager disables
// caching.
func NewClient(baseURL string, tokenManager TokenManager, opts ...Option) *Client {
	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		tokenManager: tokenManager,
		policy:       tcgplayer.DefaultRetryPolicy(),
		limiter:      tcgplayer.NewRateLimiter(constants.DefaultRequestsPerSecond),
		cacheTTL:     constants.DefaultCacheTTL,
		userAgent:    constants.DefaultUserAgent,
		httpTimeout:  constants.DefaultHTTPTimeout,
		poolSize:     constants.DefaultConnectionPoolSize,
		perHostSize:  constants.DefaultPerHostPoolSize,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.baseTransport == nil {
		client.baseTransport = newPooledTransport(client.poolSize, client.perHostSize, client.skipTLS)
	}

	transport := &orchestratedTransport{
		base:      client.baseTransport,
		limiter:   client.limiter,
		tokens:    client.tokenManager,
		metrics:   client.metrics,
		userAgent: client.userAgent,
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &nethttp.Client{
		Transport: transport,
		Timeout:   client.httpTimeout,
	}
	// retryablehttp installs a stderr logger by default; all logging goes
	// through the hooks instead.
	retryClient.Logger = nil
	retryClient.RetryMax = client.policy.MaxAttempts - 1
	retryClient.RetryWaitMin = client.policy.BaseDelay
	retryClient.RetryWaitMax = client.policy.MaxDelay
	retryClient.CheckRetry = client.checkRetry
	retryClient.Backoff = client.backoff
	retryClient.ErrorHandler = client.errorHandler
	retryClient.RequestLogHook = client.requestLogHook

	client.retryClient = retryClient

	return client
}

// Do executes one logical API call. Error statuses return the response
// alongside the typed error so callers can still inspect headers and body.
//
//nolint:funlen // The request pipeline reads best as one sequence
func (c *Client) Do(ctx context.Context, req *tcgplayer.Request) (*tcgplayer.Response, error) {
	err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	if c.interceptors != nil {
		err = c.interceptors.ExecuteRequestInterceptors(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	requestID := uuid.NewString()

	cacheable := req.CacheEligible && c.cache != nil &&
		c.cache.ShouldCache(req.Method, req.Path, nethttp.StatusOK)

	var cacheKey string

	if cacheable {
		cacheKey = c.cache.GetCacheKey(req.Method, req.Path, req.Query)

		resp := c.cacheLookup(ctx, req, cacheKey)
		if resp != nil {
			return c.finishResponse(ctx, req, resp)
		}
	}

	httpReq, state, err := c.prepareRequest(ctx, req, requestID)
	if err != nil {
		return nil, err
	}

	c.metrics.RecordRequestStart(req.Method)
	defer c.metrics.RecordRequestEnd(req.Method)

	start := time.Now()

	rawResp, err := c.retryClient.Do(httpReq)

	elapsed := time.Since(start)

	attempts := 1
	if state != nil {
		attempts = int(state.attempts.Load())
	}

	if err != nil {
		return c.handleTransportError(ctx, req, rawResp, err, requestID, attempts, elapsed)
	}

	resp, err := readResponse(rawResp)
	if err != nil {
		c.metrics.RecordError(tcgplayer.ErrorTypeInvalidResponse, req.Method, req.Path)

		return nil, &tcgplayer.APIError{
			Type:      tcgplayer.ErrorTypeInvalidResponse,
			Message:   err.Error(),
			Attempts:  attempts,
			Elapsed:   elapsed,
			RequestID: requestID,
			Err:       err,
		}
	}

	c.metrics.RecordRequest(req.Method, req.Path, resp.StatusCode, elapsed)
	c.logResponse(req, resp, attempts, elapsed)

	if resp.StatusCode >= nethttp.StatusBadRequest {
		apiErr := c.errorFromResponse(req, resp, requestID, attempts, elapsed)
		c.metrics.RecordError(apiErr.Type, req.Method, req.Path)

		if c.interceptors != nil {
			_ = c.interceptors.ExecuteResponseInterceptors(ctx, req, resp)
		}

		return resp, apiErr
	}

	if cacheable && c.cache.ShouldCache(req.Method, req.Path, resp.StatusCode) {
		c.storeInCache(ctx, cacheKey, resp)
	}

	return c.finishResponse(ctx, req, resp)
}

// Get issues a GET request. GETs are cache eligible; the caching policy
// decides whether a given response is actually stored.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*tcgplayer.Response, error) {
	return c.Do(ctx, &tcgplayer.Request{
		Method:        nethttp.MethodGet,
		Path:          path,
		Query:         query,
		CacheEligible: true,
	})
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*tcgplayer.Response, error) {
	return c.Do(ctx, &tcgplayer.Request{
		Method: nethttp.MethodPost,
		Path:   path,
		Body:   body,
	})
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*tcgplayer.Response, error) {
	return c.Do(ctx, &tcgplayer.Request{
		Method: nethttp.MethodPut,
		Path:   path,
		Body:   body,
	})
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*tcgplayer.Response, error) {
	return c.Do(ctx, &tcgplayer.Request{
		Method: nethttp.MethodPatch,
		Path:   path,
		Body:   body,
	})
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*tcgplayer.Response, error) {
	return c.Do(ctx, &tcgplayer.Request{
		Method: nethttp.MethodDelete,
		Path:   path,
	})
}

// RateLimiterStats reports current limiter window occupancy.
func (c *Client) RateLimiterStats() tcgplayer.RateLimiterStats {
	if c.limiter == nil {
		return tcgplayer.RateLimiterStats{}
	}

	return c.limiter.Stats()
}

// CacheStats reports cache hit, miss, and store counts.
func (c *Client) CacheStats() tcgplayer.CacheStats {
	if c.cache == nil {
		return tcgplayer.CacheStats{}
	}

	return c.cache.GetStats()
}

// InvalidateCache drops the cached entry for one request shape.
func (c *Client) InvalidateCache(ctx context.Context, method, path string, query url.Values) error {
	if c.cache == nil {
		return nil
	}

	return c.cache.Invalidate(ctx, c.cache.GetCacheKey(method, path, query))
}

// ClearCache drops every cached response.
func (c *Client) ClearCache(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}

	return c.cache.Clear(ctx)
}

// Close releases pooled connections. The client must not be used afterward.
func (c *Client) Close() {
	if transport, ok := c.baseTransport.(*nethttp.Transport); ok {
		transport.CloseIdleConnections()
	}
}

func validateRequest(req *tcgplayer.Request) error {
	switch {
	case req == nil:
		return validationError(tcgplayer.ErrRequestRequired)
	case req.Method == "":
		return validationError(tcgplayer.ErrMethodRequired)
	case req.Path == "":
		return validationError(tcgplayer.ErrPathRequired)
	case req.CacheEligible && req.Body != nil:
		return validationError(tcgplayer.ErrCacheEligibleBody)
	}

	return nil
}

func validationError(cause error) *tcgplayer.APIError {
	return &tcgplayer.APIError{
		Type:    tcgplayer.ErrorTypeValidation,
		Message: cause.Error(),
		Err:     cause,
	}
}

// cacheLookup returns the cached response for key, or nil on any miss.
// Backend faults degrade to a miss and the request proceeds to the network.
func (c *Client) cacheLookup(ctx context.Context, req *tcgplayer.Request, key string) *tcgplayer.Response {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if c.logger != nil &&
			!errors.Is(err, tcgplayer.ErrCacheKeyNotFound) &&
			!errors.Is(err, tcgplayer.ErrCacheEntryExpired) {
			c.logger.Warn("Cache Read Failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}

		c.metrics.RecordCacheMiss(req.Method, req.Path)

		return nil
	}

	c.metrics.RecordCacheHit(req.Method, req.Path)

	resp := &tcgplayer.Response{
		StatusCode: nethttp.StatusOK,
		Headers:    nethttp.Header{},
		Body:       data,
		FromCache:  true,
	}

	c.logResponse(req, resp, 0, 0)

	return resp
}

func (c *Client) storeInCache(ctx context.Context, key string, resp *tcgplayer.Response) {
	var err error

	etag := resp.Headers.Get("ETag")
	if etag != "" {
		err = c.cache.SetWithETag(ctx, key, resp.Body, etag, c.cacheTTL)
	} else {
		err = c.cache.Set(ctx, key, resp.Body, c.cacheTTL)
	}

	if err != nil && c.logger != nil {
		c.logger.Warn("Cache Write Failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// prepareRequest builds the retryable request: encoded body, retry
// eligibility and attempt state in the context, and standard headers.
func (c *Client) prepareRequest(
	ctx context.Context, req *tcgplayer.Request, requestID string,
) (*retryablehttp.Request, *requestState, error) {
	rawBody, err := marshalBody(req.Body)
	if err != nil {
		return nil, nil, validationError(err)
	}

	reqCtx := withRetryEligibility(ctx, c.policy.MethodRetryable(req.Method))
	reqCtx, state := withRequestState(reqCtx)

	var body interface{}
	if rawBody != nil {
		body = rawBody
	}

	httpReq, err := retryablehttp.NewRequestWithContext(
		reqCtx, strings.ToUpper(req.Method), c.buildURL(req), body,
	)
	if err != nil {
		return nil, nil, validationError(fmt.Errorf("failed to build request: %w", err))
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", requestID)

	if rawBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, state, nil
}

func (c *Client) buildURL(req *tcgplayer.Request) string {
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	target := c.baseURL + path

	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	return target
}

func marshalBody(body interface{}) ([]byte, error) {
	switch value := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return value, nil
	case json.RawMessage:
		return value, nil
	case string:
		return []byte(value), nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}

		return data, nil
	}
}

func readResponse(rawResp *nethttp.Response) (*tcgplayer.Response, error) {
	defer func() { _ = rawResp.Body.Close() }()

	data, err := io.ReadAll(rawResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &tcgplayer.Response{
		StatusCode: rawResp.StatusCode,
		Headers:    rawResp.Header.Clone(),
		Body:       data,
	}, nil
}

func drainBody(resp *nethttp.Response) {
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}

// handleTransportError classifies a failed retry loop. Caller cancellation
// passes through untyped; everything else maps to an error class.
func (c *Client) handleTransportError(
	ctx context.Context,
	req *tcgplayer.Request,
	rawResp *nethttp.Response,
	err error,
	requestID string,
	attempts int,
	elapsed time.Duration,
) (*tcgplayer.Response, error) {
	if ctx.Err() != nil {
		drainBody(rawResp)

		return nil, ctx.Err()
	}

	if errors.Is(err, tcgplayer.ErrAuthenticationFailed) {
		drainBody(rawResp)

		apiErr := &tcgplayer.APIError{
			Type:      tcgplayer.ErrorTypeAuthentication,
			Message:   err.Error(),
			Attempts:  attempts,
			Elapsed:   elapsed,
			RequestID: requestID,
			Err:       err,
		}

		c.metrics.RecordError(apiErr.Type, req.Method, req.Path)

		return nil, apiErr
	}

	// A retries-exhausted sentinel arrives with the final retryable-status
	// response attached.
	if errors.Is(err, tcgplayer.ErrRetriesExhausted) && rawResp != nil {
		resp, readErr := readResponse(rawResp)
		if readErr != nil {
			resp = &tcgplayer.Response{
				StatusCode: rawResp.StatusCode,
				Headers:    rawResp.Header.Clone(),
			}
		}

		apiErr := c.errorFromResponse(req, resp, requestID, attempts, elapsed)
		apiErr.Type = tcgplayer.ErrorTypeRetriesExhausted
		apiErr.Err = err

		c.metrics.RecordRequest(req.Method, req.Path, resp.StatusCode, elapsed)
		c.metrics.RecordError(apiErr.Type, req.Method, req.Path)
		c.logResponse(req, resp, attempts, elapsed)

		if c.interceptors != nil {
			_ = c.interceptors.ExecuteResponseInterceptors(ctx, req, resp)
		}

		return resp, apiErr
	}

	drainBody(rawResp)

	// Connection-level failure. An eligible method that spent its whole
	// attempt budget reports as exhausted rather than transient.
	errType := tcgplayer.ErrorTypeTransient
	if attempts >= c.policy.MaxAttempts && c.policy.MethodRetryable(req.Method) {
		errType = tcgplayer.ErrorTypeRetriesExhausted
	}

	apiErr := &tcgplayer.APIError{
		Type:      errType,
		Message:   err.Error(),
		Attempts:  attempts,
		Elapsed:   elapsed,
		RequestID: requestID,
		Err:       err,
	}

	c.metrics.RecordError(apiErr.Type, req.Method, req.Path)

	return nil, apiErr
}

// errorFromResponse builds the typed error for a non-2xx response, pulling
// the message from the envelope when one decodes.
func (c *Client) errorFromResponse(
	req *tcgplayer.Request,
	resp *tcgplayer.Response,
	requestID string,
	attempts int,
	elapsed time.Duration,
) *tcgplayer.APIError {
	errType := tcgplayer.ClassifyStatus(resp.StatusCode)

	message := nethttp.StatusText(resp.StatusCode)

	envelopeErrors, parseErr := tcgplayer.ParseEnvelopeErrors(resp.Body)
	if parseErr == nil && len(envelopeErrors) > 0 {
		message = envelopeErrors[0]
	}

	apiErr := &tcgplayer.APIError{
		Type:       errType,
		StatusCode: resp.StatusCode,
		Message:    message,
		Errors:     envelopeErrors,
		Attempts:   attempts,
		Elapsed:    elapsed,
		RequestID:  requestID,
	}

	retryAfter, ok := tcgplayer.ParseRetryAfter(&nethttp.Response{Header: resp.Headers})
	if ok {
		apiErr.RetryAfter = retryAfter
	}

	switch errType {
	case tcgplayer.ErrorTypeRateLimited:
		apiErr.Err = tcgplayer.ErrRateLimited
	case tcgplayer.ErrorTypeAuthentication:
		apiErr.Err = tcgplayer.ErrAuthenticationFailed
	}

	return apiErr
}

func (c *Client) finishResponse(ctx context.Context, req *tcgplayer.Request, resp *tcgplayer.Response) (*tcgplayer.Response, error) {
	if c.interceptors != nil {
		err := c.interceptors.ExecuteResponseInterceptors(ctx, req, resp)
		if err != nil {
			return resp, err
		}
	}

	return resp, nil
}

func (c *Client) logResponse(req *tcgplayer.Request, resp *tcgplayer.Response, attempts int, elapsed time.Duration) {
	if !c.debug || c.logger == nil {
		return
	}

	c.logger.Debug("HTTP Response", map[string]interface{}{
		"method":     req.Method,
		"path":       req.Path,
		"status":     resp.StatusCode,
		"from_cache": resp.FromCache,
		"attempts":   attempts,
		"elapsed":    elapsed.String(),
	})
}
