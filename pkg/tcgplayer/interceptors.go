package tcgplayer

import (
	"context"
	"fmt"
	"net/http"
)

// RequestInterceptor runs before a request is sent. It may mutate the
// request, typically its headers; an error vetoes the call before any
// network traffic or limiter slot is spent.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor runs after a response arrives, cached responses
// included, and before the response reaches the caller.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// InterceptorChain holds ordered request and response hooks. The zero value
// is usable; NewInterceptorChain exists for symmetry with the rest of the
// package.
type InterceptorChain struct {
	onRequest  []RequestInterceptor
	onResponse []ResponseInterceptor
}

// NewInterceptorChain returns an empty chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// AddRequestInterceptor appends a request hook. Hooks run in the order they
// were added.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.onRequest = append(c.onRequest, interceptor)
}

// AddResponseInterceptor appends a response hook.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.onResponse = append(c.onResponse, interceptor)
}

// ExecuteRequestInterceptors runs the request hooks in order, stopping at the
// first error.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *Request) error {
	for i, interceptor := range c.onRequest {
		if err := interceptor(ctx, req); err != nil {
			return fmt.Errorf("request interceptor %d: %w", i, err)
		}
	}

	return nil
}

// ExecuteResponseInterceptors runs the response hooks in order, stopping at
// the first error.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *Request, resp *Response) error {
	for i, interceptor := range c.onResponse {
		if err := interceptor(ctx, req, resp); err != nil {
			return fmt.Errorf("response interceptor %d: %w", i, err)
		}
	}

	return nil
}

// HeaderInterceptor stamps fixed headers onto every request. Later
// interceptors and the transport may still override them.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(_ context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = make(map[string]string, len(headers))
		}

		for name, value := range headers {
			req.Headers[name] = value
		}

		return nil
	}
}

// AuthenticationInterceptor sets the Authorization header from the given
// token source, replacing the client's built-in token manager for requests
// that pass through it. Most callers should not need this.
func AuthenticationInterceptor(tokenProvider func(context.Context) (string, error)) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		token, err := tokenProvider(ctx)
		if err != nil {
			return fmt.Errorf("failed to get authentication token: %w", err)
		}

		if req.Headers == nil {
			req.Headers = make(map[string]string, 1)
		}

		req.Headers["Authorization"] = "Bearer " + token

		return nil
	}
}

// LoggingInterceptor logs each outgoing request at debug.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(_ context.Context, req *Request) error {
		logger.Debug("API Request", map[string]interface{}{
			"method": req.Method,
			"path":   req.Path,
		})

		return nil
	}
}

// LoggingResponseInterceptor logs responses, raising 4xx and 5xx statuses to
// the error level.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(_ context.Context, req *Request, resp *Response) error {
		fields := map[string]interface{}{
			"method":      req.Method,
			"path":        req.Path,
			"status_code": resp.StatusCode,
			"from_cache":  resp.FromCache,
		}

		if resp.StatusCode >= http.StatusBadRequest {
			logger.Error("API Response Error", fields)
		} else {
			logger.Debug("API Response", fields)
		}

		return nil
	}
}
