package tcgplayer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorType classifies an APIError for retry and escalation decisions.
type ErrorType string

// Error classes surfaced to callers.
const (
	// ErrorTypeAuthentication marks fatal credential or token failures.
	// These are never retried.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeTransient marks failures expected to resolve on retry:
	// timeouts, connection resets, HTTP 5xx.
	ErrorTypeTransient ErrorType = "transient"

	// ErrorTypeRateLimited marks HTTP 429 responses. Transient, but carries
	// the server-supplied Retry-After when present.
	ErrorTypeRateLimited ErrorType = "rate_limited"

	// ErrorTypePermanent marks 4xx failures (other than 429) that retrying
	// cannot fix.
	ErrorTypePermanent ErrorType = "permanent"

	// ErrorTypeRetriesExhausted wraps the last transient failure after the
	// retry budget is spent.
	ErrorTypeRetriesExhausted ErrorType = "retries_exhausted"

	// ErrorTypeCache marks cache-backend faults. Non-fatal: the request
	// degrades to a cache miss and proceeds to the network.
	ErrorTypeCache ErrorType = "cache"

	// ErrorTypeValidation marks locally rejected parameters.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeConfiguration marks invalid client configuration.
	ErrorTypeConfiguration ErrorType = "configuration"

	// ErrorTypeInvalidResponse marks payloads the client cannot decode.
	ErrorTypeInvalidResponse ErrorType = "invalid_response"
)

// APIError is the typed failure returned by every client operation. It
// carries the HTTP status, attempt count, and elapsed time so callers can
// decide whether to escalate or degrade.
type APIError struct {
	Type       ErrorType     `json:"type"        yaml:"type"`
	StatusCode int           `json:"status_code" yaml:"status_code"`
	Message    string        `json:"message"     yaml:"message"`
	Errors     []string      `json:"errors"      yaml:"errors"`
	Attempts   int           `json:"attempts"    yaml:"attempts"`
	Elapsed    time.Duration `json:"elapsed"     yaml:"elapsed"`
	RetryAfter time.Duration `json:"retry_after" yaml:"retry_after"`
	RequestID  string        `json:"request_id"  yaml:"request_id"`
	Err        error         `json:"-"           yaml:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s", e.Type, e.Message)

	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status: %d)", e.StatusCode)
	}

	if len(e.Errors) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Errors, "; "))
	}

	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}

	return b.String()
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the retry coordinator may re-attempt the
// request that produced this error.
func (e *APIError) Retryable() bool {
	return e.Type == ErrorTypeTransient || e.Type == ErrorTypeRateLimited
}

// Common static errors that can be wrapped with context.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRetriesExhausted     = errors.New("retries exhausted")
	ErrRateLimited          = errors.New("rate limited by server")
	ErrCacheKeyNotFound     = errors.New("key not found")
	ErrCacheEntryExpired    = errors.New("entry expired")
	ErrCacheValueTooLarge   = errors.New("cache value exceeds maximum size")
	ErrInvalidResponse      = errors.New("invalid response payload")
	ErrMissingCredentials   = errors.New("missing credentials")
	ErrConfigRequired       = errors.New("config is required")
	ErrEndpointRequired     = errors.New("API endpoint is required")
	ErrNoMoreItems          = errors.New("no more items")
	ErrRequestRequired      = errors.New("request is required")
	ErrMethodRequired       = errors.New("request method is required")
	ErrPathRequired         = errors.New("request path is required")
	ErrCacheEligibleBody    = errors.New("cache-eligible request cannot carry a body")
	ErrSkipTLSOnlyInDev     = errors.New("skipping TLS verification is only allowed in development environments")
)

// ClassifyStatus maps an HTTP status code to an error class. Statuses below
// 400 classify as permanent so that envelope-level failures on 2xx responses
// still produce a non-retryable error.
func ClassifyStatus(status int) ErrorType {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorTypeAuthentication
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimited
	case status == http.StatusNotImplemented:
		return ErrorTypePermanent
	case status >= 500:
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// IsAuthenticationFailure checks if the error is a fatal credential failure.
func IsAuthenticationFailure(err error) bool {
	if errors.Is(err, ErrAuthenticationFailed) {
		return true
	}

	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Type == ErrorTypeAuthentication
	}

	return false
}

// IsTransient checks if the error is expected to resolve on retry.
func IsTransient(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}

	return false
}

// IsPermanentFailure checks if the error is a non-retryable request failure.
func IsPermanentFailure(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Type == ErrorTypePermanent
	}

	return false
}

// IsRetriesExhausted checks if the retry budget was spent.
func IsRetriesExhausted(err error) bool {
	if errors.Is(err, ErrRetriesExhausted) {
		return true
	}

	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Type == ErrorTypeRetriesExhausted
	}

	return false
}

// IsRateLimited checks if the server rejected the request with HTTP 429.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Type == ErrorTypeRateLimited
	}

	return false
}

// IsNotFound checks if the error is an HTTP 404.
func IsNotFound(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}

	return false
}

// IsCacheFailure checks if the error came from the cache backend.
func IsCacheFailure(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Type == ErrorTypeCache
	}

	return false
}

// IsValidationFailure checks if the error is a locally rejected parameter.
func IsValidationFailure(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Type == ErrorTypeValidation
	}

	return false
}

// ParseEnvelopeErrors extracts the error strings from a response envelope.
func ParseEnvelopeErrors(data []byte) ([]string, error) {
	var envelope Envelope

	err := json.Unmarshal(data, &envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal response envelope: %w", err)
	}

	return envelope.Errors, nil
}
