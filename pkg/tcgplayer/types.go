package tcgplayer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one logical API call. Wrapper layers construct a Request
// and hand it to Client.Execute; the orchestration layer treats it as
// immutable from that point on.
type Request struct {
	Method  string            `json:"method"             yaml:"method"`
	Path    string            `json:"path"               yaml:"path"`
	Query   url.Values        `json:"query,omitempty"    yaml:"query,omitempty"`
	Body    interface{}       `json:"body,omitempty"     yaml:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"  yaml:"headers,omitempty"`

	// CacheEligible marks the request as safe to serve from and store into
	// the response cache. Only idempotent, body-less requests may set it;
	// the caching policy is still consulted before any cache traffic.
	CacheEligible bool `json:"cache_eligible" yaml:"cache_eligible"`
}

// Response is the outcome of a logical API call.
type Response struct {
	StatusCode int         `json:"status_code" yaml:"status_code"`
	Headers    http.Header `json:"headers"     yaml:"headers"`
	Body       []byte      `json:"body"        yaml:"body"`

	// FromCache reports that the body was served from the response cache
	// and no network request was made.
	FromCache bool `json:"from_cache" yaml:"from_cache"`
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("%w: empty body", ErrInvalidResponse)
	}

	err := json.Unmarshal(r.Body, v)
	if err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}

	return nil
}

// DecodeEnvelope unmarshals the body as a TCGplayer response envelope.
func (r *Response) DecodeEnvelope() (*Envelope, error) {
	var envelope Envelope

	err := r.Decode(&envelope)
	if err != nil {
		return nil, err
	}

	return &envelope, nil
}

// Envelope is the wrapper TCGplayer places around every response payload.
type Envelope struct {
	Success    bool            `json:"success"              yaml:"success"`
	Errors     []string        `json:"errors"               yaml:"errors"`
	Results    json.RawMessage `json:"results"              yaml:"results"`
	TotalItems int             `json:"totalItems,omitempty" yaml:"totalItems,omitempty"`
}

// DecodeResults unmarshals the envelope results array into a typed slice.
func DecodeResults[T any](envelope *Envelope) ([]T, error) {
	if envelope == nil || len(envelope.Results) == 0 {
		return nil, nil
	}

	var results []T

	err := json.Unmarshal(envelope.Results, &results)
	if err != nil {
		return nil, fmt.Errorf("failed to decode envelope results: %w", err)
	}

	return results, nil
}

// Page is one slice of a paginated result set.
type Page[T any] struct {
	Results    []T `json:"results"     yaml:"results"`
	TotalItems int `json:"total_items" yaml:"total_items"`
	Offset     int `json:"offset"      yaml:"offset"`
	Limit      int `json:"limit"       yaml:"limit"`
}

// TokenInfo reports the current bearer token state without exposing the
// token value in logs.
type TokenInfo struct {
	Authenticated bool   `json:"authenticated" yaml:"authenticated"`
	ExpiresAt     string `json:"expires_at"    yaml:"expires_at"`
}
