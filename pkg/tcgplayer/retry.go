package tcgplayer

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

// RetryPolicy controls how failed attempts are retried. It is immutable
// once handed to a client.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, the first included.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay is the wait before the first retry; each subsequent retry
	// doubles it.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// MaxDelay caps any single computed wait.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// JitterBound is the upper bound of the uniform jitter added to each
	// computed wait.
	JitterBound time.Duration `json:"jitter_bound" yaml:"jitter_bound"`

	// RetryableMethods whitelists the HTTP methods that may be retried.
	// Mutating methods are excluded unless listed here explicitly.
	RetryableMethods []string `json:"retryable_methods" yaml:"retryable_methods"`

	// RetryableStatuses lists the response codes treated as transient.
	// Empty means the default set: 429 plus 500-599 except 501.
	RetryableStatuses []int `json:"retryable_statuses" yaml:"retryable_statuses"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: constants.DefaultRetryMaxAttempts,
		BaseDelay:   constants.DefaultRetryBaseDelay,
		MaxDelay:    constants.DefaultRetryMaxDelay,
		JitterBound: constants.DefaultRetryJitterBound,
		RetryableMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodOptions,
		},
	}
}

// Validate checks the policy for impossible bounds.
func (p *RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: got %d", constants.ErrInvalidMaxAttempts, p.MaxAttempts)
	}

	if p.BaseDelay < 0 || p.MaxDelay < 0 || p.JitterBound < 0 {
		return fmt.Errorf("%w: delays must not be negative", constants.ErrInvalidRetryBounds)
	}

	if p.BaseDelay > p.MaxDelay {
		return fmt.Errorf("%w: base %s, max %s", constants.ErrInvalidRetryBounds, p.BaseDelay, p.MaxDelay)
	}

	return nil
}

// MethodRetryable reports whether the method is whitelisted for retries.
func (p *RetryPolicy) MethodRetryable(method string) bool {
	for _, m := range p.RetryableMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}

	return false
}

// StatusRetryable reports whether the response code is treated as
// transient.
func (p *RetryPolicy) StatusRetryable(status int) bool {
	if len(p.RetryableStatuses) > 0 {
		for _, s := range p.RetryableStatuses {
			if s == status {
				return true
			}
		}

		return false
	}

	if status == http.StatusTooManyRequests {
		return true
	}

	return status >= 500 && status != http.StatusNotImplemented
}

// Backoff computes the wait after the given 1-based attempt: the exponential
// step doubled per attempt, capped at MaxDelay, plus uniform jitter in
// [0, JitterBound], re-capped at MaxDelay. When resp carries a parseable
// Retry-After header, the server value replaces the computed wait for this
// one retry — a 429 means the server's view of consumption has drifted from
// the limiter's, and its wait is the authoritative one.
func (p *RetryPolicy) Backoff(attempt int, resp *http.Response) time.Duration {
	if retryAfter, ok := ParseRetryAfter(resp); ok {
		return retryAfter
	}

	if attempt < 1 {
		attempt = 1
	}

	// 2^30 seconds is already beyond any sane MaxDelay; avoid overflow.
	if attempt > 30 {
		attempt = 30
	}

	wait := p.BaseDelay << (attempt - 1)
	if wait < 0 || wait > p.MaxDelay {
		wait = p.MaxDelay
	}

	if p.JitterBound > 0 {
		wait += time.Duration(rand.Int63n(int64(p.JitterBound) + 1))
		if wait > p.MaxDelay {
			wait = p.MaxDelay
		}
	}

	return wait
}

// ParseRetryAfter reads a Retry-After header as delta-seconds or an
// HTTP-date. Values are capped at one hour; absent, malformed, or negative
// values report false.
func ParseRetryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}

	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0, false
		}

		return capRetryAfter(time.Duration(seconds) * time.Second), true
	}

	if at, err := http.ParseTime(header); err == nil {
		wait := time.Until(at)
		if wait < 0 {
			return 0, false
		}

		return capRetryAfter(wait), true
	}

	return 0, false
}

func capRetryAfter(wait time.Duration) time.Duration {
	if wait > constants.MaxRetryAfter {
		return constants.MaxRetryAfter
	}

	return wait
}
