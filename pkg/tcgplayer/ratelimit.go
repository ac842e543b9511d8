package tcgplayer

import (
	"context"
	"sync"
	"time"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

// RateLimiter enforces the outbound request ceiling with a fixed accounting
// window. TCGplayer revokes API access for clients that sustain more than
// the documented ceiling, so the limit requested at construction is clamped
// to that ceiling rather than honored.
//
// The window counter and its start time are guarded by one mutex; the mutex
// is never held while sleeping, so two concurrent callers can never both
// observe a free slot and jointly exceed the limit. Window boundaries use
// the monotonic clock readings carried by time.Time, making them immune to
// wall-clock adjustments.
type RateLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	windowStart time.Time
	count       int
	clamped     bool
}

// RateLimiterStats reports current window occupancy.
type RateLimiterStats struct {
	Limit       int           `json:"limit"         yaml:"limit"`
	InWindow    int           `json:"in_window"     yaml:"in_window"`
	Remaining   int           `json:"remaining"     yaml:"remaining"`
	TimeToReset time.Duration `json:"time_to_reset" yaml:"time_to_reset"`
	Clamped     bool          `json:"clamped"       yaml:"clamped"`
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithWindow overrides the accounting window. Shorter windows are useful in
// tests; production code should keep the one-second default that matches the
// server's accounting.
func WithWindow(window time.Duration) RateLimiterOption {
	return func(r *RateLimiter) {
		if window > 0 {
			r.window = window
		}
	}
}

// NewRateLimiter creates a limiter allowing perSecond requests per window.
// Values above the hard ceiling are clamped to it; Clamped reports that this
// happened so the owning client can log a warning. Zero or negative values
// take the default rate.
func NewRateLimiter(perSecond int, opts ...RateLimiterOption) *RateLimiter {
	limit := perSecond
	if limit <= 0 {
		limit = constants.DefaultRequestsPerSecond
	}

	clamped := false
	if limit > constants.HardRateCeiling {
		limit = constants.HardRateCeiling
		clamped = true
	}

	limiter := &RateLimiter{
		limit:   limit,
		window:  constants.RateWindow,
		clamped: clamped,
	}

	for _, opt := range opts {
		opt(limiter)
	}

	return limiter
}

// Acquire blocks until a slot is free in the current window, then consumes
// it. Returns the context error if ctx is cancelled first; a cancelled
// waiter consumes nothing.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.mu.Lock()
		now := time.Now()
		r.roll(now)

		if r.count < r.limit {
			r.count++
			r.mu.Unlock()

			return nil
		}

		wait := r.window - now.Sub(r.windowStart)
		r.mu.Unlock()

		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire consumes a slot if one is free, without blocking.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.roll(time.Now())

	if r.count < r.limit {
		r.count++

		return true
	}

	return false
}

// Stats returns the current window occupancy and time until reset.
func (r *RateLimiter) Stats() RateLimiterStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.roll(now)

	timeToReset := r.window - now.Sub(r.windowStart)
	if timeToReset < 0 {
		timeToReset = 0
	}

	return RateLimiterStats{
		Limit:       r.limit,
		InWindow:    r.count,
		Remaining:   r.limit - r.count,
		TimeToReset: timeToReset,
		Clamped:     r.clamped,
	}
}

// Limit returns the effective per-window limit after clamping.
func (r *RateLimiter) Limit() int {
	return r.limit
}

// Clamped reports whether the requested rate exceeded the hard ceiling and
// was reduced at construction.
func (r *RateLimiter) Clamped() bool {
	return r.clamped
}

// roll resets the window when it has elapsed. Callers must hold the mutex;
// the start time and counter always change together.
func (r *RateLimiter) roll(now time.Time) {
	if r.windowStart.IsZero() || now.Sub(r.windowStart) >= r.window {
		r.windowStart = now
		r.count = 0
	}
}
