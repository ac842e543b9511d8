package tcgplayer_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshwilhelmi/tcgplayer-go/pkg/tcgplayer"
)

func TestDefaultRetryPolicy(t *testing.T) {
	t.Parallel()

	policy := tcgplayer.DefaultRetryPolicy()

	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 1*time.Second, policy.BaseDelay)
	assert.Equal(t, 10*time.Second, policy.MaxDelay)
	assert.Equal(t, 500*time.Millisecond, policy.JitterBound)
	require.NoError(t, policy.Validate())
}

func TestRetryPolicy_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  tcgplayer.RetryPolicy
		wantErr bool
	}{
		{
			name:   "valid",
			policy: tcgplayer.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
		},
		{
			name:   "single attempt disables retries",
			policy: tcgplayer.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Second, MaxDelay: time.Second},
		},
		{
			name:    "zero attempts",
			policy:  tcgplayer.RetryPolicy{MaxAttempts: 0, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
			wantErr: true,
		},
		{
			name:    "negative delay",
			policy:  tcgplayer.RetryPolicy{MaxAttempts: 3, BaseDelay: -time.Second, MaxDelay: 10 * time.Second},
			wantErr: true,
		},
		{
			name:    "base above max",
			policy:  tcgplayer.RetryPolicy{MaxAttempts: 3, BaseDelay: 20 * time.Second, MaxDelay: 10 * time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.policy.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRetryPolicy_MethodRetryable(t *testing.T) {
	t.Parallel()

	policy := tcgplayer.DefaultRetryPolicy()

	assert.True(t, policy.MethodRetryable(http.MethodGet))
	assert.True(t, policy.MethodRetryable("get"))
	assert.True(t, policy.MethodRetryable(http.MethodHead))
	assert.True(t, policy.MethodRetryable(http.MethodOptions))

	// Mutating methods are not retried unless whitelisted.
	assert.False(t, policy.MethodRetryable(http.MethodPost))
	assert.False(t, policy.MethodRetryable(http.MethodPut))
	assert.False(t, policy.MethodRetryable(http.MethodDelete))

	policy.RetryableMethods = append(policy.RetryableMethods, http.MethodPut)
	assert.True(t, policy.MethodRetryable(http.MethodPut))
	assert.False(t, policy.MethodRetryable(http.MethodPost))
}

func TestRetryPolicy_StatusRetryable(t *testing.T) {
	t.Parallel()

	policy := tcgplayer.DefaultRetryPolicy()

	assert.True(t, policy.StatusRetryable(http.StatusTooManyRequests))
	assert.True(t, policy.StatusRetryable(http.StatusInternalServerError))
	assert.True(t, policy.StatusRetryable(http.StatusBadGateway))
	assert.True(t, policy.StatusRetryable(http.StatusServiceUnavailable))
	assert.True(t, policy.StatusRetryable(http.StatusGatewayTimeout))

	// 501 means the server will never handle this request.
	assert.False(t, policy.StatusRetryable(http.StatusNotImplemented))

	assert.False(t, policy.StatusRetryable(http.StatusOK))
	assert.False(t, policy.StatusRetryable(http.StatusBadRequest))
	assert.False(t, policy.StatusRetryable(http.StatusUnauthorized))
	assert.False(t, policy.StatusRetryable(http.StatusNotFound))
}

func TestRetryPolicy_StatusRetryableExplicitList(t *testing.T) {
	t.Parallel()

	policy := tcgplayer.DefaultRetryPolicy()
	policy.RetryableStatuses = []int{http.StatusBadGateway}

	assert.True(t, policy.StatusRetryable(http.StatusBadGateway))
	assert.False(t, policy.StatusRetryable(http.StatusTooManyRequests))
	assert.False(t, policy.StatusRetryable(http.StatusInternalServerError))
}

func TestRetryPolicy_BackoffGrowsExponentially(t *testing.T) {
	t.Parallel()

	policy := &tcgplayer.RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    10 * time.Second,
		JitterBound: 500 * time.Millisecond,
	}

	for attempt, base := range map[int]time.Duration{
		1: 1 * time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
		4: 8 * time.Second,
	} {
		wait := policy.Backoff(attempt, nil)
		assert.GreaterOrEqual(t, wait, base, "attempt %d", attempt)
		assert.LessOrEqual(t, wait, base+policy.JitterBound, "attempt %d", attempt)
	}

	// Attempt five doubles past the cap.
	wait := policy.Backoff(5, nil)
	assert.Equal(t, policy.MaxDelay, wait)
}

func TestRetryPolicy_BackoffNeverExceedsMaxDelay(t *testing.T) {
	t.Parallel()

	policy := &tcgplayer.RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   1 * time.Second,
		MaxDelay:    5 * time.Second,
		JitterBound: 2 * time.Second,
	}

	for attempt := 1; attempt <= 40; attempt++ {
		wait := policy.Backoff(attempt, nil)
		assert.LessOrEqual(t, wait, policy.MaxDelay)
		assert.GreaterOrEqual(t, wait, time.Duration(0))
	}
}

func TestRetryPolicy_BackoffHonorsRetryAfter(t *testing.T) {
	t.Parallel()

	policy := tcgplayer.DefaultRetryPolicy()

	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"7"}},
	}

	// The server's wait replaces the computed backoff, in both directions.
	assert.Equal(t, 7*time.Second, policy.Backoff(1, resp))
	assert.Equal(t, 7*time.Second, policy.Backoff(4, resp))
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	makeResp := func(value string) *http.Response {
		return &http.Response{Header: http.Header{"Retry-After": []string{value}}}
	}

	// Delta seconds.
	wait, ok := tcgplayer.ParseRetryAfter(makeResp("30"))
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, wait)

	// Zero is valid and means retry immediately.
	wait, ok = tcgplayer.ParseRetryAfter(makeResp("0"))
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), wait)

	// HTTP-date in the future.
	future := time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)
	wait, ok = tcgplayer.ParseRetryAfter(makeResp(future))
	require.True(t, ok)
	assert.Greater(t, wait, 80*time.Second)
	assert.LessOrEqual(t, wait, 90*time.Second)

	// HTTP-date in the past reports no wait.
	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	_, ok = tcgplayer.ParseRetryAfter(makeResp(past))
	assert.False(t, ok)

	// Negative and malformed values report no wait.
	_, ok = tcgplayer.ParseRetryAfter(makeResp("-5"))
	assert.False(t, ok)

	_, ok = tcgplayer.ParseRetryAfter(makeResp("soon"))
	assert.False(t, ok)

	// Absent header.
	_, ok = tcgplayer.ParseRetryAfter(&http.Response{Header: http.Header{}})
	assert.False(t, ok)

	// Nil response.
	_, ok = tcgplayer.ParseRetryAfter(nil)
	assert.False(t, ok)
}

func TestParseRetryAfter_CapsExcessiveWaits(t *testing.T) {
	t.Parallel()

	resp := &http.Response{Header: http.Header{"Retry-After": []string{"86400"}}}

	wait, ok := tcgplayer.ParseRetryAfter(resp)
	require.True(t, ok)
	assert.Equal(t, 1*time.Hour, wait)
}
