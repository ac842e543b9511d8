package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/joshwilhelmi/tcgplayer-go/pkg/tcgplayer"
)

// retryEligibleKey marks a request whose method may be retried. CheckRetry
// cannot rely on resp.Request because resp is nil on connection errors, so
// eligibility travels in the context instead.
type retryEligibleKey struct{}

func withRetryEligibility(ctx context.Context, eligible bool) context.Context {
	return context.WithValue(ctx, retryEligibleKey{}, eligible)
}

func retryEligible(ctx context.Context) bool {
	eligible, ok := ctx.Value(retryEligibleKey{}).(bool)

	return ok && eligible
}

// requestState accumulates per-request facts across attempts.
type requestState struct {
	attempts atomic.Int32
}

type requestStateKey struct{}

func withRequestState(ctx context.Context) (context.Context, *requestState) {
	state := &requestState{}

	return context.WithValue(ctx, requestStateKey{}, state), state
}

func requestStateFrom(ctx context.Context) *requestState {
	state, _ := ctx.Value(requestStateKey{}).(*requestState)

	return state
}

// checkRetry decides whether one more attempt is allowed. Context errors and
// authentication failures always stop; otherwise a retry requires both an
// eligible method and a retryable status or connection error.
func (c *Client) checkRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		// Token failures surface through the transport wrapped in url.Error.
		if errors.Is(err, tcgplayer.ErrAuthenticationFailed) {
			return false, err
		}

		return retryEligible(ctx), nil
	}

	return retryEligible(ctx) && c.policy.StatusRetryable(resp.StatusCode), nil
}

// backoff adapts the retry policy to retryablehttp, which passes a zero-based
// retry index.
func (c *Client) backoff(minWait, maxWait time.Duration, attemptNum int, resp *nethttp.Response) time.Duration {
	return c.policy.Backoff(attemptNum+1, resp)
}

// errorHandler shapes the terminal outcome of the retry loop. A nil error
// with a response means an eligible request exhausted its attempts on
// retryable statuses; everything else passes through for classification in
// Do.
func (c *Client) errorHandler(resp *nethttp.Response, err error, numTries int) (*nethttp.Response, error) {
	if err == nil {
		return resp, tcgplayer.ErrRetriesExhausted
	}

	return resp, err
}

// requestLogHook runs before every physical attempt.
func (c *Client) requestLogHook(_ retryablehttp.Logger, req *nethttp.Request, attemptNum int) {
	state := requestStateFrom(req.Context())
	if state != nil {
		state.attempts.Store(int32(attemptNum) + 1)
	}

	if attemptNum > 0 {
		c.metrics.RecordRetry(req.Method, req.URL.Path, attemptNum)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":  req.Method,
			"url":     req.URL.String(),
			"attempt": attemptNum + 1,
		})
	}
}
