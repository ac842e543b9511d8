package http

import (
	"context"
	"crypto/tls"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
	"github.com/joshwilhelmi/tcgplayer-go/pkg/tcgplayer"
)

// TokenManager supplies bearer tokens for outgoing requests.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// newPooledTransport builds the shared connection pool. poolSize caps idle
// connections across all hosts; perHostSize caps connections to one host.
func newPooledTransport(poolSize, perHostSize int, skipTLSVerify bool) *nethttp.Transport {
	transport := &nethttp.Transport{
		Proxy:               nethttp.ProxyFromEnvironment,
		MaxIdleConns:        poolSize,
		MaxIdleConnsPerHost: perHostSize,
		MaxConnsPerHost:     perHostSize,
		IdleConnTimeout:     constants.DefaultIdleConnTimeout,
		TLSHandshakeTimeout: constants.DefaultTLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	if skipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- Caller gates this behind a development environment check
	}

	return transport
}

// orchestratedTransport runs the per-attempt pipeline: every physical
// attempt, including retries, first claims a rate limit slot, then attaches
// a bearer token, then goes out through the pooled transport. Token
// exchanges happen on their own HTTP client and never consume a slot.
type orchestratedTransport struct {
	base      nethttp.RoundTripper
	limiter   *tcgplayer.RateLimiter
	tokens    TokenManager
	metrics   *tcgplayer.MetricsCollector
	userAgent string
}

func (t *orchestratedTransport) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	ctx := req.Context()

	if t.limiter != nil {
		start := time.Now()

		err := t.limiter.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquiring rate limit slot: %w", err)
		}

		t.metrics.RecordRateLimitWait(req.Method, time.Since(start))
		t.metrics.RecordRateLimiterStats(t.limiter.Stats())
	}

	// RoundTrippers must not mutate the caller's request.
	out := req.Clone(ctx)

	if t.userAgent != "" && out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", t.userAgent)
	}

	if t.tokens != nil && out.Header.Get("Authorization") == "" {
		token, err := t.tokens.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", tcgplayer.ErrAuthenticationFailed, err)
		}

		out.Header.Set("Authorization", "Bearer "+token)
	}

	return t.base.RoundTrip(out)
}
