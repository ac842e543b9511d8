package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

// OAuth2Config holds the settings for the client_credentials grant against
// the TCGplayer token endpoint.
type OAuth2Config struct {
	// TokenURL is the full token endpoint, e.g. "https://api.tcgplayer.com/token".
	TokenURL string
	// ClientID is the application's public key.
	ClientID string
	// ClientSecret is the application's private key.
	ClientSecret string
	// AccessToken optionally seeds the manager with an existing token.
	AccessToken string
	// RefreshMargin is how long before expiry a token is refreshed.
	// Zero uses the default margin.
	RefreshMargin time.Duration
	// HTTPTimeout bounds each token exchange. Zero uses the default.
	HTTPTimeout time.Duration
	// HTTPClient overrides the client used for token exchanges. The token
	// endpoint deliberately bypasses the API rate limiter and retry layer.
	HTTPClient *http.Client
	// UserAgent is sent on token exchanges when set.
	UserAgent string
	// OnRefresh is invoked after every token exchange with its outcome.
	OnRefresh func(err error)
}

// OAuth2TokenManager obtains and refreshes tokens using the
// client_credentials grant. Concurrent callers needing a refresh share a
// single in-flight exchange; the rest block until it completes.
type OAuth2TokenManager struct {
	config     *OAuth2Config
	store      *TokenStore
	httpClient *http.Client
	margin     time.Duration

	mu       sync.Mutex
	inflight *refreshCall
}

// refreshCall tracks one in-flight token exchange so concurrent callers can
// wait on its outcome instead of starting their own.
type refreshCall struct {
	done chan struct{}
	err  error
}

// NewOAuth2TokenManager creates a token manager for the given config.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	margin := config.RefreshMargin
	if margin <= 0 {
		margin = constants.TokenRefreshMargin
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.HTTPTimeout
		if timeout <= 0 {
			timeout = constants.TokenHTTPTimeout
		}

		httpClient = &http.Client{Timeout: timeout}
	}

	manager := &OAuth2TokenManager{
		config:     config,
		store:      NewTokenStore(),
		httpClient: httpClient,
		margin:     margin,
	}

	if config.AccessToken != "" {
		manager.store.Set(&Token{
			AccessToken: config.AccessToken,
			TokenType:   "bearer",
		})
	}

	return manager
}

// GetToken returns a valid access token, performing a token exchange first
// when the stored token is missing or inside the refresh margin.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	if token := m.store.Get(); token.ValidFor(m.margin) {
		return token.AccessToken, nil
	}

	err := m.refresh(ctx, false)
	if err != nil {
		return "", err
	}

	token := m.store.Get()
	if !token.ValidFor(0) {
		return "", constants.ErrEmptyAccessToken
	}

	return token.AccessToken, nil
}

// RefreshToken forces a token exchange even if the stored token is valid.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	return m.refresh(ctx, true)
}

// SetToken manually sets the access token.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

// Current returns the stored token without triggering a refresh.
func (m *OAuth2TokenManager) Current() *Token {
	return m.store.Get()
}

// refresh performs a single-flight token exchange. When a refresh is already
// running the caller waits for its result; otherwise it becomes the leader
// and performs the exchange itself.
func (m *OAuth2TokenManager) refresh(ctx context.Context, force bool) error {
	m.mu.Lock()

	if call := m.inflight; call != nil {
		m.mu.Unlock()

		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return fmt.Errorf("waiting for token refresh: %w", ctx.Err())
		}
	}

	// A refresh that completed between the validity check and taking the
	// lock already did the work.
	if !force && m.store.Get().ValidFor(m.margin) {
		m.mu.Unlock()

		return nil
	}

	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call
	m.mu.Unlock()

	call.err = m.requestToken(ctx)

	m.mu.Lock()
	m.inflight = nil
	m.mu.Unlock()

	close(call.done)

	if m.config.OnRefresh != nil {
		m.config.OnRefresh(call.err)
	}

	return call.err
}

// requestToken performs the client_credentials exchange and stores the
// resulting token.
func (m *OAuth2TokenManager) requestToken(ctx context.Context) error {
	if m.config.ClientID == "" || m.config.ClientSecret == "" {
		return fmt.Errorf("no valid credentials available: %w", constants.ErrNoCredentials)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.config.ClientID)
	form.Set("client_secret", m.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if m.config.UserAgent != "" {
		req.Header.Set("User-Agent", m.config.UserAgent)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", constants.ErrTokenExchangeFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", constants.ErrTokenExchangeFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", constants.ErrTokenExchangeFailed, tokenErrorDetail(resp.StatusCode, body))
	}

	var token Token

	err = json.Unmarshal(body, &token)
	if err != nil {
		return fmt.Errorf("%w: decoding response: %w", constants.ErrTokenExchangeFailed, err)
	}

	if token.AccessToken == "" {
		return constants.ErrEmptyAccessToken
	}

	if token.TokenType == "" {
		token.TokenType = "bearer"
	}

	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	m.store.Set(&token)

	return nil
}

// tokenErrorDetail extracts the OAuth2 error fields from an error response
// body, falling back to a body snippet.
func tokenErrorDetail(statusCode int, body []byte) string {
	var oauthErr struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}

	if json.Unmarshal(body, &oauthErr) == nil && oauthErr.Error != "" {
		if oauthErr.Description != "" {
			return fmt.Sprintf("status %d: %s: %s", statusCode, oauthErr.Error, oauthErr.Description)
		}

		return fmt.Sprintf("status %d: %s", statusCode, oauthErr.Error)
	}

	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}

	if snippet == "" {
		return fmt.Sprintf("status %d", statusCode)
	}

	return fmt.Sprintf("status %d: %s", statusCode, snippet)
}

// StaticTokenManager serves a fixed bearer token. Refreshing is not
// supported; when the token expires the client fails authentication.
type StaticTokenManager struct {
	store *TokenStore
}

// NewStaticTokenManager creates a manager around a fixed token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	store := NewTokenStore()
	if token != "" {
		store.Set(&Token{
			AccessToken: token,
			TokenType:   "bearer",
		})
	}

	return &StaticTokenManager{store: store}
}

// GetToken returns the static token.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token == nil || token.AccessToken == "" {
		return "", constants.ErrNoCredentials
	}

	return token.AccessToken, nil
}

// RefreshToken always fails for static tokens.
func (m *StaticTokenManager) RefreshToken(ctx context.Context) error {
	return constants.ErrNoRefreshForStatic
}

// SetToken replaces the static token.
func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

// Current returns the stored token.
func (m *StaticTokenManager) Current() *Token {
	return m.store.Get()
}
