package auth

import (
	"context"
	"sync"
	"time"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

// TokenManager supplies and refreshes bearer tokens for API requests.
type TokenManager interface {
	// GetToken returns a usable token, refreshing first when the current one
	// is missing or inside the refresh margin.
	GetToken(ctx context.Context) (string, error)

	// RefreshToken forces a new token exchange regardless of expiry.
	RefreshToken(ctx context.Context) error

	// SetToken installs an externally issued token.
	SetToken(token string, expiresAt time.Time)
}

// Token represents a bearer token issued by the TCGplayer token endpoint.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserName    string `json:"userName,omitempty"`

	// ExpiresAt is computed from ExpiresIn when the token is issued.
	ExpiresAt time.Time `json:"-"`
}

// Valid reports whether the token can still be used. Tokens inside the
// default refresh margin of expiry count as invalid so callers refresh
// before the server rejects them.
func (t *Token) Valid() bool {
	return t.ValidFor(constants.TokenRefreshMargin)
}

// ValidFor reports whether the token remains usable for at least margin.
func (t *Token) ValidFor(margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	// Zero expiry means the token never expires (static tokens).
	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(margin).Before(t.ExpiresAt)
}

// TokenStore holds the current token behind a mutex.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the current token, or nil when none is set.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set replaces the current token.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// Clear removes the current token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}
