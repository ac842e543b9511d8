package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

func TestOAuth2TokenManager_GetToken(t *testing.T) {
	t.Run("returns existing valid token", func(t *testing.T) {
		manager := NewOAuth2TokenManager(&OAuth2Config{
			AccessToken: "existing-token",
		})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "existing-token", token)
	})

	t.Run("exchanges credentials for first token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/token", r.URL.Path)
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

			err := r.ParseForm()
			require.NoError(t, err)
			assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
			assert.Equal(t, "public-key", r.Form.Get("client_id"))
			assert.Equal(t, "private-key", r.Form.Get("client_secret"))

			// Responses carry extra fields (userName, .expires) that the
			// client ignores.
			_, _ = w.Write([]byte(`{
				"access_token": "issued-token",
				"token_type": "bearer",
				"expires_in": 1209600,
				"userName": "public-key",
				".expires": "Sat, 08 Sep 2026 01:01:44 GMT"
			}`))
		}))
		defer server.Close()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/token",
			ClientID:     "public-key",
			ClientSecret: "private-key",
		})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "issued-token", token)

		stored := manager.Current()
		require.NotNil(t, stored)
		assert.Equal(t, "bearer", stored.TokenType)
		assert.Equal(t, "public-key", stored.UserName)
		assert.WithinDuration(t, time.Now().Add(1209600*time.Second), stored.ExpiresAt, 5*time.Second)
	})

	t.Run("refreshes token inside the margin", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(Token{
				AccessToken: "fresh-token",
				TokenType:   "bearer",
				ExpiresIn:   3600,
			})
		}))
		defer server.Close()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/token",
			ClientID:     "public-key",
			ClientSecret: "private-key",
		})

		// Expires in 5s, inside the default 30s refresh margin.
		manager.store.Set(&Token{
			AccessToken: "almost-expired",
			ExpiresAt:   time.Now().Add(5 * time.Second),
		})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "fresh-token", token)
	})

	t.Run("handles token endpoint error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_client",
				"error_description": "Client authentication failed",
			})
		}))
		defer server.Close()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/token",
			ClientID:     "bad-key",
			ClientSecret: "bad-secret",
		})

		token, err := manager.GetToken(context.Background())
		require.Error(t, err)
		require.ErrorIs(t, err, constants.ErrTokenExchangeFailed)
		assert.Contains(t, err.Error(), "invalid_client")
		assert.Contains(t, err.Error(), "Client authentication failed")
		assert.Equal(t, "", token)
	})

	t.Run("no credentials available", func(t *testing.T) {
		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL: "http://example.com/token",
		})

		token, err := manager.GetToken(context.Background())
		require.Error(t, err)
		require.ErrorIs(t, err, constants.ErrNoCredentials)
		assert.Contains(t, err.Error(), "no valid credentials available")
		assert.Equal(t, "", token)
	})

	t.Run("rejects empty access token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"access_token": "", "token_type": "bearer"}`))
		}))
		defer server.Close()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/token",
			ClientID:     "public-key",
			ClientSecret: "private-key",
		})

		_, err := manager.GetToken(context.Background())
		require.ErrorIs(t, err, constants.ErrEmptyAccessToken)
	})
}

func TestOAuth2TokenManager_SetToken(t *testing.T) {
	manager := NewOAuth2TokenManager(&OAuth2Config{})

	expiresAt := time.Now().Add(1 * time.Hour)
	manager.SetToken("manual-token", expiresAt)

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "manual-token", token)

	stored := manager.store.Get()
	assert.Equal(t, "manual-token", stored.AccessToken)
	assert.Equal(t, "bearer", stored.TokenType)
	assert.Equal(t, expiresAt.Unix(), stored.ExpiresAt.Unix())
}

func TestOAuth2TokenManager_RefreshToken(t *testing.T) {
	var refreshOutcome error

	outcomeSeen := false

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Token{
			AccessToken: "refreshed-token",
			TokenType:   "bearer",
			ExpiresIn:   3600,
		})
	}))
	defer server.Close()

	manager := NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     server.URL + "/token",
		ClientID:     "public-key",
		ClientSecret: "private-key",
		OnRefresh: func(err error) {
			refreshOutcome = err
			outcomeSeen = true
		},
	})

	// A still-valid token does not block a forced refresh.
	manager.SetToken("current-token", time.Now().Add(1*time.Hour))

	err := manager.RefreshToken(context.Background())
	require.NoError(t, err)

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", token)

	assert.True(t, outcomeSeen)
	require.NoError(t, refreshOutcome)
}

func TestOAuth2TokenManager_SingleFlight(t *testing.T) {
	var exchanges atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		time.Sleep(25 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(Token{
			AccessToken: "shared-token",
			TokenType:   "bearer",
			ExpiresIn:   3600,
		})
	}))
	defer server.Close()

	manager := NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     server.URL + "/token",
		ClientID:     "public-key",
		ClientSecret: "private-key",
	})

	const callers = 25

	tokens := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		i := i

		wg.Add(1)

		go func() {
			defer wg.Done()

			tokens[i], errs[i] = manager.GetToken(context.Background())
		}()
	}

	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared-token", tokens[i])
	}

	// Concurrent callers coalesce onto one exchange, and once the token is
	// stored the double-check suppresses any follow-up exchange.
	assert.Equal(t, int32(1), exchanges.Load())
}

func TestOAuth2TokenManager_SingleFlightDeliversFailure(t *testing.T) {
	var exchanges atomic.Int32

	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		<-release
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "temporarily_unavailable"}`))
	}))
	defer server.Close()

	manager := NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     server.URL + "/token",
		ClientID:     "public-key",
		ClientSecret: "private-key",
	})

	const callers = 10

	errs := make([]error, callers)

	var ready, wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		i := i

		ready.Add(1)
		wg.Add(1)

		go func() {
			defer wg.Done()

			ready.Done()

			_, errs[i] = manager.GetToken(context.Background())
		}()
	}

	// Let every caller reach the manager before the exchange resolves.
	ready.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.Error(t, errs[i])
		require.ErrorIs(t, errs[i], constants.ErrTokenExchangeFailed)
		assert.Contains(t, errs[i].Error(), "temporarily_unavailable")
	}

	assert.Equal(t, int32(1), exchanges.Load())
}

func TestOAuth2TokenManager_WaiterHonorsContext(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		_ = json.NewEncoder(w).Encode(Token{
			AccessToken: "slow-token",
			TokenType:   "bearer",
			ExpiresIn:   3600,
		})
	}))
	defer server.Close()

	manager := NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     server.URL + "/token",
		ClientID:     "public-key",
		ClientSecret: "private-key",
	})

	leaderErr := make(chan error, 1)

	go func() {
		leaderErr <- manager.RefreshToken(context.Background())
	}()

	// The leader holds the in-flight exchange once its request arrives.
	<-arrived

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := manager.GetToken(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "waiting for token refresh")

	close(release)
	require.NoError(t, <-leaderErr)

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "slow-token", token)
}

func TestTokenErrorDetail(t *testing.T) {
	t.Run("oauth error with description", func(t *testing.T) {
		detail := tokenErrorDetail(401, []byte(`{"error":"invalid_client","error_description":"bad keys"}`))
		assert.Equal(t, "status 401: invalid_client: bad keys", detail)
	})

	t.Run("oauth error without description", func(t *testing.T) {
		detail := tokenErrorDetail(400, []byte(`{"error":"invalid_request"}`))
		assert.Equal(t, "status 400: invalid_request", detail)
	})

	t.Run("plain body", func(t *testing.T) {
		detail := tokenErrorDetail(502, []byte("Bad Gateway"))
		assert.Equal(t, "status 502: Bad Gateway", detail)
	})

	t.Run("oversized body is truncated", func(t *testing.T) {
		body := make([]byte, 500)
		for i := range body {
			body[i] = 'x'
		}

		detail := tokenErrorDetail(500, body)
		assert.Len(t, detail, len("status 500: ")+200)
	})

	t.Run("empty body", func(t *testing.T) {
		detail := tokenErrorDetail(503, nil)
		assert.Equal(t, "status 503", detail)
	})
}

func TestStaticTokenManager(t *testing.T) {
	t.Run("serves the fixed token", func(t *testing.T) {
		manager := NewStaticTokenManager("static-token")

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "static-token", token)

		current := manager.Current()
		require.NotNil(t, current)
		assert.Equal(t, "bearer", current.TokenType)
	})

	t.Run("empty token fails", func(t *testing.T) {
		manager := NewStaticTokenManager("")

		_, err := manager.GetToken(context.Background())
		require.ErrorIs(t, err, constants.ErrNoCredentials)
	})

	t.Run("refresh is not supported", func(t *testing.T) {
		manager := NewStaticTokenManager("static-token")

		err := manager.RefreshToken(context.Background())
		require.ErrorIs(t, err, constants.ErrNoRefreshForStatic)
	})

	t.Run("set token replaces", func(t *testing.T) {
		manager := NewStaticTokenManager("old-token")
		manager.SetToken("new-token", time.Now().Add(1*time.Hour))

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "new-token", token)
	})
}
