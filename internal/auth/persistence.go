package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNoTokenPersister = errors.New("no token persister configured")
)

// TokenPersister saves issued tokens so later processes can reuse them
// instead of burning a token exchange on startup.
type TokenPersister interface {
	UpdateToken(endpoint, token string, expiresAt time.Time) error
}

// PersistentTokenManager wraps OAuth2TokenManager and automatically persists
// refreshed tokens.
type PersistentTokenManager struct {
	oauth2Manager *OAuth2TokenManager
	persister     TokenPersister
	endpoint      string
	mutex         sync.RWMutex
	lastToken     string
	lastExpiry    time.Time
}

// NewPersistentTokenManager creates a persisting token manager. An initial
// token, typically loaded from the persister's storage, seeds the manager so
// a still-valid token survives process restarts.
func NewPersistentTokenManager(config *OAuth2Config, persister TokenPersister, endpoint string, initialToken string, initialExpiry time.Time) *PersistentTokenManager {
	oauth2Manager := NewOAuth2TokenManager(config)

	if initialToken != "" {
		oauth2Manager.SetToken(initialToken, initialExpiry)
	}

	return &PersistentTokenManager{
		oauth2Manager: oauth2Manager,
		persister:     persister,
		endpoint:      endpoint,
		lastToken:     initialToken,
		lastExpiry:    initialExpiry,
	}
}

// GetToken returns a valid access token, refreshing if necessary. A token
// change is persisted in the background so the request is not delayed.
func (m *PersistentTokenManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.oauth2Manager.GetToken(ctx)
	if err != nil {
		return "", err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	current := m.oauth2Manager.Current()
	if current != nil && (current.AccessToken != m.lastToken || !current.ExpiresAt.Equal(m.lastExpiry)) {
		snapshot := *current

		go func() {
			persistErr := m.persistToken(&snapshot)
			if persistErr != nil {
				// Log but don't fail the request over a persistence problem.
				_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to persist refreshed token: %v\n", persistErr)
			}
		}()

		m.lastToken = current.AccessToken
		m.lastExpiry = current.ExpiresAt
	}

	return token, nil
}

// RefreshToken forces a token refresh and persists the result.
func (m *PersistentTokenManager) RefreshToken(ctx context.Context) error {
	err := m.oauth2Manager.RefreshToken(ctx)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	current := m.oauth2Manager.Current()
	if current != nil {
		persistErr := m.persistToken(current)
		if persistErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to persist refreshed token: %v\n", persistErr)
		}

		m.lastToken = current.AccessToken
		m.lastExpiry = current.ExpiresAt
	}

	return nil
}

// SetToken manually sets the access token.
func (m *PersistentTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.oauth2Manager.SetToken(token, expiresAt)
	m.lastToken = token
	m.lastExpiry = expiresAt
}

// Current returns the stored token without triggering a refresh.
func (m *PersistentTokenManager) Current() *Token {
	return m.oauth2Manager.Current()
}

// IsTokenExpiringSoon returns true if the token expires within the given duration.
func (m *PersistentTokenManager) IsTokenExpiringSoon(within time.Duration) bool {
	token := m.oauth2Manager.Current()
	if token == nil {
		return true
	}

	return time.Now().Add(within).After(token.ExpiresAt)
}

// GetTokenExpiry returns the current token's expiration time.
func (m *PersistentTokenManager) GetTokenExpiry() time.Time {
	token := m.oauth2Manager.Current()
	if token == nil {
		return time.Time{}
	}

	return token.ExpiresAt
}

// persistToken saves the token through the persister.
func (m *PersistentTokenManager) persistToken(token *Token) error {
	if m.persister == nil {
		return ErrNoTokenPersister
	}

	err := m.persister.UpdateToken(m.endpoint, token.AccessToken, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}

	return nil
}

// persistedToken is the on-disk shape written by FileTokenPersister.
type persistedToken struct {
	Endpoint    string    `yaml:"endpoint"`
	AccessToken string    `yaml:"access_token"`
	ExpiresAt   time.Time `yaml:"expires_at"`
}

// FileTokenPersister stores the current token in a YAML file with owner-only
// permissions.
type FileTokenPersister struct {
	path string
	mu   sync.Mutex
}

// NewFileTokenPersister creates a persister writing to path.
func NewFileTokenPersister(path string) *FileTokenPersister {
	return &FileTokenPersister{path: path}
}

// UpdateToken writes the token to the backing file.
func (p *FileTokenPersister) UpdateToken(endpoint, token string, expiresAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := yaml.Marshal(&persistedToken{
		Endpoint:    endpoint,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}

	if dir := filepath.Dir(p.path); dir != "." && dir != "" {
		err = os.MkdirAll(dir, constants.ConfigDirPerm)
		if err != nil {
			return fmt.Errorf("creating token directory: %w", err)
		}
	}

	err = os.WriteFile(p.path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	return nil
}

// LoadToken reads a previously persisted token. A missing file returns zero
// values and no error.
func (p *FileTokenPersister) LoadToken(endpoint string) (string, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", time.Time{}, nil
		}

		return "", time.Time{}, fmt.Errorf("reading token file: %w", err)
	}

	var stored persistedToken

	err = yaml.Unmarshal(data, &stored)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parsing token file: %w", err)
	}

	// Tokens persisted for a different endpoint are not reusable.
	if stored.Endpoint != endpoint {
		return "", time.Time{}, nil
	}

	return stored.AccessToken, stored.ExpiresAt, nil
}
