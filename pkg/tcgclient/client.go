// Package tcgclient provides the main entry point for creating TCGplayer API clients
package tcgclient

import (
	"context"
	"fmt"

	"github.com/joshwilhelmi/tcgplayer-go/internal/client"
	"github.com/joshwilhelmi/tcgplayer-go/pkg/tcgplayer"
)

// New creates a TCGplayer API client from config.
func New(ctx context.Context, config *tcgplayer.Config) (tcgplayer.Client, error) {
	if config == nil {
		return nil, tcgplayer.ErrConfigRequired
	}

	cli, err := client.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return cli, nil
}

// NewWithClientCredentials creates a client that authenticates with the
// OAuth2 client_credentials grant using an application's public and private
// keys. The production API endpoint is used.
func NewWithClientCredentials(ctx context.Context, clientID, clientSecret string) (tcgplayer.Client, error) {
	return New(ctx, &tcgplayer.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}

// NewWithBearerToken creates a client around an existing bearer token. The
// token is used as-is and never refreshed.
func NewWithBearerToken(ctx context.Context, token string) (tcgplayer.Client, error) {
	return New(ctx, &tcgplayer.Config{
		BearerToken: token,
	})
}

// NewFromEnv creates a client configured from TCGPLAYER_* environment
// variables.
func NewFromEnv(ctx context.Context) (tcgplayer.Client, error) {
	config, err := tcgplayer.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	return New(ctx, config)
}

// NewFromFile creates a client from a YAML config file. An empty path
// searches the default config locations.
func NewFromFile(ctx context.Context, path string) (tcgplayer.Client, error) {
	config, err := tcgplayer.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	return New(ctx, config)
}
