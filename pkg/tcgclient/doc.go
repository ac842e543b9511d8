// Package tcgclient provides the primary entry point for constructing a
// TCGplayer API client that implements the tcgplayer.Client interface.
//
// It layers configuration, pooled HTTP transport, OAuth2 authentication,
// rate limiting, response caching, and retry handling on top of the types
// defined in the tcgplayer package. Most applications should import
// tcgclient to build a client, then work with the returned tcgplayer.Client.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/joshwilhelmi/tcgplayer-go/pkg/tcgclient"
//	  "github.com/joshwilhelmi/tcgplayer-go/pkg/tcgplayer"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // With application keys (OAuth2 client_credentials):
//	  cli, err := tcgclient.NewWithClientCredentials(ctx, "public-key", "private-key")
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with a bearer token you already have:
//	  cli, err = tcgclient.NewWithBearerToken(ctx, "eyJhbGciOi...")
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with full control over rate limiting, caching, and retries:
//	  cli, err = tcgclient.New(ctx, &tcgplayer.Config{
//	    ClientID:             "public-key",
//	    ClientSecret:         "private-key",
//	    MaxRequestsPerSecond: 5,
//	    RetryMaxAttempts:     4,
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  resp, err := cli.Get(ctx, "/catalog/categories", nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = resp
//	}
//
// # Configuration sources
//
// Besides building a Config in code, NewFromEnv reads TCGPLAYER_* environment
// variables (TCGPLAYER_CLIENT_ID, TCGPLAYER_CLIENT_SECRET, and friends) and
// NewFromFile reads a YAML config file. See tcgplayer.LoadConfig for the
// file format and search paths.
//
// # Helpers
//
// The package also provides convenience constructors NewWithClientCredentials,
// NewWithBearerToken, NewFromEnv, and NewFromFile that wrap New with the
// appropriate configuration.
package tcgclient
