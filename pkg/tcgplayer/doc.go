// Package tcgplayer provides types, interfaces, and building blocks for
// working with the TCGplayer marketplace API.
//
// # Overview
//
// The tcgplayer package defines the request/response model (Request,
// Response, Envelope), the Client interface, and the orchestration
// primitives every call runs through: a fixed-window rate limiter, a TTL+LRU
// response cache with pluggable backends, and a retry policy with
// exponential backoff. A concrete implementation of Client is provided by
// the tcgclient package, which wires configuration, transport,
// authentication, and caching together. Most consumers should import
// tcgclient to construct a client and then work with the surface exposed
// here.
//
// Getting a client
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
//	  cli, err := tcgclient.NewWithClientCredentials(ctx, "public-key", "private-key")
//	  if err != nil { log.Fatal(err) }
//
//	  // List the first page of categories
//	  resp, err := cli.Get(ctx, "/catalog/categories", tcgplayer.NewQueryParams().WithLimit(50))
//	  if err != nil { log.Fatal(err) }
//	  _ = resp
//	}
//
// # Queries and pagination
//
// Use QueryParams to express common list options (offset, limit, sortOrder,
// filters). The package also provides helpers for iterating or collecting
// paginated results:
//
//	pager := tcgplayer.NewPageLister[Category](cli)
//	it := tcgplayer.NewPaginationIterator(ctx, pager, "/catalog/categories", nil)
//	for it.HasNext() {
//	  category, err := it.Next()
//	  if err != nil { break }
//	  _ = category
//	}
//
// or fetch all results at once:
//
//	all, err := tcgplayer.FetchAllPages(ctx, pager, "/catalog/categories", nil, tcgplayer.DefaultPaginationOptions())
//	if err != nil { /* handle error */ }
//	_ = all
//
// # Errors
//
// Failures are represented by APIError, which carries the failure type,
// HTTP status, attempt count, and the envelope error strings when present.
// Helpers such as IsTransient, IsRateLimited, and IsRetriesExhausted make it
// easy to branch on common cases.
//
// # Rate limiting, caching, and retries
//
// RateLimiter enforces the documented ceiling of ten requests per second
// using a fixed one-second window; requests block in Acquire until a slot
// frees. CacheManager keys responses by a fingerprint of method, path, and
// sorted query and serves eligible GETs without network traffic until their
// TTL lapses. RetryPolicy governs which methods and status codes are
// retried and computes exponential backoff with jitter, honoring Retry-After
// on 429 responses. The tcgclient package composes these pieces for a
// sensible default client; applications with advanced needs can also use
// these primitives directly.
package tcgplayer
