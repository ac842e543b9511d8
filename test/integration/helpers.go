//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshwilhelmi/tcgplayer-go/pkg/tcgclient"
	"github.com/joshwilhelmi/tcgplayer-go/pkg/tcgplayer"
)

// TestConfig holds configuration for tests that target the live service.
type TestConfig struct {
	APIEndpoint  string
	ClientID     string
	ClientSecret string
	Verbose      bool
}

// LoadTestConfig loads configuration from environment variables.
func LoadTestConfig() *TestConfig {
	endpoint := os.Getenv("TCGPLAYER_TEST_ENDPOINT")
	if endpoint == "" {
		endpoint = "https://api.tcgplayer.com"
	}

	return &TestConfig{
		APIEndpoint:  endpoint,
		ClientID:     os.Getenv("TCGPLAYER_TEST_CLIENT_ID"),
		ClientSecret: os.Getenv("TCGPLAYER_TEST_CLIENT_SECRET"),
		Verbose:      os.Getenv("TCGPLAYER_TEST_VERBOSE") == "true",
	}
}

// SkipIfMissingConfig skips the test when no live credentials are configured.
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	if config.ClientID == "" || config.ClientSecret == "" {
		t.Skip("TCGPLAYER_TEST_CLIENT_ID not set, skipping live integration test")
	}
}

// Category mirrors the catalog category payload served by the mock API.
type Category struct {
	CategoryID  int    `json:"categoryId"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// Product mirrors the catalog product payload served by the mock API.
type Product struct {
	ProductID  int    `json:"productId"`
	Name       string `json:"name"`
	CategoryID int    `json:"categoryId"`
	GroupID    int    `json:"groupId"`
}

// ProductPrice mirrors the pricing payload served by the mock API.
type ProductPrice struct {
	ProductID   int     `json:"productId"`
	MarketPrice float64 `json:"marketPrice"`
	SubTypeName string  `json:"subTypeName"`
}

const mockCategoryCount = 25

// mockAPI is an in-process stand-in for the TCGplayer marketplace API. It
// issues bearer tokens via the client_credentials grant, serves a small
// paginated catalog, and supports per-path fault injection so workflows can
// exercise retry and rate-limit handling end to end.
type mockAPI struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.Mutex
	requests   map[string]int
	failures   map[string]int
	rateLimits map[string]int
	retryAfter string
	issued     map[string]bool

	exchanges atomic.Int32
	tokenTTL  int64
}

func newMockAPI(t *testing.T) *mockAPI {
	api := &mockAPI{
		t:          t,
		requests:   make(map[string]int),
		failures:   make(map[string]int),
		rateLimits: make(map[string]int),
		retryAfter: "1",
		issued:     make(map[string]bool),
		tokenTTL:   3600,
	}

	api.server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.server.Close)

	return api
}

// URL returns the base URL of the mock API.
func (api *mockAPI) URL() string {
	return api.server.URL
}

// Exchanges reports how many token exchanges the mock has performed.
func (api *mockAPI) Exchanges() int {
	return int(api.exchanges.Load())
}

// Requests reports how many requests reached path, including attempts that
// were answered with injected faults.
func (api *mockAPI) Requests(path string) int {
	api.mu.Lock()
	defer api.mu.Unlock()

	return api.requests[path]
}

// FailTimes makes the next n requests to path answer with HTTP 503.
func (api *mockAPI) FailTimes(path string, n int) {
	api.mu.Lock()
	defer api.mu.Unlock()

	api.failures[path] = n
}

// RateLimitOnce makes the next request to path answer with HTTP 429 and the
// given Retry-After value in seconds.
func (api *mockAPI) RateLimitOnce(path, retryAfter string) {
	api.mu.Lock()
	defer api.mu.Unlock()

	api.rateLimits[path] = 1
	api.retryAfter = retryAfter
}

func (api *mockAPI) handle(writer http.ResponseWriter, request *http.Request) {
	if request.URL.Path == "/token" {
		api.handleToken(writer, request)

		return
	}

	if !api.authorized(request) {
		writer.WriteHeader(http.StatusUnauthorized)
		writeEnvelope(writer, false, []string{"bearer token is invalid or expired"}, nil, 0)

		return
	}

	path := request.URL.Path

	api.mu.Lock()
	api.requests[path]++

	if api.failures[path] > 0 {
		api.failures[path]--
		api.mu.Unlock()

		writer.WriteHeader(http.StatusServiceUnavailable)
		writeEnvelope(writer, false, []string{"service temporarily unavailable"}, nil, 0)

		return
	}

	if api.rateLimits[path] > 0 {
		api.rateLimits[path]--
		retryAfter := api.retryAfter
		api.mu.Unlock()

		writer.Header().Set("Retry-After", retryAfter)
		writer.WriteHeader(http.StatusTooManyRequests)
		writeEnvelope(writer, false, []string{"rate limit exceeded"}, nil, 0)

		return
	}
	api.mu.Unlock()

	switch {
	case path == "/catalog/categories":
		api.serveCategories(writer, request)
	case path == "/catalog/products":
		api.serveProducts(writer, request)
	case len(path) > len("/pricing/product/") && path[:len("/pricing/product/")] == "/pricing/product/":
		api.servePrices(writer, path[len("/pricing/product/"):])
	default:
		writer.WriteHeader(http.StatusNotFound)
		writeEnvelope(writer, false, []string{"no route matches the request"}, nil, 0)
	}
}

func (api *mockAPI) handleToken(writer http.ResponseWriter, request *http.Request) {
	assert.NoError(api.t, request.ParseForm())
	assert.Equal(api.t, "client_credentials", request.PostFormValue("grant_type"))

	if request.PostFormValue("client_id") == "" || request.PostFormValue("client_secret") == "" {
		writer.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(writer).Encode(map[string]string{"error": "invalid_client"})

		return
	}

	token := fmt.Sprintf("integration-token-%d", api.exchanges.Add(1))

	api.mu.Lock()
	api.issued[token] = true
	api.mu.Unlock()

	_ = json.NewEncoder(writer).Encode(map[string]interface{}{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   api.tokenTTL,
	})
}

func (api *mockAPI) authorized(request *http.Request) bool {
	header := request.Header.Get("Authorization")
	if len(header) <= len("Bearer ") {
		return false
	}

	api.mu.Lock()
	defer api.mu.Unlock()

	return api.issued[header[len("Bearer "):]]
}

func (api *mockAPI) serveCategories(writer http.ResponseWriter, request *http.Request) {
	offset, limit := pageWindow(request, 10)

	results := make([]Category, 0, limit)
	for id := offset + 1; id <= mockCategoryCount && len(results) < limit; id++ {
		results = append(results, Category{
			CategoryID:  id,
			Name:        fmt.Sprintf("Category %d", id),
			DisplayName: fmt.Sprintf("Category %d", id),
		})
	}

	writeEnvelope(writer, true, nil, results, mockCategoryCount)
}

func (api *mockAPI) serveProducts(writer http.ResponseWriter, request *http.Request) {
	offset, limit := pageWindow(request, 10)

	all := []Product{
		{ProductID: 83, Name: "Black Lotus", CategoryID: 1, GroupID: 7},
		{ProductID: 84, Name: "Ancestral Recall", CategoryID: 1, GroupID: 7},
		{ProductID: 85, Name: "Time Walk", CategoryID: 1, GroupID: 7},
		{ProductID: 86, Name: "Mox Sapphire", CategoryID: 1, GroupID: 7},
		{ProductID: 87, Name: "Timetwister", CategoryID: 1, GroupID: 7},
	}

	if offset > len(all) {
		offset = len(all)
	}

	end := offset + limit
	if end > len(all) {
		end = len(all)
	}

	writeEnvelope(writer, true, nil, all[offset:end], len(all))
}

func (api *mockAPI) servePrices(writer http.ResponseWriter, idList string) {
	id, err := strconv.Atoi(idList)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		writeEnvelope(writer, false, []string{"invalid product id"}, nil, 0)

		return
	}

	results := []ProductPrice{
		{ProductID: id, MarketPrice: float64(id) * 10.5, SubTypeName: "Normal"},
		{ProductID: id, MarketPrice: float64(id) * 21.0, SubTypeName: "Foil"},
	}

	writeEnvelope(writer, true, nil, results, len(results))
}

func pageWindow(request *http.Request, defaultLimit int) (offset, limit int) {
	offset, _ = strconv.Atoi(request.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(request.URL.Query().Get("limit"))

	if limit <= 0 {
		limit = defaultLimit
	}

	return offset, limit
}

func writeEnvelope(writer http.ResponseWriter, success bool, errs []string, results interface{}, total int) {
	if errs == nil {
		errs = []string{}
	}

	if results == nil {
		results = []struct{}{}
	}

	_ = json.NewEncoder(writer).Encode(map[string]interface{}{
		"success":    success,
		"errors":     errs,
		"results":    results,
		"totalItems": total,
	})
}

// newTestClient builds a client against the mock API with fast retry timing.
// The mutate hook adjusts the config before construction.
func newTestClient(t *testing.T, api *mockAPI, mutate func(*tcgplayer.Config)) tcgplayer.Client {
	config := &tcgplayer.Config{
		APIEndpoint:      api.URL(),
		ClientID:         "integration-public-key",
		ClientSecret:     "integration-private-key",
		RetryMaxAttempts: 3,
		RetryBaseDelay:   5 * time.Millisecond,
		RetryMaxDelay:    25 * time.Millisecond,
	}

	if mutate != nil {
		mutate(config)
	}

	client, err := tcgclient.New(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}
