package constants

import "errors"

// Credential and token errors.
var (
	ErrNoCredentials       = errors.New("no credentials configured: set ClientID and ClientSecret or a BearerToken")
	ErrNoRefreshForStatic  = errors.New("static bearer token cannot be refreshed")
	ErrTokenExchangeFailed = errors.New("token exchange with identity endpoint failed")
	ErrEmptyAccessToken    = errors.New("identity endpoint returned an empty access token")
)

// Retry policy validation errors.
var (
	ErrInvalidRetryBounds = errors.New("retry base delay must not exceed retry max delay")
	ErrInvalidMaxAttempts = errors.New("retry max attempts must be at least 1")
)
