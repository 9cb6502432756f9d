// Package auth applies request credentials (bearer tokens, basic auth, API
// keys and OAuth2 client credentials) to outgoing HTTP requests.
package auth

import (
	"context"
	"net/http"
)

// Provider adds credentials to an outgoing request.
type Provider interface {
	// Apply sets the credentials on req, typically in the Authorization header.
	Apply(ctx context.Context, req *http.Request) error

	// Close releases any resources held by the provider.
	Close() error
}

// TokenSource is implemented by providers that issue bearer tokens.
type TokenSource interface {
	// Token retrieves a valid authentication token, using cached values
	// when available and valid.
	Token(ctx context.Context) (string, error)
}

type noneProvider struct{}

func (noneProvider) Apply(context.Context, *http.Request) error { return nil }
func (noneProvider) Close() error                               { return nil }

// None is a provider that leaves requests untouched.
var None Provider = noneProvider{}
