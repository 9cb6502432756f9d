package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// BearerProvider sends a pre-configured token in the Authorization header.
type BearerProvider struct {
	token string
}

// NewBearerProvider creates a provider for a static bearer token.
func NewBearerProvider(token string) *BearerProvider {
	return &BearerProvider{token: token}
}

// Token returns the static token immediately without any network calls.
func (p *BearerProvider) Token(ctx context.Context) (string, error) {
	return p.token, nil
}

// Apply sets "Authorization: Bearer <token>".
func (p *BearerProvider) Apply(ctx context.Context, req *http.Request) error {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.token))
	return nil
}

// Close is a no-op for static providers.
func (p *BearerProvider) Close() error {
	return nil
}

// BasicProvider sends HTTP basic credentials.
type BasicProvider struct {
	username string
	password string
}

func NewBasicProvider(username, password string) *BasicProvider {
	return &BasicProvider{username: username, password: password}
}

func (p *BasicProvider) Apply(ctx context.Context, req *http.Request) error {
	req.SetBasicAuth(p.username, p.password)
	return nil
}

func (p *BasicProvider) Close() error {
	return nil
}

// APIKeyProvider places a named key in a header or in the query string.
type APIKeyProvider struct {
	key     string
	value   string
	inQuery bool
}

// NewAPIKeyProvider creates a provider for key=value. in is "header" (the
// default) or "query".
func NewAPIKeyProvider(key, value, in string) (*APIKeyProvider, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("api key name is required")
	}
	p := &APIKeyProvider{key: key, value: value}
	switch strings.ToLower(strings.TrimSpace(in)) {
	case "", "header":
	case "query":
		p.inQuery = true
	default:
		return nil, fmt.Errorf("api key location must be header or query, got %q", in)
	}
	return p, nil
}

func (p *APIKeyProvider) Apply(ctx context.Context, req *http.Request) error {
	if !p.inQuery {
		req.Header.Set(p.key, p.value)
		return nil
	}
	q := req.URL.Query()
	q.Set(p.key, p.value)
	req.URL.RawQuery = q.Encode()
	return nil
}

func (p *APIKeyProvider) Close() error {
	return nil
}
