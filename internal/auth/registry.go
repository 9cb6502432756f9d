package auth

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/torosent/repeater/internal/request"
)

// Registry hands out providers for resolved request credentials. OAuth2
// providers are shared between iterations that resolve to the same client so
// a token is fetched once per run rather than once per iteration.
type Registry struct {
	client              *http.Client
	refreshBeforeExpiry time.Duration

	mu     sync.Mutex
	oauth2 map[string]*OAuth2ClientCredentialsProvider
}

// NewRegistry creates a registry. client is used for token requests and may
// be nil.
func NewRegistry(client *http.Client, refreshBeforeExpiry time.Duration) *Registry {
	if refreshBeforeExpiry <= 0 {
		refreshBeforeExpiry = DefaultRefreshBeforeExpiry
	}
	return &Registry{
		client:              client,
		refreshBeforeExpiry: refreshBeforeExpiry,
		oauth2:              make(map[string]*OAuth2ClientCredentialsProvider),
	}
}

// Provider returns the provider for a.
func (r *Registry) Provider(a request.Auth) (Provider, error) {
	switch a.Type {
	case request.AuthNone:
		return None, nil
	case request.AuthBearer:
		return NewBearerProvider(a.Token), nil
	case request.AuthBasic:
		return NewBasicProvider(a.Username, a.Password), nil
	case request.AuthAPIKey:
		return NewAPIKeyProvider(a.Key, a.Value, a.In)
	case request.AuthOAuth2ClientCredentials:
		return r.clientCredentials(a)
	default:
		return nil, fmt.Errorf("unsupported auth type %q", a.Type)
	}
}

func (r *Registry) clientCredentials(a request.Auth) (Provider, error) {
	creds := ClientCredentials{
		TokenURL:     a.TokenURL,
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		Scopes:       a.Scopes,
	}
	key := creds.cacheKey()

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.oauth2[key]; ok {
		return p, nil
	}
	p, err := NewOAuth2ClientCredentialsProvider(creds, r.refreshBeforeExpiry, r.client)
	if err != nil {
		return nil, err
	}
	r.oauth2[key] = p
	return p, nil
}

// Close closes every cached provider.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, p := range r.oauth2 {
		p.Close()
		delete(r.oauth2, key)
	}
	return nil
}
