package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultRefreshBeforeExpiry is how early a cached token is considered stale.
const DefaultRefreshBeforeExpiry = 30 * time.Second

const maxTokenResponseBytes = 1 << 20

// ClientCredentials identifies an OAuth2 client at a token endpoint.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (c ClientCredentials) cacheKey() string {
	return strings.Join([]string{c.TokenURL, c.ClientID, c.ClientSecret, strings.Join(c.Scopes, " ")}, "\x00")
}

type accessToken struct {
	value     string
	tokenType string
	staleAt   time.Time
}

// OAuth2ClientCredentialsProvider authenticates requests with tokens from the
// client credentials grant. Tokens are cached until shortly before expiry and
// concurrent callers wait on a single fetch.
type OAuth2ClientCredentialsProvider struct {
	creds               ClientCredentials
	refreshBeforeExpiry time.Duration
	httpClient          *http.Client
	now                 func() time.Time

	mu       sync.Mutex
	cond     *sync.Cond
	token    accessToken
	fetching bool
}

// NewOAuth2ClientCredentialsProvider validates creds and returns a provider.
// A nil client gets a 30 second timeout.
func NewOAuth2ClientCredentialsProvider(creds ClientCredentials, refreshBeforeExpiry time.Duration, client *http.Client) (*OAuth2ClientCredentialsProvider, error) {
	if strings.TrimSpace(creds.TokenURL) == "" {
		return nil, fmt.Errorf("oauth2: token URL is required")
	}
	if strings.TrimSpace(creds.ClientID) == "" {
		return nil, fmt.Errorf("oauth2: client ID is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	creds.Scopes = append([]string(nil), creds.Scopes...)
	p := &OAuth2ClientCredentialsProvider{
		creds:               creds,
		refreshBeforeExpiry: refreshBeforeExpiry,
		httpClient:          client,
		now:                 time.Now,
	}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

// Token returns a valid access token, fetching one when the cache is empty
// or stale.
func (p *OAuth2ClientCredentialsProvider) Token(ctx context.Context) (string, error) {
	tok, err := p.current(ctx)
	if err != nil {
		return "", err
	}
	return tok.value, nil
}

func (p *OAuth2ClientCredentialsProvider) current(ctx context.Context) (accessToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.freshLocked() {
			return p.token, nil
		}
		if !p.fetching {
			break
		}
		p.cond.Wait()
	}

	p.fetching = true
	p.mu.Unlock()
	tok, err := p.fetch(ctx)
	p.mu.Lock()
	p.fetching = false
	p.cond.Broadcast()

	if err != nil {
		return accessToken{}, err
	}
	p.token = tok
	return tok, nil
}

func (p *OAuth2ClientCredentialsProvider) freshLocked() bool {
	return p.token.value != "" && p.now().Before(p.token.staleAt)
}

func (p *OAuth2ClientCredentialsProvider) fetch(ctx context.Context) (accessToken, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	if len(p.creds.Scopes) > 0 {
		form.Set("scope", strings.Join(p.creds.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.creds.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return accessToken{}, fmt.Errorf("oauth2: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(p.creds.ClientID, p.creds.ClientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return accessToken{}, fmt.Errorf("oauth2: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return accessToken{}, fmt.Errorf("oauth2: token endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return accessToken{}, fmt.Errorf("oauth2: read token response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return accessToken{}, fmt.Errorf("oauth2: token response is not JSON")
	}

	fields := gjson.GetManyBytes(body, "access_token", "token_type", "expires_in", "error", "error_description")
	if code := fields[3].String(); code != "" {
		if desc := fields[4].String(); desc != "" {
			return accessToken{}, fmt.Errorf("oauth2: %s: %s", code, desc)
		}
		return accessToken{}, fmt.Errorf("oauth2: %s", code)
	}
	if fields[0].String() == "" {
		return accessToken{}, fmt.Errorf("oauth2: no access token in response")
	}

	tokenType := fields[1].String()
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	lifetime := time.Duration(fields[2].Int()) * time.Second
	return accessToken{
		value:     fields[0].String(),
		tokenType: tokenType,
		staleAt:   p.now().Add(lifetime - p.refreshBeforeExpiry),
	}, nil
}

// Apply sets the Authorization header using the cached token.
func (p *OAuth2ClientCredentialsProvider) Apply(ctx context.Context, req *http.Request) error {
	tok, err := p.current(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", tok.tokenType+" "+tok.value)
	return nil
}

// Close drops idle connections to the token endpoint.
func (p *OAuth2ClientCredentialsProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
