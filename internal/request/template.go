// Package request models the base request a repetition run replays and its
// per-iteration resolution.
package request

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Protocol selects the transport used to send a request.
type Protocol string

const (
	ProtocolHTTP      Protocol = "http"
	ProtocolWebSocket Protocol = "websocket"
)

// ParseProtocol accepts the protocol names used in collection files.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "http", "https":
		return ProtocolHTTP, nil
	case "websocket", "ws", "wss":
		return ProtocolWebSocket, nil
	default:
		return "", fmt.Errorf("unknown protocol %q", s)
	}
}

// Header is one request header. Order is preserved and names may repeat.
type Header struct {
	Name  string
	Value string
}

// AuthType names an authentication scheme.
type AuthType string

const (
	AuthNone                    AuthType = ""
	AuthBearer                  AuthType = "bearer"
	AuthBasic                   AuthType = "basic"
	AuthAPIKey                  AuthType = "apikey"
	AuthOAuth2ClientCredentials AuthType = "oauth2_client_credentials"
)

// Auth holds credentials for the request. Every string field is templated.
type Auth struct {
	Type AuthType

	Token string

	Username string
	Password string

	// Key/Value/In describe an API key; In is "header" (default) or "query".
	Key   string
	Value string
	In    string

	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// WebSocketOptions configure a websocket exchange.
type WebSocketOptions struct {
	Messages        []string
	MessageInterval time.Duration
	ReceiveTimeout  time.Duration
}

// Template is a request whose string fields may contain {{name}} placeholders.
type Template struct {
	Name      string
	Method    string
	URL       string
	Protocol  Protocol
	Headers   []Header
	Body      string
	BodyFile  string
	Auth      Auth
	WebSocket WebSocketOptions
}

// Clone returns a deep copy so a running dispatch cannot observe later edits.
func (t Template) Clone() Template {
	out := t
	if t.Headers != nil {
		out.Headers = append([]Header(nil), t.Headers...)
	}
	if t.Auth.Scopes != nil {
		out.Auth.Scopes = append([]string(nil), t.Auth.Scopes...)
	}
	if t.WebSocket.Messages != nil {
		out.WebSocket.Messages = append([]string(nil), t.WebSocket.Messages...)
	}
	return out
}

// Replacer substitutes placeholders in a single string.
type Replacer func(string) string

// Resolve applies replace to every templated field and returns the concrete
// request. The template itself is left untouched.
func (t Template) Resolve(replace Replacer) Resolved {
	if replace == nil {
		replace = func(s string) string { return s }
	}
	method := strings.ToUpper(strings.TrimSpace(t.Method))
	if method == "" {
		method = http.MethodGet
	}
	protocol := t.Protocol
	if protocol == "" {
		protocol = ProtocolHTTP
	}

	r := Resolved{
		Name:     t.Name,
		Method:   method,
		URL:      replace(t.URL),
		Protocol: protocol,
		Body:     replace(t.Body),
		BodyFile: replace(t.BodyFile),
		Auth: Auth{
			Type:         t.Auth.Type,
			Token:        replace(t.Auth.Token),
			Username:     replace(t.Auth.Username),
			Password:     replace(t.Auth.Password),
			Key:          replace(t.Auth.Key),
			Value:        replace(t.Auth.Value),
			In:           t.Auth.In,
			TokenURL:     replace(t.Auth.TokenURL),
			ClientID:     replace(t.Auth.ClientID),
			ClientSecret: replace(t.Auth.ClientSecret),
		},
		WebSocket: WebSocketOptions{
			MessageInterval: t.WebSocket.MessageInterval,
			ReceiveTimeout:  t.WebSocket.ReceiveTimeout,
		},
	}
	for _, h := range t.Headers {
		r.Headers = append(r.Headers, Header{Name: replace(h.Name), Value: replace(h.Value)})
	}
	for _, s := range t.Auth.Scopes {
		r.Auth.Scopes = append(r.Auth.Scopes, replace(s))
	}
	for _, m := range t.WebSocket.Messages {
		r.WebSocket.Messages = append(r.WebSocket.Messages, replace(m))
	}
	return r
}

// Resolved is a request with all placeholders substituted.
type Resolved struct {
	Name      string
	Method    string
	URL       string
	Protocol  Protocol
	Headers   []Header
	Body      string
	BodyFile  string
	Auth      Auth
	WebSocket WebSocketOptions
}

// Header returns the headers as an http.Header, preserving repeated names.
func (r Resolved) Header() http.Header {
	h := make(http.Header, len(r.Headers))
	for _, hdr := range r.Headers {
		name := strings.TrimSpace(hdr.Name)
		if name == "" {
			continue
		}
		h.Add(name, hdr.Value)
	}
	return h
}

// String renders the request line for logs.
func (r Resolved) String() string {
	return r.Method + " " + r.URL
}
