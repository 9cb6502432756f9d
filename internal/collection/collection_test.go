package collection

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/repeater/internal/har"
	"github.com/torosent/repeater/internal/request"
	"github.com/torosent/repeater/internal/variables"
)

const sampleCollection = `
name: Users API
variables:
  baseUrl: https://api.example.com
  version: v1
  token: collection-token
environments:
  staging:
    baseUrl: https://staging.example.com
    token: staging-token
  empty: {}
requests:
  - name: Health
    url: "{{baseUrl}}/health"
folders:
  - name: Users
    requests:
      - name: Get user
        method: get
        url: "{{baseUrl}}/{{version}}/users/{{id}}"
        headers:
          Accept: application/json
          X-Request-Id: "{{id}}"
        auth:
          type: bearer
          token: "{{token}}"
      - name: Create user
        method: POST
        url: "{{baseUrl}}/{{version}}/users"
        headers:
          - name: X-Tag
            value: a
          - name: X-Tag
            value: b
        body: '{"name":"{{name}}"}'
    folders:
      - name: Admin
        requests:
          - name: Delete user
            method: DELETE
            url: "{{baseUrl}}/admin/users/{{id}}"
            auth:
              type: oauth2_client_credentials
              token_url: https://idp.example.com/token
              client_id: cli
              client_secret: "{{secret}}"
              scopes: [users.write]
  - name: Streams
    requests:
      - name: Feed
        protocol: wss
        url: wss://stream.example.com/feed
        websocket:
          messages: ["subscribe {{id}}"]
          message_interval: 100ms
          receive_timeout: 2s
`

func mustParse(t *testing.T, doc string) *Collection {
	t.Helper()
	c, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

func TestParseCollection(t *testing.T) {
	c := mustParse(t, sampleCollection)

	if c.Name != "Users API" {
		t.Errorf("name = %q", c.Name)
	}
	wantPaths := []string{"Health", "Users/Get user", "Users/Create user", "Users/Admin/Delete user", "Streams/Feed"}
	if got := c.Paths(); strings.Join(got, "|") != strings.Join(wantPaths, "|") {
		t.Errorf("paths = %v, want %v", got, wantPaths)
	}
	if got := c.Variables.Keys(); strings.Join(got, ",") != "baseUrl,version,token" {
		t.Errorf("variable order = %v", got)
	}
	if got := c.EnvironmentNames(); strings.Join(got, ",") != "empty,staging" {
		t.Errorf("environments = %v", got)
	}
}

func TestLookup(t *testing.T) {
	c := mustParse(t, sampleCollection)

	get, ok := c.Lookup("Users/Get user")
	if !ok {
		t.Fatal("Users/Get user not found")
	}
	if get.Method != "get" || get.URL != "{{baseUrl}}/{{version}}/users/{{id}}" {
		t.Errorf("unexpected template %+v", get)
	}
	if len(get.Headers) != 2 || get.Headers[0].Name != "Accept" || get.Headers[1].Name != "X-Request-Id" {
		t.Errorf("headers = %v", get.Headers)
	}
	if get.Auth.Type != request.AuthBearer || get.Auth.Token != "{{token}}" {
		t.Errorf("auth = %+v", get.Auth)
	}

	create, _ := c.Lookup("Users/Create user")
	if len(create.Headers) != 2 || create.Headers[0].Value != "a" || create.Headers[1].Value != "b" {
		t.Errorf("repeated headers = %v", create.Headers)
	}

	del, ok := c.Lookup(" Users/Admin/Delete user ")
	if !ok {
		t.Fatal("nested lookup failed")
	}
	if del.Auth.Type != request.AuthOAuth2ClientCredentials || len(del.Auth.Scopes) != 1 {
		t.Errorf("oauth2 auth = %+v", del.Auth)
	}

	feed, _ := c.Lookup("Streams/Feed")
	if feed.Protocol != request.ProtocolWebSocket {
		t.Errorf("protocol = %s", feed.Protocol)
	}
	if feed.WebSocket.MessageInterval != 100*time.Millisecond || feed.WebSocket.ReceiveTimeout != 2*time.Second {
		t.Errorf("websocket = %+v", feed.WebSocket)
	}

	for _, missing := range []string{"", "Users", "Get user", "Users/Nope"} {
		if _, ok := c.Lookup(missing); ok {
			t.Errorf("Lookup(%q) should fail", missing)
		}
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	c := mustParse(t, sampleCollection)
	first, _ := c.Lookup("Users/Get user")
	first.Headers[0].Value = "mutated"
	second, _ := c.Lookup("Users/Get user")
	if second.Headers[0].Value != "application/json" {
		t.Fatal("Lookup must not expose the stored template")
	}
}

func TestResolverLayers(t *testing.T) {
	c := mustParse(t, sampleCollection)

	overrides := variables.FromMap(map[string]string{"version": "v2"})
	r, err := c.Resolver("staging", overrides)
	if err != nil {
		t.Fatalf("Resolver: %v", err)
	}
	vars := r.EffectiveVariables()
	tests := map[string]string{
		"baseUrl": "https://staging.example.com",
		"token":   "staging-token",
		"version": "v2",
	}
	for key, want := range tests {
		if got, _ := vars.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}

	noEnv, err := c.Resolver("", variables.Set{})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := noEnv.EffectiveVariables().Get("baseUrl"); got != "https://api.example.com" {
		t.Errorf("baseUrl without environment = %q", got)
	}

	if _, err := c.Resolver("production", variables.Set{}); err == nil || !strings.Contains(err.Error(), "production") {
		t.Errorf("expected unknown environment error, got %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"invalid yaml", "requests: [", "parse collection"},
		{"variables not a mapping", "variables: [a, b]", "variables must be a mapping"},
		{"nested variable", "variables:\n  a:\n    b: c", "must be a scalar"},
		{"duplicate path", "requests:\n  - name: A\n  - name: A", "duplicate request path"},
		{"unnamed request", "requests:\n  - url: http://x", "without a name"},
		{"unnamed folder", "folders:\n  - requests: []", "folder without a name"},
		{"bad protocol", "requests:\n  - name: A\n    protocol: gopher", "unknown protocol"},
		{"bad auth", "requests:\n  - name: A\n    auth: {type: digest}", "unsupported auth type"},
		{"body and file", "requests:\n  - name: A\n    body: x\n    body_file: y.json", "mutually exclusive"},
		{"bad duration", "requests:\n  - name: A\n    websocket: {receive_timeout: soon}", "receive_timeout"},
		{"headers scalar", "requests:\n  - name: A\n    headers: nope", "headers must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseNullSections(t *testing.T) {
	c := mustParse(t, "variables:\nrequests:\n  - name: A\n    headers:\n")
	if c.Variables.Len() != 0 {
		t.Errorf("expected no variables")
	}
	if a, ok := c.Lookup("A"); !ok || len(a.Headers) != 0 {
		t.Errorf("unexpected request %+v", a)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.yaml")
	if err := os.WriteFile(path, []byte(sampleCollection), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, ok := c.Lookup("Health"); !ok {
		t.Error("Health not found")
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFromHAR(t *testing.T) {
	archive := &har.HAR{Log: &har.Log{
		Creator: &har.Creator{Name: "Chrome"},
		Entries: []*har.Entry{
			{Request: &har.Request{Method: "GET", URL: "https://api.example.com/users"}},
			{Request: &har.Request{Method: "GET", URL: "https://api.example.com/app.js"}},
			{Request: &har.Request{Method: "POST", URL: "https://api.example.com/users", PostData: &har.PostData{Text: "{}"}}},
		},
	}}

	c, err := FromHAR(archive, har.DefaultOptions())
	if err != nil {
		t.Fatalf("FromHAR: %v", err)
	}
	if c.Name != "Chrome" {
		t.Errorf("name = %q", c.Name)
	}
	if got := strings.Join(c.Paths(), "|"); got != "GET /users|POST /users" {
		t.Errorf("paths = %s", got)
	}
	post, ok := c.Lookup("POST /users")
	if !ok || post.Body != "{}" {
		t.Errorf("POST /users = %+v, %v", post, ok)
	}

	onlyStatic := &har.HAR{Log: &har.Log{Entries: []*har.Entry{
		{Request: &har.Request{Method: "GET", URL: "https://cdn.example.com/site.css"}},
	}}}
	if _, err := FromHAR(onlyStatic, har.DefaultOptions()); err == nil {
		t.Error("expected error when nothing survives filtering")
	}
}
