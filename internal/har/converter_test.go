package har

import (
	"strings"
	"testing"

	"github.com/torosent/repeater/internal/request"
)

func archiveOf(reqs ...*Request) *HAR {
	entries := make([]*Entry, 0, len(reqs))
	for _, r := range reqs {
		entries = append(entries, &Entry{Request: r})
	}
	return &HAR{Log: &Log{Entries: entries}}
}

func TestConvert_BasicRequest(t *testing.T) {
	templates, err := Convert(archiveOf(&Request{Method: "get", URL: "https://api.example.com/users"}), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(templates) != 1 {
		t.Fatalf("expected 1 template, got %d", len(templates))
	}

	tmpl := templates[0]
	if tmpl.Method != "GET" {
		t.Errorf("expected method GET, got %s", tmpl.Method)
	}
	if tmpl.URL != "https://api.example.com/users" {
		t.Errorf("unexpected URL %s", tmpl.URL)
	}
	if tmpl.Name != "GET /users" {
		t.Errorf("expected name 'GET /users', got %q", tmpl.Name)
	}
	if tmpl.Protocol != request.ProtocolHTTP {
		t.Errorf("expected http protocol, got %s", tmpl.Protocol)
	}
}

func TestConvert_DuplicateNamesAreNumbered(t *testing.T) {
	templates, err := Convert(archiveOf(
		&Request{Method: "GET", URL: "https://api.example.com/users?page=1"},
		&Request{Method: "GET", URL: "https://api.example.com/users?page=2"},
		&Request{Method: "POST", URL: "https://api.example.com/users"},
		&Request{Method: "GET", URL: "https://api.example.com"},
	), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"GET /users", "GET /users (2)", "POST /users", "GET /"}
	if len(templates) != len(want) {
		t.Fatalf("got %d templates", len(templates))
	}
	for i, name := range want {
		if templates[i].Name != name {
			t.Errorf("template %d name = %q, want %q", i, templates[i].Name, name)
		}
	}
}

func TestConvert_HeadersAreFilteredInOrder(t *testing.T) {
	templates, err := Convert(archiveOf(&Request{
		Method: "GET",
		URL:    "https://api.example.com/users",
		Headers: []*Header{
			{Name: ":authority", Value: "api.example.com"},
			{Name: "Accept", Value: "application/json"},
			{Name: "Connection", Value: "keep-alive"},
			{Name: "Cookie", Value: "a=1"},
			{Name: "Content-Length", Value: "0"},
			{Name: "Accept", Value: "text/plain"},
		},
	}), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	got := templates[0].Headers
	want := []request.Header{
		{Name: "Accept", Value: "application/json"},
		{Name: "Cookie", Value: "a=1"},
		{Name: "Accept", Value: "text/plain"},
	}
	if len(got) != len(want) {
		t.Fatalf("headers = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("header %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConvert_NoHeadersWhenDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.IncludeHeaders = false
	templates, _ := Convert(archiveOf(&Request{
		Method:  "GET",
		URL:     "https://api.example.com/users",
		Headers: []*Header{{Name: "Accept", Value: "application/json"}},
	}), opts)
	if len(templates[0].Headers) != 0 {
		t.Errorf("expected no headers, got %v", templates[0].Headers)
	}
}

func TestConvert_PostData(t *testing.T) {
	templates, err := Convert(archiveOf(
		&Request{
			Method:   "POST",
			URL:      "https://api.example.com/users",
			PostData: &PostData{MimeType: "application/json", Text: `{"name":"{{name}}"}`},
		},
		&Request{
			Method: "POST",
			URL:    "https://api.example.com/login",
			Headers: []*Header{
				{Name: "content-type", Value: "application/x-www-form-urlencoded"},
			},
			PostData: &PostData{
				MimeType: "application/x-www-form-urlencoded",
				Params:   []*PostParam{{Name: "user", Value: "bob"}, {Name: "pass", Value: "x y"}},
			},
		},
	), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	if templates[0].Body != `{"name":"{{name}}"}` {
		t.Errorf("json body = %q", templates[0].Body)
	}
	if len(templates[0].Headers) != 1 || templates[0].Headers[0].Value != "application/json" {
		t.Errorf("expected content type from mime type, got %v", templates[0].Headers)
	}

	if templates[1].Body != "pass=x+y&user=bob" {
		t.Errorf("form body = %q", templates[1].Body)
	}
	if len(templates[1].Headers) != 1 {
		t.Errorf("recorded content type should not be duplicated: %v", templates[1].Headers)
	}
}

func TestConvert_Filters(t *testing.T) {
	archive := archiveOf(
		&Request{Method: "GET", URL: "https://api.example.com/users"},
		&Request{Method: "POST", URL: "https://api.example.com/users"},
		&Request{Method: "GET", URL: "https://cdn.example.com/app.JS"},
		&Request{Method: "GET", URL: "https://tracker.example.com/pixel"},
		&Request{Method: "GET", URL: "https://api.example.com/logo.png"},
	)

	tests := []struct {
		name string
		opts ConvertOptions
		want int
	}{
		{"defaults drop static", DefaultOptions(), 3},
		{"static kept when disabled", ConvertOptions{}, 5},
		{"include host", ConvertOptions{IncludeHosts: []string{"api.example.com"}}, 3},
		{"exclude host", ConvertOptions{ExcludeHosts: []string{"TRACKER.example.com"}, ExcludeStatic: true}, 2},
		{"include method", ConvertOptions{IncludeMethods: []string{"post"}}, 1},
		{
			"combined",
			ConvertOptions{IncludeHosts: []string{"api.example.com"}, IncludeMethods: []string{"GET"}, ExcludeStatic: true},
			1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			templates, err := Convert(archive, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(templates) != tt.want {
				t.Errorf("got %d templates, want %d", len(templates), tt.want)
			}
		})
	}
}

func TestConvert_HostFilterIgnoresPort(t *testing.T) {
	archive := archiveOf(
		&Request{Method: "GET", URL: "https://api.example.com:8443/users"},
		&Request{Method: "GET", URL: "https://other.example.com/users"},
	)
	templates, err := Convert(archive, ConvertOptions{IncludeHosts: []string{"api.example.com"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 1 || !strings.Contains(templates[0].URL, ":8443") {
		t.Fatalf("templates = %+v, want only the api.example.com:8443 entry", templates)
	}
	if templates, _ := Convert(archive, ConvertOptions{ExcludeHosts: []string{"api.example.com:8443"}}); len(templates) != 1 {
		t.Errorf("excluding host:port kept %d templates, want 1", len(templates))
	}
}

func TestConvert_WebSocketEntries(t *testing.T) {
	templates, _ := Convert(archiveOf(&Request{Method: "GET", URL: "wss://stream.example.com/feed"}), DefaultOptions())
	if templates[0].Protocol != request.ProtocolWebSocket {
		t.Errorf("expected websocket protocol, got %s", templates[0].Protocol)
	}
}

func TestConvert_NilInputs(t *testing.T) {
	if _, err := Convert(nil, DefaultOptions()); err == nil {
		t.Error("expected error for nil HAR")
	}
	if _, err := Convert(&HAR{}, DefaultOptions()); err == nil {
		t.Error("expected error for nil log")
	}
	templates, err := Convert(&HAR{Log: &Log{Entries: []*Entry{nil, {}}}}, DefaultOptions())
	if err != nil || len(templates) != 0 {
		t.Errorf("expected empty result, got %v, %v", templates, err)
	}
}

func TestIsStaticAsset(t *testing.T) {
	tests := map[string]bool{
		"/app.js":          true,
		"/styles/main.CSS": true,
		"/font.woff2":      true,
		"/api/users":       false,
		"/download.json":   false,
	}
	for path, want := range tests {
		if got := isStaticAsset(path); got != want {
			t.Errorf("isStaticAsset(%q) = %v, want %v", path, got, want)
		}
	}
}
