package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/torosent/repeater/internal/request"
)

type mockAuthProvider struct {
	token string
	err   error
	calls int
}

func (m *mockAuthProvider) Apply(ctx context.Context, req *http.Request) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	req.Header.Set("Authorization", "Bearer "+m.token)
	return nil
}

func TestBuildRequestWithHeaders(t *testing.T) {
	resolved := request.Resolved{
		Method: "post",
		URL:    "http://example.com/api",
		Headers: []request.Header{
			{Name: "content-type", Value: "application/json"},
			{Name: "X-Trace-Id", Value: "12345"},
			{Name: "Accept", Value: "text/plain"},
			{Name: "Accept", Value: "application/json"},
			{Name: "", Value: "ignored"},
		},
		Body: `{"hello":"world"}`,
	}

	req, err := Build(context.Background(), resolved, nil)
	if err != nil {
		t.Fatalf("expected request, got error: %v", err)
	}

	if req.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %s", req.Method)
	}
	if req.URL.String() != resolved.URL {
		t.Fatalf("expected URL %s, got %s", resolved.URL, req.URL.String())
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("expected canonical Content-Type header, got %q", req.Header.Get("Content-Type"))
	}
	if req.Header.Get("X-Trace-Id") != "12345" {
		t.Fatalf("expected X-Trace-Id header, got %q", req.Header.Get("X-Trace-Id"))
	}
	if got := req.Header.Values("Accept"); len(got) != 2 {
		t.Fatalf("expected repeated Accept headers, got %v", got)
	}

	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	if string(bodyBytes) != resolved.Body {
		t.Fatalf("expected body %q, got %q", resolved.Body, string(bodyBytes))
	}
	if req.ContentLength != int64(len(resolved.Body)) {
		t.Fatalf("expected content length %d, got %d", len(resolved.Body), req.ContentLength)
	}

	if req.GetBody == nil {
		t.Fatalf("expected request to support body replay")
	}
	replay, err := req.GetBody()
	if err != nil {
		t.Fatalf("expected replay body, got error: %v", err)
	}
	replayBytes, _ := io.ReadAll(replay)
	if string(replayBytes) != resolved.Body {
		t.Fatalf("expected replay body %q, got %q", resolved.Body, replayBytes)
	}
}

func TestBuildMethodFallback(t *testing.T) {
	req, err := Build(context.Background(), request.Resolved{URL: "http://example.com"}, nil)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	if req.Method != http.MethodGet {
		t.Fatalf("expected GET, got %s", req.Method)
	}
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		resolved request.Resolved
	}{
		{"missing url", request.Resolved{Method: "GET"}},
		{"header key with newline", request.Resolved{URL: "http://example.com", Headers: []request.Header{{Name: "X-Bad\nKey", Value: "v"}}}},
		{"header key with colon", request.Resolved{URL: "http://example.com", Headers: []request.Header{{Name: "X:Bad", Value: "v"}}}},
		{"header value with CR", request.Resolved{URL: "http://example.com", Headers: []request.Header{{Name: "X-Test", Value: "bad\rvalue"}}}},
		{"body and body file", request.Resolved{URL: "http://example.com", Body: "a", BodyFile: "b.json"}},
		{"malformed url", request.Resolved{URL: "http://[::1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(context.Background(), tt.resolved, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildAppliesAuthProvider(t *testing.T) {
	provider := &mockAuthProvider{token: "test-auth-token"}
	req, err := Build(context.Background(), request.Resolved{URL: "https://api.example.com/data"}, provider)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer test-auth-token" {
		t.Fatalf("Authorization = %q", got)
	}
	if provider.calls != 1 {
		t.Fatalf("expected provider to be called once, got %d", provider.calls)
	}
}

func TestBuildAuthProviderError(t *testing.T) {
	provider := &mockAuthProvider{err: errors.New("token endpoint down")}
	_, err := Build(context.Background(), request.Resolved{URL: "https://api.example.com"}, provider)
	if err == nil || !strings.Contains(err.Error(), "token endpoint down") {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestReadResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Trailer", "X-Checksum")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":7}`)
		w.Header().Set("X-Checksum", "abc")
	}))
	defer server.Close()

	req, err := Build(context.Background(), request.Resolved{Method: "POST", URL: server.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadResponse(resp, 12*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadResponse error = %v", err)
	}

	if got.StatusCode != http.StatusCreated || got.Status != "Created" {
		t.Errorf("status = %d %q", got.StatusCode, got.Status)
	}
	if string(got.Body) != `{"id":7}` {
		t.Errorf("body = %q", got.Body)
	}
	if got.ContentType() != "application/json" {
		t.Errorf("content type = %q", got.ContentType())
	}
	if got.Trailers.Get("X-Checksum") != "abc" {
		t.Errorf("trailers = %v", got.Trailers)
	}
	if got.Elapsed != 12*time.Millisecond {
		t.Errorf("elapsed = %v", got.Elapsed)
	}
}

func TestClientTimeoutApplied(t *testing.T) {
	timeout := 50 * time.Millisecond
	client := NewClient(timeout)
	defer client.CloseIdleConnections()

	if client.Timeout != timeout {
		t.Fatalf("expected client timeout %s, got %s", timeout, client.Timeout)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(timeout * 3)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatalf("expected timeout error, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			t.Fatalf("expected timeout error, got %v", err)
		}
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport.MaxIdleConns == 0 || transport.IdleConnTimeout == 0 {
		t.Fatalf("expected transport to pool idle connections")
	}
}

func TestNewClientNegativeTimeout(t *testing.T) {
	if c := NewClient(-time.Second); c.Timeout != 0 {
		t.Fatalf("expected zero timeout, got %s", c.Timeout)
	}
}
