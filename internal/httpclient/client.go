package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/torosent/repeater/internal/repetition"
	"github.com/torosent/repeater/internal/request"
)

// MaxBodyReadSize caps how much of a response body is kept.
const MaxBodyReadSize = 10 * 1024 * 1024

// AuthProvider adds credentials to a built request.
type AuthProvider interface {
	Apply(ctx context.Context, req *http.Request) error
}

// Build turns a resolved request into an *http.Request bound to ctx.
func Build(ctx context.Context, r request.Resolved, provider AuthProvider) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	target := strings.TrimSpace(r.URL)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" {
		method = http.MethodGet
	}

	headers := make(http.Header, len(r.Headers))
	for _, h := range r.Headers {
		key := strings.TrimSpace(h.Name)
		if key == "" {
			continue
		}
		if strings.ContainsAny(key, "\r\n: ") {
			return nil, fmt.Errorf("invalid header key %q", h.Name)
		}
		if strings.ContainsAny(h.Value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", http.CanonicalHeaderKey(key))
		}
		headers.Add(key, h.Value)
	}

	body, err := NewBodySource(r.Body, r.BodyFile)
	if err != nil {
		return nil, err
	}
	reader, err := body.NewReader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}
	req.Header = headers
	if length, ok := body.ContentLength(); ok {
		req.ContentLength = length
	}
	req.GetBody = body.NewReader

	if provider != nil {
		if err := provider.Apply(ctx, req); err != nil {
			_ = reader.Close()
			return nil, fmt.Errorf("auth provider: %w", err)
		}
	}

	return req, nil
}

// ReadResponse drains resp into a Response and closes the body. Bodies
// beyond MaxBodyReadSize are truncated.
func ReadResponse(resp *http.Response, elapsed time.Duration) (*repetition.Response, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyReadSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &repetition.Response{
		StatusCode: resp.StatusCode,
		Status:     statusText(resp),
		Proto:      resp.Proto,
		Headers:    resp.Header.Clone(),
		Trailers:   resp.Trailer.Clone(),
		Body:       body,
		Elapsed:    elapsed,
	}, nil
}

// statusText strips the numeric code from resp.Status ("200 OK" -> "OK").
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// NewClient returns a client tuned for many concurrent requests to the same
// host. A zero timeout means no client-side timeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
