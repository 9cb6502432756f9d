package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/torosent/repeater/internal/auth"
	"github.com/torosent/repeater/internal/httpclient"
	"github.com/torosent/repeater/internal/repetition"
	"github.com/torosent/repeater/internal/request"
	"github.com/torosent/repeater/internal/tracing"
)

// httpRequester sends one resolved request over HTTP and returns the whole
// exchange as a response envelope.
type httpRequester struct {
	client    *http.Client
	auth      *auth.Registry
	propagate bool
}

func newHTTPRequester(client *http.Client, registry *auth.Registry, propagate bool) *httpRequester {
	return &httpRequester{client: client, auth: registry, propagate: propagate}
}

func (r *httpRequester) Send(ctx context.Context, req request.Resolved) (*repetition.Response, error) {
	provider, err := r.auth.Provider(req.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	httpReq, err := httpclient.Build(ctx, req, provider)
	if err != nil {
		return nil, err
	}
	if r.propagate {
		tracing.InjectHTTPHeaders(ctx, httpReq.Header)
	}

	start := time.Now()
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	return httpclient.ReadResponse(resp, time.Since(start))
}
