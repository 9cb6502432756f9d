package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/torosent/repeater/internal/auth"
	"github.com/torosent/repeater/internal/repetition"
	"github.com/torosent/repeater/internal/request"
	"github.com/torosent/repeater/internal/tracing"
	ws "github.com/torosent/repeater/internal/websocket"
)

const defaultWebSocketReceiveTimeout = 2 * time.Second

// websocketRequester opens one connection per iteration, sends the resolved
// messages and collects replies.
type websocketRequester struct {
	auth             *auth.Registry
	handshakeTimeout time.Duration
	propagate        bool
}

func newWebSocketRequester(registry *auth.Registry, handshakeTimeout time.Duration, propagate bool) *websocketRequester {
	return &websocketRequester{auth: registry, handshakeTimeout: handshakeTimeout, propagate: propagate}
}

func (w *websocketRequester) Send(ctx context.Context, req request.Resolved) (*repetition.Response, error) {
	target, headers, err := w.handshakeRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	receive := req.WebSocket.ReceiveTimeout
	if receive == 0 {
		receive = defaultWebSocketReceiveTimeout
	}
	client := ws.NewClient(ws.Config{
		URL:              target,
		Headers:          headers,
		HandshakeTimeout: w.handshakeTimeout,
	})
	return client.Exchange(ctx, ws.ExchangeOptions{
		Messages:        req.WebSocket.Messages,
		MessageInterval: req.WebSocket.MessageInterval,
		ReceiveTimeout:  receive,
	})
}

// handshakeRequest applies auth to a throwaway request so API keys in the
// query string and auth headers reach the upgrade request.
func (w *websocketRequester) handshakeRequest(ctx context.Context, req request.Resolved) (string, http.Header, error) {
	probe, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("websocket url: %w", err)
	}
	probe.Header = req.Header()

	provider, err := w.auth.Provider(req.Auth)
	if err != nil {
		return "", nil, fmt.Errorf("auth: %w", err)
	}
	if err := provider.Apply(ctx, probe); err != nil {
		return "", nil, fmt.Errorf("auth provider: %w", err)
	}
	if w.propagate {
		tracing.InjectHTTPHeaders(ctx, probe.Header)
	}
	return probe.URL.String(), probe.Header, nil
}
