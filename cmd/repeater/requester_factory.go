package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/torosent/repeater/internal/auth"
	"github.com/torosent/repeater/internal/repetition"
	"github.com/torosent/repeater/internal/request"
	"github.com/torosent/repeater/internal/runner"
)

// protocolRequester routes each resolved request to the requester for its
// protocol.
type protocolRequester struct {
	http      runner.Requester
	websocket runner.Requester
}

// newRequester builds the protocol router. It is shared by every iteration of
// a run.
func newRequester(client *http.Client, registry *auth.Registry, timeout time.Duration, propagate bool) runner.Requester {
	return &protocolRequester{
		http:      newHTTPRequester(client, registry, propagate),
		websocket: newWebSocketRequester(registry, timeout, propagate),
	}
}

func (p *protocolRequester) Send(ctx context.Context, req request.Resolved) (*repetition.Response, error) {
	switch req.Protocol {
	case request.ProtocolHTTP, "":
		return p.http.Send(ctx, req)
	case request.ProtocolWebSocket:
		return p.websocket.Send(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", req.Protocol)
	}
}
