package runner

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/torosent/repeater/internal/repetition"
	"github.com/torosent/repeater/internal/request"
)

// Requester sends a single resolved request. It returns a response for any
// status code and an error only when no response was obtained.
type Requester interface {
	Send(ctx context.Context, req request.Resolved) (*repetition.Response, error)
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context, req request.Resolved) (*repetition.Response, error)

func (f RequesterFunc) Send(ctx context.Context, req request.Resolved) (*repetition.Response, error) {
	return f(ctx, req)
}

// Options configure a Dispatcher.
type Options struct {
	MaxConcurrency int           // iterations allowed in flight (1 for sequential runs)
	Delay          time.Duration // minimum gap between consecutive dispatch starts
	Requester      Requester     // request executor (required)
	// Variables supplies the ambient variables and substitution. Nil means no
	// ambient variables and plain {{name}} substitution.
	Variables repetition.VariableResolver
	Tracer    trace.Tracer    // optional; one client span per iteration
	Logger    *zerolog.Logger // optional
	// LimiterFactory builds the dispatch spacing limiter. Tests inject it.
	LimiterFactory func(delay time.Duration) *rate.Limiter
}

func (o *Options) normalize() {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 1
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = newDelayLimiter
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
}
