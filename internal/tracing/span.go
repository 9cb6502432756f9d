package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/repeater/internal/repetition"
	"github.com/torosent/repeater/internal/request"
)

// StartIterationSpan opens a client span named after the request method and
// the base request name.
func StartIterationSpan(ctx context.Context, tracer trace.Tracer, runID string, it repetition.Iteration, req request.Resolved) (context.Context, trace.Span) {
	name := req.Method + " " + req.Name
	if req.Name == "" {
		name = req.Method + " request"
	}
	ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("repeater.run_id", runID),
		attribute.Int("repeater.iteration", it.Ordinal),
		attribute.String("repeater.protocol", string(req.Protocol)),
		attribute.String("http.request.method", req.Method),
		attribute.String("url.full", req.URL),
	)
	return ctx, span
}

// EndIterationSpan records the outcome of result on span and ends it.
func EndIterationSpan(span trace.Span, result repetition.Result) {
	span.SetAttributes(attribute.Int("repeater.completion_ordinal", result.CompletionOrdinal))
	switch {
	case result.Response != nil:
		span.SetAttributes(attribute.Int("http.response.status_code", result.Response.StatusCode))
		if result.Successful {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, result.Outcome())
		}
	case result.Failure != nil:
		span.SetAttributes(
			attribute.String("error.type", result.Failure.Kind),
			attribute.Bool("repeater.cancelled", result.Failure.Cancelled),
		)
		span.SetStatus(codes.Error, result.Failure.Message)
	}
	span.End()
}

// InjectHTTPHeaders writes W3C trace context from ctx into headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
