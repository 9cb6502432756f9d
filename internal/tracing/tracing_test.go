package tracing_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/repeater/internal/config"
	"github.com/torosent/repeater/internal/repetition"
	"github.com/torosent/repeater/internal/request"
	"github.com/torosent/repeater/internal/tracing"
)

func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, trace.Tracer) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter, tp.Tracer("test")
}

func TestInit(t *testing.T) {
	off := false
	tests := []struct {
		name          string
		cfg           config.TracingConfig
		wantErr       bool
		wantPropagate bool
		wantRecording bool
	}{
		{name: "disabled without endpoint", cfg: config.TracingConfig{}},
		{
			name:          "grpc exporter",
			cfg:           config.TracingConfig{Endpoint: "localhost:4317", Protocol: "grpc", ServiceName: "checkout", SampleRate: 1, Insecure: true},
			wantPropagate: true,
			wantRecording: true,
		},
		{
			name:          "http exporter",
			cfg:           config.TracingConfig{Endpoint: "localhost:4318", Protocol: "http", SampleRate: 1, Insecure: true},
			wantPropagate: true,
			wantRecording: true,
		},
		{
			name:          "propagation turned off",
			cfg:           config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 1, Insecure: true, Propagate: &off},
			wantRecording: true,
		},
		{
			name:          "never sampled",
			cfg:           config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 0, Insecure: true},
			wantPropagate: true,
		},
		{name: "unknown protocol", cfg: config.TracingConfig{Endpoint: "localhost:4317", Protocol: "thrift", Insecure: true}, wantErr: true},
		{name: "negative sample rate", cfg: config.TracingConfig{Endpoint: "localhost:4317", SampleRate: -0.5}, wantErr: true},
		{name: "sample rate above one", cfg: config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 1.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

			p, err := tracing.Init(context.Background(), tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Init() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			t.Cleanup(func() {
				defer cancel()
				_ = p.Shutdown(shutdownCtx)
			})

			if got := p.ShouldPropagate(); got != tt.wantPropagate {
				t.Errorf("ShouldPropagate() = %v, want %v", got, tt.wantPropagate)
			}
			_, span := p.Tracer().Start(context.Background(), "probe")
			defer span.End()
			if got := span.IsRecording(); got != tt.wantRecording {
				t.Errorf("span.IsRecording() = %v, want %v", got, tt.wantRecording)
			}
		})
	}
}

func TestNilProviderSafety(t *testing.T) {
	var p *tracing.Provider
	if p.ShouldPropagate() {
		t.Error("nil provider ShouldPropagate() = true, want false")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil provider Shutdown() error = %v", err)
	}
	tracer := p.Tracer()
	_, span := tracer.Start(context.Background(), "test")
	span.End()
}

func TestStartIterationSpan(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	tests := []struct {
		name         string
		req          request.Resolved
		wantSpanName string
	}{
		{"named request", request.Resolved{Name: "Get user", Method: "GET", URL: "http://x/users/1", Protocol: request.ProtocolHTTP}, "GET Get user"},
		{"unnamed request", request.Resolved{Method: "POST", URL: "http://x", Protocol: request.ProtocolHTTP}, "POST request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			_, span := tracing.StartIterationSpan(context.Background(), tracer, "run-1", repetition.Iteration{Ordinal: 3}, tt.req)
			span.End()

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if spans[0].Name != tt.wantSpanName {
				t.Errorf("span name = %q, want %q", spans[0].Name, tt.wantSpanName)
			}

			found := false
			for _, attr := range spans[0].Attributes {
				if string(attr.Key) == "repeater.iteration" && attr.Value.AsInt64() == 3 {
					found = true
				}
			}
			if !found {
				t.Errorf("repeater.iteration attribute not found or incorrect")
			}
		})
	}
}

func TestEndIterationSpanStatus(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	tests := []struct {
		name   string
		result repetition.Result
		want   codes.Code
	}{
		{"success", repetition.Result{Response: &repetition.Response{StatusCode: 200}, Successful: true}, codes.Ok},
		{"server error", repetition.Result{Response: &repetition.Response{StatusCode: 503}}, codes.Error},
		{"failure", repetition.Result{Failure: &repetition.Failure{Kind: "timeout", Message: "deadline"}}, codes.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()
			_, span := tracer.Start(context.Background(), tt.name)
			tracing.EndIterationSpan(span, tt.result)

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if spans[0].Status.Code != tt.want {
				t.Errorf("status = %v, want %v", spans[0].Status.Code, tt.want)
			}
		})
	}
}

func TestInjectHTTPHeaders(t *testing.T) {
	_, tracer := setupTestTracer(t)

	ctx, span := tracer.Start(context.Background(), "outbound")
	defer span.End()

	headers := make(http.Header)
	tracing.InjectHTTPHeaders(ctx, headers)

	parts := strings.Split(headers.Get("Traceparent"), "-")
	if len(parts) != 4 {
		t.Fatalf("traceparent = %q, want version-traceid-spanid-flags", headers.Get("Traceparent"))
	}
	if parts[1] != span.SpanContext().TraceID().String() {
		t.Errorf("trace id = %s, want %s", parts[1], span.SpanContext().TraceID())
	}
	if parts[2] != span.SpanContext().SpanID().String() {
		t.Errorf("span id = %s, want %s", parts[2], span.SpanContext().SpanID())
	}
}

func TestInjectHTTPHeadersNoSpan(t *testing.T) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
	))
	headers := make(http.Header)
	tracing.InjectHTTPHeaders(context.Background(), headers)

	got := headers.Get("Traceparent")
	if got != "" {
		t.Errorf("traceparent header should be empty without span, got %q", got)
	}
}
