package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/torosent/repeater/internal/repetition"
)

// Outcome labels for repeater_iterations_total.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

// Metrics exports run progress on its own registry.
type Metrics struct {
	registry   *prometheus.Registry
	iterations *prometheus.CounterVec
	statuses   *prometheus.CounterVec
	duration   prometheus.Histogram

	mu       sync.Mutex
	inFlight func() int
}

// NewMetrics registers the repeater collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}
	m.iterations = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "repeater_iterations_total",
		Help: "Completed iterations by outcome.",
	}, []string{"outcome"})
	m.statuses = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "repeater_responses_total",
		Help: "Responses by protocol and status code.",
	}, []string{"protocol", "code"})
	m.duration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "repeater_iteration_duration_seconds",
		Help:    "Round trip time of completed iterations.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "repeater_inflight_iterations",
		Help: "Iterations dispatched but not yet completed.",
	}, m.currentInFlight)
	return m
}

// TrackInFlight sets the source of the in-flight gauge, typically
// runner.Run.InFlight.
func (m *Metrics) TrackInFlight(source func() int) {
	m.mu.Lock()
	m.inFlight = source
	m.mu.Unlock()
}

func (m *Metrics) currentInFlight() float64 {
	m.mu.Lock()
	source := m.inFlight
	m.mu.Unlock()
	if source == nil {
		return 0
	}
	return float64(source())
}

// Observe records one result.
func (m *Metrics) Observe(r repetition.Result) {
	outcome := OutcomeFailure
	switch {
	case r.Successful:
		outcome = OutcomeSuccess
	case r.Cancelled():
		outcome = OutcomeCancelled
	}
	m.iterations.WithLabelValues(outcome).Inc()

	if r.Response != nil {
		protocol := string(r.Request.Protocol)
		if protocol == "" {
			protocol = "http"
		}
		m.statuses.WithLabelValues(protocol, strconv.Itoa(r.Response.StatusCode)).Inc()
	}
	if elapsed := r.Elapsed(); elapsed > 0 {
		m.duration.Observe(elapsed.Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics until Shutdown.
type Server struct {
	srv *http.Server
	ln  net.Listener
	log zerolog.Logger
}

// Serve listens on addr and serves the metrics in the background.
func (m *Metrics) Serve(addr string, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
		log: logger,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return s, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the listener, waiting for in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
