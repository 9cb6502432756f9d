// Package telemetry configures the process logger and exposes run metrics
// for Prometheus.
//
//   - logging.go: zerolog setup and the failure logger used by requesters
//   - metrics.go: iteration counters, latency histogram and the /metrics
//     listener
package telemetry
