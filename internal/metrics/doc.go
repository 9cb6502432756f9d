// Package metrics aggregates repetition results into latency percentiles,
// outcome counts and per-protocol status buckets.
//
//	collector := metrics.NewCollector()
//	for result := range run.Results() {
//		collector.Record(result)
//	}
//	stats := collector.Stats(time.Since(start))
//
// Latencies are tracked in an HDR histogram (1µs to 60s, 3 significant
// figures). The Collector is safe for concurrent use.
package metrics
