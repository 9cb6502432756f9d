package metrics

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/repeater/internal/repetition"
)

// Collector records per-iteration results in a thread-safe manner.
type Collector struct {
	mu         sync.Mutex
	hist       *hdrhistogram.Histogram
	successes  int64
	failures   int64
	cancelled  int64
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
	// buckets counts outcomes per protocol: status codes for responses,
	// failure kinds otherwise.
	buckets      map[string]map[string]int
	failureKinds map[string]int64
	recent       []time.Duration
}

// recentWindow bounds the latency history kept for sparklines.
const recentWindow = 120

// Stats represents aggregated metrics.
type Stats struct {
	Total          int64         `json:"total"`
	Successes      int64         `json:"successes"`
	Failures       int64         `json:"failures"`
	Cancelled      int64         `json:"cancelled"`
	MinLatency     time.Duration `json:"-"`
	MaxLatency     time.Duration `json:"-"`
	MeanLatency    time.Duration `json:"-"`
	P50Latency     time.Duration `json:"-"`
	P90Latency     time.Duration `json:"-"`
	P95Latency     time.Duration `json:"-"`
	P99Latency     time.Duration `json:"-"`
	Duration       time.Duration `json:"-"`
	RequestsPerSec float64       `json:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
	DurationMs    float64 `json:"duration_ms"`

	StatusBuckets map[string]map[string]int `json:"status_buckets,omitempty"`
	Errors        map[string]int            `json:"errors,omitempty"`
}

func NewCollector() *Collector {
	return &Collector{
		hist:         hdrhistogram.New(1, 60_000_000, 3),
		buckets:      make(map[string]map[string]int),
		failureKinds: make(map[string]int64),
	}
}

// Record adds one result.
func (c *Collector) Record(result repetition.Result) {
	latency := result.Elapsed()
	protocol := string(result.Request.Protocol)
	if protocol == "" {
		protocol = "http"
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency
	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}
	c.recent = append(c.recent, latency)
	if len(c.recent) > recentWindow {
		c.recent = c.recent[len(c.recent)-recentWindow:]
	}

	if result.Successful {
		c.successes++
	} else {
		c.failures++
	}

	code := ""
	switch {
	case result.Response != nil:
		code = strconv.Itoa(result.Response.StatusCode)
	case result.Failure != nil:
		code = result.Failure.Kind
		if code == "" {
			code = "error"
		}
		c.failureKinds[code]++
		if result.Failure.Cancelled {
			c.cancelled++
		}
	}
	if code != "" {
		if c.buckets[protocol] == nil {
			c.buckets[protocol] = make(map[string]int)
		}
		c.buckets[protocol][code]++
	}
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:      total,
		Successes:  c.successes,
		Failures:   c.failures,
		Cancelled:  c.cancelled,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
	}
	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
	}
	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P95Latency = time.Duration(c.hist.ValueAtQuantile(95)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = toMillis(stats.MinLatency)
	stats.MaxLatencyMs = toMillis(stats.MaxLatency)
	stats.MeanLatencyMs = toMillis(stats.MeanLatency)
	stats.P50LatencyMs = toMillis(stats.P50Latency)
	stats.P90LatencyMs = toMillis(stats.P90Latency)
	stats.P95LatencyMs = toMillis(stats.P95Latency)
	stats.P99LatencyMs = toMillis(stats.P99Latency)

	stats.Duration = elapsed
	stats.DurationMs = toMillis(elapsed)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.buckets) > 0 {
		stats.StatusBuckets = make(map[string]map[string]int, len(c.buckets))
		for proto, codes := range c.buckets {
			copied := make(map[string]int, len(codes))
			for code, n := range codes {
				copied[code] = n
			}
			stats.StatusBuckets[proto] = copied
		}
	}
	if len(c.failureKinds) > 0 {
		stats.Errors = make(map[string]int, len(c.failureKinds))
		for k, v := range c.failureKinds {
			stats.Errors[k] = int(v)
		}
	}
	return stats
}

// RecentLatencies returns up to the last 120 latencies in milliseconds,
// oldest first.
func (c *Collector) RecentLatencies() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float64, len(c.recent))
	for i, d := range c.recent {
		out[i] = toMillis(d)
	}
	return out
}

// FailureKinds returns failure kinds sorted by descending count.
func (c *Collector) FailureKinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]string, 0, len(c.failureKinds))
	for k := range c.failureKinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if c.failureKinds[kinds[i]] == c.failureKinds[kinds[j]] {
			return kinds[i] < kinds[j]
		}
		return c.failureKinds[kinds[i]] > c.failureKinds[kinds[j]]
	})
	return kinds
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
