// Package output turns a stream of repetition results into live statistics,
// terminal summaries and post-run exports (CSV report, response bodies and
// transaction logs).
package output

import (
	"sync"
	"time"

	"github.com/torosent/repeater/internal/repetition"
)

// RunStatistics is a point-in-time view of a run.
type RunStatistics struct {
	Total              int           `json:"total"`
	Dispatched         int           `json:"dispatched"`
	Completed          int           `json:"completed"`
	Successful         int           `json:"successful"`
	Failed             int           `json:"failed"`
	Cancelled          int           `json:"cancelled"`
	Elapsed            time.Duration `json:"elapsed"`
	EstimatedRemaining time.Duration `json:"estimated_remaining"`
	// Final is set on the update published for the last result of the run.
	Final bool `json:"final"`
}

// SampleEvery returns how many results pass between statistics updates for a
// run of total iterations.
func SampleEvery(total int) int {
	switch {
	case total >= 10_000:
		return 200
	case total >= 1_000:
		return 100
	case total > 100:
		return 10
	default:
		return 1
	}
}

// EstimateRemaining projects the time left from the average time per
// completed iteration.
func EstimateRemaining(elapsed time.Duration, completed, total int) time.Duration {
	if completed <= 0 || total <= completed {
		return 0
	}
	perIteration := float64(elapsed) / float64(completed)
	return time.Duration(perIteration * float64(total-completed))
}

// ObserverOptions configure an Observer. All fields are optional.
type ObserverOptions struct {
	// Start is the run start time; defaults to when the observer is created.
	Start time.Time
	// Now overrides the clock for tests.
	Now func() time.Time
	// Dispatched reports how many iterations have been started.
	Dispatched func() int
	// OnResult sees every result, before sampling.
	OnResult func(repetition.Result)
	// OnUpdate receives statistics at the sampling cadence.
	OnUpdate func(RunStatistics)
}

// Observer folds results into RunStatistics.
type Observer struct {
	total int
	every int
	opts  ObserverOptions

	mu         sync.Mutex
	completed  int
	successful int
	failed     int
	cancelled  int
	latest     RunStatistics
}

// NewObserver returns an observer for a run of total planned iterations.
func NewObserver(total int, opts ObserverOptions) *Observer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Start.IsZero() {
		opts.Start = opts.Now()
	}
	return &Observer{
		total:  total,
		every:  SampleEvery(total),
		opts:   opts,
		latest: RunStatistics{Total: total},
	}
}

// Observe consumes results until the channel closes and returns the final
// statistics. The closing update is always published, even when the run was
// cancelled short of its plan.
func (o *Observer) Observe(results <-chan repetition.Result) RunStatistics {
	for r := range results {
		o.Add(r)
	}
	return o.Close()
}

// Add records one result. It returns the published statistics and true when
// this result fell on the sampling cadence.
func (o *Observer) Add(r repetition.Result) (RunStatistics, bool) {
	if o.opts.OnResult != nil {
		o.opts.OnResult(r)
	}

	o.mu.Lock()
	o.completed++
	switch {
	case r.Successful:
		o.successful++
	case r.Cancelled():
		o.failed++
		o.cancelled++
	default:
		o.failed++
	}
	final := o.completed >= o.total
	publish := final || o.completed%o.every == 0
	var stats RunStatistics
	if publish {
		stats = o.snapshotLocked(final)
		o.latest = stats
	}
	o.mu.Unlock()

	if publish && o.opts.OnUpdate != nil {
		o.opts.OnUpdate(stats)
	}
	return stats, publish
}

// Close publishes the final statistics. It is safe to call more than once.
func (o *Observer) Close() RunStatistics {
	o.mu.Lock()
	if o.latest.Final {
		stats := o.latest
		o.mu.Unlock()
		return stats
	}
	stats := o.snapshotLocked(true)
	o.latest = stats
	o.mu.Unlock()

	if o.opts.OnUpdate != nil {
		o.opts.OnUpdate(stats)
	}
	return stats
}

// Latest returns the most recently published statistics.
func (o *Observer) Latest() RunStatistics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latest
}

func (o *Observer) snapshotLocked(final bool) RunStatistics {
	elapsed := o.opts.Now().Sub(o.opts.Start)
	dispatched := o.completed
	if o.opts.Dispatched != nil {
		if d := o.opts.Dispatched(); d > dispatched {
			dispatched = d
		}
	}
	stats := RunStatistics{
		Total:      o.total,
		Dispatched: dispatched,
		Completed:  o.completed,
		Successful: o.successful,
		Failed:     o.failed,
		Cancelled:  o.cancelled,
		Elapsed:    elapsed,
		Final:      final,
	}
	if !final {
		stats.EstimatedRemaining = EstimateRemaining(elapsed, o.completed, o.total)
	}
	return stats
}
