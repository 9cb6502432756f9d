package runner

import (
	"context"
	"crypto/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/repeater/internal/repetition"
	"github.com/torosent/repeater/internal/request"
	"github.com/torosent/repeater/internal/tracing"
	"github.com/torosent/repeater/internal/variables"
)

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Planned    int
	Dispatched int
	Completed  int
	Successful int
	// Cancelled is set when the run context was cancelled before every
	// planned iteration completed normally.
	Cancelled bool
	Duration  time.Duration
}

// Dispatcher executes iteration plans.
type Dispatcher struct {
	opt Options
}

// NewDispatcher returns a dispatcher with normalized options.
func NewDispatcher(opt Options) *Dispatcher {
	opt.normalize()
	return &Dispatcher{opt: opt}
}

// Run is a handle on one dispatch. Results arrive on Results in completion
// order; the channel is closed once every started iteration has reported.
type Run struct {
	id      string
	planned int
	started time.Time

	results chan repetition.Result
	done    chan struct{}

	mu         sync.Mutex
	collected  []repetition.Result
	ordinal    int
	successful int

	dispatched atomic.Int64
	inFlight   atomic.Int64

	summary Summary
}

// Start snapshots the base request and the ambient variables, then dispatches
// plan in the background. It never blocks on network activity.
func (d *Dispatcher) Start(ctx context.Context, plan repetition.Plan, base request.Template) *Run {
	run := &Run{
		id:      newRunID(),
		planned: plan.Len(),
		started: time.Now(),
		results: make(chan repetition.Result, plan.Len()),
		done:    make(chan struct{}),
	}

	tmpl := base.Clone()
	iterations := append([]repetition.Iteration(nil), plan.Iterations...)
	var ambient variables.Set
	if d.opt.Variables != nil {
		ambient = d.opt.Variables.EffectiveVariables().Clone()
	}

	d.opt.Logger.Debug().
		Str("run_id", run.id).
		Str("mode", plan.Mode.String()).
		Int("planned", run.planned).
		Int("max_concurrency", d.opt.MaxConcurrency).
		Dur("delay", d.opt.Delay).
		Msg("run started")

	go d.dispatch(ctx, run, iterations, tmpl, ambient)
	return run
}

func (d *Dispatcher) dispatch(ctx context.Context, run *Run, iterations []repetition.Iteration, tmpl request.Template, ambient variables.Set) {
	gate := &delayGate{limiter: d.opt.LimiterFactory(d.opt.Delay)}
	slots := make(chan struct{}, d.opt.MaxConcurrency)
	var wg sync.WaitGroup

	for _, it := range iterations {
		if ctx.Err() != nil {
			break
		}
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		if err := gate.Wait(ctx); err != nil || ctx.Err() != nil {
			<-slots
			break
		}

		run.dispatched.Add(1)
		run.inFlight.Add(1)
		wg.Add(1)
		go func(it repetition.Iteration) {
			defer wg.Done()
			result, span := d.execute(ctx, run.id, tmpl, ambient, it)
			result = run.emit(result)
			run.inFlight.Add(-1)
			<-slots
			if span != nil {
				tracing.EndIterationSpan(span, result)
			}
		}(it)
	}

	wg.Wait()
	run.finish(ctx.Err() != nil)
	d.opt.Logger.Debug().
		Str("run_id", run.id).
		Int("completed", run.summary.Completed).
		Int("successful", run.summary.Successful).
		Bool("cancelled", run.summary.Cancelled).
		Dur("duration", run.summary.Duration).
		Msg("run finished")
}

func (d *Dispatcher) execute(ctx context.Context, runID string, tmpl request.Template, ambient variables.Set, it repetition.Iteration) (repetition.Result, trace.Span) {
	vars := ambient
	if it.Record != nil {
		vars = ambient.Overlay(*it.Record)
	}
	resolved := tmpl.Resolve(d.replacer(vars))

	var span trace.Span
	if d.opt.Tracer != nil {
		ctx, span = tracing.StartIterationSpan(ctx, d.opt.Tracer, runID, it, resolved)
	}

	started := time.Now()
	result := repetition.Result{Iteration: it, Request: resolved, StartedAt: started}
	resp, err := d.opt.Requester.Send(ctx, resolved)
	elapsed := time.Since(started)

	switch {
	case err != nil:
		result.Failure = newFailure(ctx, err, elapsed)
	case resp == nil:
		result.Failure = &repetition.Failure{Kind: "empty_response", Message: "requester returned no response", Elapsed: elapsed}
	default:
		if resp.Elapsed <= 0 {
			resp.Elapsed = elapsed
		}
		result.Response = resp
		result.Successful = repetition.IsSuccessful(resolved.Protocol, resp.StatusCode)
	}
	return result, span
}

func (d *Dispatcher) replacer(vars variables.Set) request.Replacer {
	if d.opt.Variables == nil {
		return func(s string) string { return variables.Apply(s, vars) }
	}
	return func(s string) string { return d.opt.Variables.ReplaceTemplates(s, vars) }
}

// emit stamps the completion ordinal, records the result and publishes it.
// The channel is buffered to the plan length so the send never blocks.
func (r *Run) emit(result repetition.Result) repetition.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ordinal++
	result.CompletionOrdinal = r.ordinal
	if result.Successful {
		r.successful++
	}
	r.collected = append(r.collected, result)
	r.results <- result
	return result
}

func (r *Run) finish(ctxDone bool) {
	r.mu.Lock()
	cancelled := false
	if ctxDone && r.ordinal < r.planned {
		cancelled = true
	}
	for _, res := range r.collected {
		if res.Cancelled() {
			cancelled = true
			break
		}
	}
	r.summary = Summary{
		RunID:      r.id,
		Planned:    r.planned,
		Dispatched: int(r.dispatched.Load()),
		Completed:  r.ordinal,
		Successful: r.successful,
		Cancelled:  cancelled,
		Duration:   time.Since(r.started),
	}
	r.mu.Unlock()

	close(r.results)
	close(r.done)
}

// ID returns the run's ULID.
func (r *Run) ID() string { return r.id }

// Planned returns the number of iterations in the plan.
func (r *Run) Planned() int { return r.planned }

// StartedAt returns when the run was started.
func (r *Run) StartedAt() time.Time { return r.started }

// Results streams results in completion order.
func (r *Run) Results() <-chan repetition.Result { return r.results }

// Done is closed after the last result has been emitted.
func (r *Run) Done() <-chan struct{} { return r.done }

// Dispatched returns how many iterations have been started so far.
func (r *Run) Dispatched() int { return int(r.dispatched.Load()) }

// InFlight returns how many started iterations have not reported yet.
func (r *Run) InFlight() int { return int(r.inFlight.Load()) }

// Collected returns a copy of the results emitted so far, in completion order.
func (r *Run) Collected() []repetition.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]repetition.Result(nil), r.collected...)
}

// Wait blocks until the run finishes and returns its summary.
func (r *Run) Wait() Summary {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

func newRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
