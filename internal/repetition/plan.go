package repetition

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/torosent/repeater/internal/feeder"
)

// Iteration is one planned dispatch. Ordinal is 1-based plan order.
type Iteration struct {
	Ordinal int
	// Record overrides ambient variables for this iteration. Nil in Simple mode.
	Record *feeder.Record
}

// Plan is the ordered list of iterations a run dispatches.
type Plan struct {
	Mode       Mode
	Iterations []Iteration
}

// Len returns the number of planned iterations.
func (p Plan) Len() int { return len(p.Iterations) }

// Sampler returns an index in [0, n).
type Sampler func(n int) int

// NewSampler returns a uniform sampler seeded from the clock. It is safe for
// concurrent use.
func NewSampler() Sampler {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		return rng.Intn(n)
	}
}

// BuildPlan expands a mode, count and record list into iterations.
//   - Simple: count iterations without records.
//   - Sequential: one iteration per record, in record order; count is ignored.
//   - Random: count iterations, each with a record picked by sample.
func BuildPlan(mode Mode, count int, records []feeder.Record, sample Sampler) (Plan, error) {
	if count < 0 {
		count = 0
	}
	snapshot := append([]feeder.Record(nil), records...)
	plan := Plan{Mode: mode}

	switch mode {
	case ModeSimple:
		plan.Iterations = make([]Iteration, count)
		for i := range plan.Iterations {
			plan.Iterations[i] = Iteration{Ordinal: i + 1}
		}
	case ModeSequential:
		plan.Iterations = make([]Iteration, len(snapshot))
		for i := range snapshot {
			plan.Iterations[i] = Iteration{Ordinal: i + 1, Record: &snapshot[i]}
		}
	case ModeRandom:
		if len(snapshot) == 0 {
			return Plan{}, fmt.Errorf("random mode needs at least one record")
		}
		if sample == nil {
			sample = NewSampler()
		}
		plan.Iterations = make([]Iteration, count)
		for i := range plan.Iterations {
			idx := sample(len(snapshot))
			if idx < 0 || idx >= len(snapshot) {
				return Plan{}, fmt.Errorf("sampler returned index %d outside [0,%d)", idx, len(snapshot))
			}
			plan.Iterations[i] = Iteration{Ordinal: i + 1, Record: &snapshot[idx]}
		}
	default:
		return Plan{}, fmt.Errorf("unknown repetition mode %q", string(mode))
	}
	return plan, nil
}
