package runner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// newDelayLimiter allows one start per delay with no burst, so each start
// waits at least delay after the previous one. A zero delay never waits.
func newDelayLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// delayGate spaces dispatch starts.
type delayGate struct {
	limiter *rate.Limiter
}

// Wait blocks until the next start is allowed. It only fails once ctx is
// done; a deadline that falls before the next slot does not end the wait
// early.
func (g *delayGate) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g == nil || g.limiter == nil {
		return nil
	}
	r := g.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("delay gate: limiter cannot grant a start")
	}
	wait := r.Delay()
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
