package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/torosent/repeater/internal/metrics"
	"github.com/torosent/repeater/internal/repetition"
)

// Failure kinds reported for common transport errors.
const (
	FailureCancelled         = "cancelled"
	FailureTimeout           = "timeout"
	FailureConnectionRefused = "connection_refused"
	FailureConnectionReset   = "connection_reset"
	FailureDNS               = "dns"
)

func newFailure(ctx context.Context, err error, elapsed time.Duration) *repetition.Failure {
	kind := classify(ctx, err)
	return &repetition.Failure{
		Kind:      kind,
		Message:   err.Error(),
		Elapsed:   elapsed,
		Cancelled: kind == FailureCancelled,
	}
}

// classify maps err to a short failure kind. Once the run context is done,
// by cancel or by its deadline, every failure is a cancellation whatever the
// transport reported.
func classify(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return FailureCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureDNS
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailureConnectionRefused
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return FailureConnectionReset
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return metrics.ErrorKind(fmt.Sprintf("%T", rootCause(err)))
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
