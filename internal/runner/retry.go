package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/torosent/repeater/internal/repetition"
	"github.com/torosent/repeater/internal/request"
)

// HTTPError describes a response whose status makes it eligible for retry.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// FailureLogger logs failed iterations.
type FailureLogger interface {
	LogFailure(req request.Resolved, err error)
}

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, all errors retried
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
	// RetryStatus reports whether a response status is retryable. A retryable
	// response is presented to ShouldRetry and DelayFunc as an *HTTPError.
	// Nil means responses are never retried.
	RetryStatus func(code int) bool
}

type retryRequester struct {
	inner  Requester
	policy RetryPolicy
}

// WithRetry wraps a Requester with retry capability. The last attempt's
// response or error is returned unchanged.
func WithRetry(req Requester, policy RetryPolicy) Requester {
	if policy.MaxAttempts <= 1 {
		return req
	}
	return &retryRequester{inner: req, policy: policy}
}

func (r *retryRequester) Send(ctx context.Context, req request.Resolved) (*repetition.Response, error) {
	var (
		resp *repetition.Response
		err  error
	)
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		resp, err = r.inner.Send(ctx, req)
		retryErr := err
		if err == nil {
			if resp == nil || r.policy.RetryStatus == nil || !r.policy.RetryStatus(resp.StatusCode) {
				return resp, nil
			}
			retryErr = &HTTPError{StatusCode: resp.StatusCode, Body: snippet(resp.Body)}
		}

		if attempt == r.policy.MaxAttempts {
			break
		}
		if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(retryErr) {
			break
		}
		delay := r.policy.Delay
		if r.policy.DelayFunc != nil {
			delay = r.policy.DelayFunc(attempt, retryErr)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
	}
	return resp, err
}

func snippet(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}

type loggingRequester struct {
	inner  Requester
	logger FailureLogger
}

// WithLogging wraps a Requester to log iterations that got no response or a
// non-2xx status.
func WithLogging(req Requester, logger FailureLogger) Requester {
	if logger == nil {
		return req
	}
	return &loggingRequester{inner: req, logger: logger}
}

func (l *loggingRequester) Send(ctx context.Context, req request.Resolved) (*repetition.Response, error) {
	resp, err := l.inner.Send(ctx, req)
	switch {
	case err != nil:
		l.logger.LogFailure(req, err)
	case resp != nil && !repetition.IsSuccessful(req.Protocol, resp.StatusCode):
		l.logger.LogFailure(req, &HTTPError{StatusCode: resp.StatusCode, Body: snippet(resp.Body)})
	}
	return resp, err
}
