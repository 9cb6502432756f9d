// Package runner dispatches an iteration plan against a request executor.
//
// A [Dispatcher] starts planned iterations in plan order while keeping at
// most MaxConcurrency of them in flight and spacing consecutive starts by at
// least Delay:
//
//	d := runner.NewDispatcher(runner.Options{
//		MaxConcurrency: 4,
//		Delay:          100 * time.Millisecond,
//		Requester:      requester,
//		Variables:      resolver,
//	})
//	run := d.Start(ctx, validated.Plan, validated.Request)
//	for result := range run.Results() {
//		// results arrive in completion order
//	}
//	summary := run.Wait()
//
// Cancelling ctx stops new dispatches. Iterations already in flight see the
// cancelled context and still emit a result, after which the results channel
// is closed.
//
// # Requester
//
// The [Requester] interface sends one resolved request:
//
//	type Requester interface {
//		Send(ctx context.Context, req request.Resolved) (*repetition.Response, error)
//	}
//
// Any status code is a response. Errors mean no response was obtained.
//
// # Middleware
//
//   - [WithLogging]: log failed iterations
//   - [WithRetry]: retry transport errors and retryable statuses with backoff
//
// [HTTPError] describes a retryable status so retry predicates can inspect it.
package runner
