// Package resilience bounds and retries individual probe invocations.
//
// Two policies are provided and can be composed with an Executor:
//
//   - Timeout: gives up on an operation after a fixed duration. The
//     operation keeps its own goroutine and is abandoned, so a probe that
//     ignores its context cannot stall the caller.
//
//   - Retry: re-runs an operation that returned an error, with constant,
//     linear or exponential backoff.
//
// Usage:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})),
//	    resilience.WithTimeout(2*time.Second),
//	)
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return pingDatabase(ctx)
//	})
package resilience
