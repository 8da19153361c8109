package resilience

import (
	"context"
	"time"
)

// Executor composes a retry policy around a per-attempt timeout.
type Executor struct {
	retry   *Retry
	timeout *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new executor. With no options it runs the
// operation directly.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithTimeout bounds every attempt by timeout. Non-positive values leave
// attempts unbounded.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		if timeout > 0 {
			e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
		}
	}
}

// Execute runs op through the configured policies. The timeout applies to
// each attempt; the retry wraps the bounded attempts.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	run := op

	if e.timeout != nil {
		inner := run
		run = func(ctx context.Context) error {
			return e.timeout.Execute(ctx, inner)
		}
	}

	if e.retry != nil {
		inner := run
		run = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	return run(ctx)
}
