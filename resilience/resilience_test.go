package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewTimeout_Default(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{})
	if timeout.Config().Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", timeout.Config().Timeout)
	}
}

func TestTimeout_Execute(t *testing.T) {
	testErr := errors.New("probe failed")

	tests := []struct {
		name    string
		timeout time.Duration
		op      func(context.Context) error
		want    error
	}{
		{
			name:    "success",
			timeout: time.Second,
			op:      func(ctx context.Context) error { return nil },
		},
		{
			name:    "operation error is returned unchanged",
			timeout: time.Second,
			op:      func(ctx context.Context) error { return testErr },
			want:    testErr,
		},
		{
			name:    "slow operation times out",
			timeout: 10 * time.Millisecond,
			op: func(ctx context.Context) error {
				time.Sleep(200 * time.Millisecond)
				return nil
			},
			want: ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ExecuteWithTimeout(context.Background(), tt.timeout, tt.op)
			if !errors.Is(err, tt.want) {
				t.Errorf("Execute() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTimeout_DoesNotWaitForStuckOperation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := ExecuteWithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		<-release // ignores ctx on purpose
		return nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Execute() took %v, expected to return near the deadline", elapsed)
	}
}

func TestTimeout_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := NewTimeout(TimeoutConfig{Timeout: time.Second}).Execute(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestNewRetry_Defaults(t *testing.T) {
	cfg := NewRetry(RetryConfig{}).Config()
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 100ms", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("MaxDelay = %v, want 5s", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", cfg.Multiplier)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_ReturnsLastErrorUnwrapped(t *testing.T) {
	inner := errors.New("this is an inner exception")
	outer := &wrapped{msg: "I was thrown", err: inner}
	r := NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return outer
	})
	if err != outer {
		t.Fatalf("Execute() error = %v, want the operation's own error", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetry_RetryIf(t *testing.T) {
	permanent := errors.New("permanent")
	r := NewRetry(RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		RetryIf:      func(err error) bool { return !errors.Is(err, permanent) },
	})

	attempts := 0
	_ = r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return permanent
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_StopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetry(RetryConfig{
		MaxAttempts:  10,
		InitialDelay: time.Hour,
		OnRetry:      func(int, error, time.Duration) { cancel() },
	})

	var attempts atomic.Int32
	err := r.Execute(ctx, func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("down")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1", attempts.Load())
	}
}

func TestRetry_Delay(t *testing.T) {
	tests := []struct {
		strategy BackoffStrategy
		attempt  int
		want     time.Duration
	}{
		{BackoffConstant, 3, 10 * time.Millisecond},
		{BackoffLinear, 3, 30 * time.Millisecond},
		{BackoffExponential, 3, 40 * time.Millisecond},
		{BackoffExponential, 10, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		r := NewRetry(RetryConfig{
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     100 * time.Millisecond,
			Strategy:     tt.strategy,
		})
		if got := r.delay(tt.attempt); got != tt.want {
			t.Errorf("delay(strategy=%d, attempt=%d) = %v, want %v", tt.strategy, tt.attempt, got, tt.want)
		}
	}
}

func TestExecutor_TimeoutPerAttempt(t *testing.T) {
	var attempts atomic.Int32
	e := NewExecutor(
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})),
		WithTimeout(10*time.Millisecond),
	)

	err := e.Execute(context.Background(), func(ctx context.Context) error {
		attempts.Add(1)
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

func TestExecutor_NoPolicies(t *testing.T) {
	called := false
	err := NewExecutor(WithTimeout(0)).Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("Execute() = %v, called = %v", err, called)
	}
}

type wrapped struct {
	msg string
	err error
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.err }
