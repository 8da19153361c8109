package health

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/probekit/observe"
	"github.com/jonwraymond/probekit/resilience"
)

// RunnerConfig configures probe execution.
type RunnerConfig struct {
	// Timeout bounds every invocation. Zero leaves probes unbounded.
	Timeout time.Duration

	// Timeouts overrides Timeout per probe name.
	Timeouts map[string]time.Duration

	// TimeoutStatus is recorded for probes that exceed their timeout.
	// Healthy is treated as unset.
	// Default: StatusUnhealthy
	TimeoutStatus Status

	// FailureStatus is recorded for probes that return an error or panic.
	// Healthy is treated as unset.
	// Default: StatusUnhealthy
	FailureStatus Status

	// MaxConcurrent limits in-flight probes. Zero means no limit.
	MaxConcurrent int

	// Retry re-invokes probes that return an error. Nil disables retries.
	// Attempts that exceed their timeout are never retried.
	Retry *resilience.RetryConfig

	// Middleware instruments every invocation with a span and metrics.
	Middleware *observe.Middleware

	// Logger receives per-pass debug lines.
	// Default: no-op
	Logger observe.Logger
}

// Entry pairs a probe name with its outcome.
type Entry struct {
	Name    string
	Outcome Outcome
}

// Runner invokes probes concurrently and isolates their failures.
type Runner struct {
	config   RunnerConfig
	registry *Registry
	retry    *resilience.Retry
	logger   observe.Logger
}

// NewRunner creates a runner over reg. A nil registry runs nothing.
func NewRunner(reg *Registry, config RunnerConfig) *Runner {
	if config.TimeoutStatus == StatusHealthy {
		config.TimeoutStatus = StatusUnhealthy
	}
	if config.FailureStatus == StatusHealthy {
		config.FailureStatus = StatusUnhealthy
	}
	r := &Runner{config: config, registry: reg, logger: config.Logger}
	if r.logger == nil {
		r.logger = observe.NopLogger()
	}
	if config.Retry != nil {
		rc := *config.Retry
		retryIf := rc.RetryIf
		rc.RetryIf = func(err error) bool {
			if errors.Is(err, resilience.ErrTimeout) {
				return false
			}
			if retryIf != nil {
				return retryIf(err)
			}
			return !errors.Is(err, context.Canceled)
		}
		r.retry = resilience.NewRetry(rc)
	}
	return r
}

// Registry returns the registry the runner was built over.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// RunAll runs every probe in the registry.
func (r *Runner) RunAll(ctx context.Context) []Entry {
	if r.registry == nil {
		return []Entry{}
	}
	return r.Run(ctx, r.registry.Descriptors())
}

// Run invokes every descriptor concurrently and returns one entry per
// descriptor in input order. It never returns an error: failures become
// entries. Timed-out probes are not waited for.
func (r *Runner) Run(ctx context.Context, descriptors []Descriptor) []Entry {
	start := time.Now()
	entries := make([]Entry, len(descriptors))

	// A plain Group: one failing probe must not cancel the others.
	var g errgroup.Group
	if r.config.MaxConcurrent > 0 {
		g.SetLimit(r.config.MaxConcurrent)
	}
	for i, d := range descriptors {
		g.Go(func() error {
			entries[i] = Entry{Name: d.Name, Outcome: r.invoke(ctx, d)}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Debug(ctx, "health check pass complete",
		observe.F("probes", len(entries)),
		observe.F("duration_ms", time.Since(start).Milliseconds()))
	return entries
}

func (r *Runner) timeoutFor(name string) time.Duration {
	if d, ok := r.config.Timeouts[name]; ok {
		return d
	}
	return r.config.Timeout
}

func (r *Runner) invoke(ctx context.Context, d Descriptor) Outcome {
	timeout := r.timeoutFor(d.Name)
	exec := resilience.NewExecutor(resilience.WithRetry(r.retry), resilience.WithTimeout(timeout))

	var out Outcome
	check := func(ctx context.Context) (string, error) {
		start := time.Now()
		var res latest
		err := exec.Execute(ctx, func(ctx context.Context) error {
			n := res.begin()
			o, err := safeInvoke(ctx, d)
			if err != nil {
				return err
			}
			res.store(n, o)
			return nil
		})
		out = res.seal()

		switch {
		case err == nil:
		case timeout > 0 && errors.Is(err, resilience.ErrTimeout):
			out = Outcome{
				Status:      r.config.TimeoutStatus,
				Description: fmt.Sprintf("probe timed out after %s", timeout),
				Err:         ErrProbeTimeout,
			}
		default:
			out = Outcome{
				Status:      r.config.FailureStatus,
				Description: err.Error(),
				Err:         err,
			}
		}
		out.Duration = time.Since(start)
		return out.Status.String(), out.Err
	}

	if r.config.Middleware != nil {
		check = r.config.Middleware.Wrap(observe.ProbeMeta{Name: d.Name, Source: d.Source}, check)
	}
	_, _ = check(ctx)
	return out
}

// latest holds the outcome of the most recent attempt. Attempts abandoned
// by a timeout may still finish; only the newest attempt may write, and
// nothing may write once sealed.
type latest struct {
	mu      sync.Mutex
	out     Outcome
	started int
	sealed  bool
}

func (l *latest) begin() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started++
	return l.started
}

func (l *latest) store(attempt int, o Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.sealed && attempt == l.started {
		l.out = o
	}
}

func (l *latest) seal() Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sealed = true
	return l.out
}

func safeInvoke(ctx context.Context, d Descriptor) (out Outcome, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return d.Invoke(ctx)
}
