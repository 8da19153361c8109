package observe

import (
	"context"
	"time"
)

// CheckFunc runs one probe check and reports the resulting status label
// (for example "Healthy") along with the error the probe produced, if any.
type CheckFunc func(ctx context.Context) (status string, err error)

// Middleware wraps probe checks with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap returns a CheckFunc safe for concurrent use.
//   - Context: the span context is propagated into the wrapped check.
//   - Errors: the wrapped check's status and error are returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewTracer(nil)
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// MiddlewareFromObserver builds a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Wrap instruments fn for the probe described by meta.
func (m *Middleware) Wrap(meta ProbeMeta, fn CheckFunc) CheckFunc {
	return func(ctx context.Context) (string, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		status, err := fn(ctx)

		duration := time.Since(start)
		m.tracer.EndSpan(span, status, err)
		m.metrics.RecordCheck(ctx, meta, status, duration, err)

		fields := []Field{
			F("probe", meta.Name),
			F("status", status),
			F("duration_ms", float64(duration)/float64(time.Millisecond)),
		}
		if err != nil {
			fields = append(fields, F("error", err.Error()))
			m.logger.Warn(ctx, "probe check failed", fields...)
		} else {
			m.logger.Debug(ctx, "probe check completed", fields...)
		}

		return status, err
	}
}
