package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records probe check metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCheck records one probe check with its status label and error.
	RecordCheck(ctx context.Context, meta ProbeMeta, status string, duration time.Duration, err error)
}

type metricsImpl struct {
	total    metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the probe instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	total, err := meter.Int64Counter(
		"probe.check.total",
		metric.WithDescription("Total number of probe checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"probe.check.failures",
		metric.WithDescription("Probe checks that returned an error or timed out"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"probe.check.duration_ms",
		metric.WithDescription("Probe check duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{total: total, failures: failures, duration: duration}, nil
}

func (m *metricsImpl) RecordCheck(ctx context.Context, meta ProbeMeta, status string, duration time.Duration, err error) {
	attrs := append(meta.attributes(), attribute.String("probe.status", status))
	opt := metric.WithAttributes(attrs...)

	m.total.Add(ctx, 1, opt)
	if err != nil {
		m.failures.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

type noopMetrics struct{}

func (noopMetrics) RecordCheck(context.Context, ProbeMeta, string, time.Duration, error) {}
