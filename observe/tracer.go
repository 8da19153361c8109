package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ProbeMeta identifies a probe for telemetry purposes.
type ProbeMeta struct {
	Name   string   // Registry name of the probe (required)
	Source string   // Source the probe was discovered in (optional)
	Tags   []string // Free-form tags (optional)
}

// SpanName returns the deterministic span name for this probe.
// Format: probe.check.<name>
func (m ProbeMeta) SpanName() string {
	return "probe.check." + m.Name
}

func (m ProbeMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("probe.name", m.Name)}
	if m.Source != "" {
		attrs = append(attrs, attribute.String("probe.source", m.Source))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with probe-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for one probe check.
	StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the status label and any error.
	EndSpan(span trace.Span, status string, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span) {
	attrs := meta.attributes()
	if len(meta.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("probe.tags", meta.Tags))
	}
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, status string, err error) {
	span.SetAttributes(attribute.String("probe.status", status))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
