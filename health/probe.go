package health

import (
	"context"
	"maps"
	"time"
)

// CheckContext identifies the probe being invoked.
type CheckContext struct {
	// Name is the registry name of the probe.
	Name string

	// Source is the name of the source the probe was discovered in.
	Source string
}

// Outcome is the result of one probe invocation.
type Outcome struct {
	// Status is the reported health status.
	Status Status

	// Description is free text. A blank description renders as the probe name.
	Description string

	// Duration is how long the probe ran. The runner overwrites it.
	Duration time.Duration

	// Data carries arbitrary structured values for the report.
	Data map[string]any

	// Err is the error behind an unhealthy outcome, if any.
	Err error
}

// Healthy creates a healthy outcome.
func Healthy(description string) Outcome {
	return Outcome{Status: StatusHealthy, Description: description}
}

// Degraded creates a degraded outcome.
func Degraded(description string) Outcome {
	return Outcome{Status: StatusDegraded, Description: description}
}

// Unhealthy creates an unhealthy outcome.
func Unhealthy(description string, err error) Outcome {
	return Outcome{Status: StatusUnhealthy, Description: description, Err: err}
}

// WithData returns a copy of o carrying data.
func (o Outcome) WithData(data map[string]any) Outcome {
	o.Data = maps.Clone(data)
	return o
}

// Probe is the interface implemented by health checks.
//
// Contract:
// - Returning a non-nil error reports that the check itself failed; the
//   runner records it as an unhealthy entry with the error chain attached.
// - Panics are recovered and recorded the same way.
// - Implementations should honor ctx cancellation.
type Probe interface {
	CheckHealth(ctx context.Context, cc CheckContext) (Outcome, error)
}

// ProbeFunc adapts an ordinary function to a Probe.
type ProbeFunc func(ctx context.Context, cc CheckContext) (Outcome, error)

// CheckHealth calls f.
func (f ProbeFunc) CheckHealth(ctx context.Context, cc CheckContext) (Outcome, error) {
	return f(ctx, cc)
}

// Named is implemented by probes that choose their own registry name.
type Named interface {
	ProbeName() string
}
