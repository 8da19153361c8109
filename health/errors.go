package health

import (
	"errors"
	"fmt"
	"maps"
	"runtime/debug"
)

var (
	// ErrDuplicateProbe indicates two discovered probes resolved to the same name.
	ErrDuplicateProbe = errors.New("health: duplicate probe name")

	// ErrProbeTimeout indicates a probe did not return within its timeout.
	ErrProbeTimeout = errors.New("health: probe timed out")

	// ErrPrimaryNotFound indicates the configured primary source is absent.
	ErrPrimaryNotFound = errors.New("health: primary source not found")

	// ErrUnknownStrategy indicates an unsupported discovery strategy.
	ErrUnknownStrategy = errors.New("health: unknown discovery strategy")

	// ErrUnknownCollisionPolicy indicates an unsupported collision policy.
	ErrUnknownCollisionPolicy = errors.New("health: unknown collision policy")

	// ErrUnknownStatus indicates a status name that cannot be parsed.
	ErrUnknownStatus = errors.New("health: unknown status")

	// ErrSourcePanicked indicates a source panicked while listing its probes.
	ErrSourcePanicked = errors.New("health: probe source panicked")

	// ErrPluginsUnsupported indicates plugin sources are unavailable on this build.
	ErrPluginsUnsupported = errors.New("health: plugin sources unsupported on this platform")

	// ErrInvalidPlugin indicates a plugin does not export a usable Probes symbol.
	ErrInvalidPlugin = errors.New("health: plugin does not export Probes func() []health.Probe")

	// ErrEncodeReport indicates the report could not be serialized.
	ErrEncodeReport = errors.New("health: encode report")
)

// PanicError is the error recorded when a probe panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("probe panicked: %v", e.Value)
}

// StackTrace returns the stack captured at recovery.
func (e *PanicError) StackTrace() string {
	return string(e.Stack)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// DetailedError is an error carrying structured data, a stack trace and an
// optional cause. Probes use it to surface context in the report.
type DetailedError struct {
	Msg    string
	Fields map[string]any
	Stack  string
	Cause  error
}

// NewDetailedError captures the current stack.
func NewDetailedError(msg string, cause error, data map[string]any) *DetailedError {
	return &DetailedError{
		Msg:    msg,
		Fields: maps.Clone(data),
		Stack:  string(debug.Stack()),
		Cause:  cause,
	}
}

func (e *DetailedError) Error() string { return e.Msg }

func (e *DetailedError) Unwrap() error { return e.Cause }

// StackTrace returns the stack captured at construction.
func (e *DetailedError) StackTrace() string { return e.Stack }

// ErrorData returns the attached fields.
func (e *DetailedError) ErrorData() map[string]any { return e.Fields }
