// Package observe provides observability primitives for probe execution.
//
// It is a pure instrumentation library: it never runs probes itself.
// The health runner wraps each probe invocation with a Middleware built
// from an Observer, which records one span, a small set of metrics and a
// structured log line per check.
package observe
