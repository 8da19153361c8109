package observe

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
)

// Logger is a minimal structured logging interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	// With returns a logger that adds fields to every entry.
	With(fields ...Field) Logger
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// ParseLogLevel parses a string log level. Unknown values map to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// jsonLogger writes one JSON object per entry through log/slog.
type jsonLogger struct {
	l *slog.Logger
}

// NewLogger creates a JSON structured logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a JSON structured logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLogLevel(level),
		ReplaceAttr: redact,
	})
	return &jsonLogger{l: slog.New(h)}
}

// FromSlog adapts an existing slog.Logger.
func FromSlog(l *slog.Logger) Logger {
	if l == nil {
		return NopLogger()
	}
	return &jsonLogger{l: l}
}

func (l *jsonLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelDebug, msg, fields)
}

func (l *jsonLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelInfo, msg, fields)
}

func (l *jsonLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelWarn, msg, fields)
}

func (l *jsonLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelError, msg, fields)
}

func (l *jsonLogger) With(fields ...Field) Logger {
	return &jsonLogger{l: l.l.With(toArgs(fields)...)}
}

func (l *jsonLogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.l.Enabled(ctx, level) {
		return
	}
	l.l.Log(ctx, level, msg, toArgs(fields)...)
}

func toArgs(fields []Field) []any {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, slog.Any(f.Key, f.Value))
	}
	return args
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if slices.Contains(RedactedFields, a.Key) {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...Field) {}
func (nopLogger) Info(context.Context, string, ...Field)  {}
func (nopLogger) Warn(context.Context, string, ...Field)  {}
func (nopLogger) Error(context.Context, string, ...Field) {}
func (n nopLogger) With(...Field) Logger                  { return n }
