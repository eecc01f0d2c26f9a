package routing

import (
	"github.com/google/uuid"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards everything.
func NopLogger() Logger { return nopLogger{} }

// Telemetry is the per-request logging and metrics context. It is passed
// explicitly down the pipeline.
type Telemetry struct {
	Logger    Logger
	Metrics   *Metrics
	RequestID string
}

// NewTelemetry tags logger with a fresh request id.
func NewTelemetry(logger Logger, metrics *Metrics) Telemetry {
	if logger == nil {
		logger = NopLogger()
	}
	id := uuid.NewString()
	return Telemetry{
		Logger:    withArgs(logger, "request_id", id),
		Metrics:   metrics,
		RequestID: id,
	}
}

// Log never returns nil.
func (t Telemetry) Log() Logger {
	if t.Logger == nil {
		return NopLogger()
	}
	return t.Logger
}

// prefixed appends fixed args to every call. slog.Logger already has With,
// but the Logger interface does not.
type prefixed struct {
	l    Logger
	args []any
}

func withArgs(l Logger, args ...any) Logger {
	return prefixed{l: l, args: args}
}

func (p prefixed) join(args []any) []any {
	out := make([]any, 0, len(p.args)+len(args))
	return append(append(out, p.args...), args...)
}

func (p prefixed) Debug(msg string, args ...any) { p.l.Debug(msg, p.join(args)...) }
func (p prefixed) Info(msg string, args ...any)  { p.l.Info(msg, p.join(args)...) }
func (p prefixed) Warn(msg string, args ...any)  { p.l.Warn(msg, p.join(args)...) }
func (p prefixed) Error(msg string, args ...any) { p.l.Error(msg, p.join(args)...) }
