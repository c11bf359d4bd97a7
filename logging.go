package rdata

import (
	"context"
	"log/slog"
	"time"
)

// LogEvent describes a completed model operation or policy evaluation.
type LogEvent struct {
	Operation string
	Asset     string
	Index     int
	Type      string
	Label     string
	// Engine and Expr are set for policy evaluations.
	Engine   string
	Expr     string
	Duration time.Duration
	Err      error
}

// Logger records model events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}

// SlogLogger writes events to logger: failures at error level, everything
// else at debug level.
func SlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) Log(event LogEvent) {
	attrs := []slog.Attr{
		slog.String("operation", event.Operation),
		slog.String("asset", event.Asset),
		slog.Duration("duration", event.Duration),
	}
	if event.Index >= 0 {
		attrs = append(attrs, slog.Int("index", event.Index))
	}
	if event.Type != "" {
		attrs = append(attrs, slog.String("type", event.Type))
	}
	if event.Label != "" {
		attrs = append(attrs, slog.String("label", event.Label))
	}
	if event.Engine != "" {
		attrs = append(attrs, slog.String("engine", event.Engine), slog.String("expr", event.Expr))
	}
	level := slog.LevelDebug
	msg := "renderer feature operation"
	if event.Err != nil {
		level = slog.LevelError
		msg = "renderer feature operation failed"
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
