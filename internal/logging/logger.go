// Package logging provides structured logging for the contact bot.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects the log renderer
type Format string

const (
	FormatAuto    Format = "auto"
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Logger is a structured logger
type Logger struct {
	l *slog.Logger
}

var defaultLogger = &Logger{l: slog.Default()}

type ctxKey struct{}

// Init configures the default logger. Auto format renders text on a terminal and JSON otherwise.
func Init(level string, format Format) {
	InitWriter(os.Stdout, level, format)
}

// InitWriter configures the default logger to write to w
func InitWriter(w io.Writer, level string, format Format) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	if format == FormatAuto || format == "" {
		format = FormatJSON
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = FormatConsole
		}
	}

	var handler slog.Handler
	if format == FormatConsole {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	defaultLogger = &Logger{l: slog.New(handler)}
	slog.SetDefault(defaultLogger.l)
}

// ParseLevel maps debug, info, warn and error; anything else is info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the process logger
func Default() *Logger {
	return defaultLogger
}

// WithField returns a logger with a field added
func WithField(key string, value any) *Logger {
	return defaultLogger.WithField(key, value)
}

// WithFields returns a logger with multiple fields added
func WithFields(fields map[string]any) *Logger {
	return defaultLogger.WithFields(fields)
}

// FromContext returns the logger stored in ctx, or the default logger
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return defaultLogger
}

// WithContext stores l in ctx
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{l: l.l.With(key, value)}
}

// WithFields adds multiple fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{l: l.l.With(args...)}
}

// Slog exposes the underlying slog logger
func (l *Logger) Slog() *slog.Logger {
	return l.l
}

// Debug logs a debug message with key/value pairs
func Debug(msg string, args ...any) { defaultLogger.l.Debug(msg, args...) }

// Info logs an info message
func Info(msg string, args ...any) { defaultLogger.l.Info(msg, args...) }

// Warn logs a warning message
func Warn(msg string, args ...any) { defaultLogger.l.Warn(msg, args...) }

// Error logs an error message
func Error(msg string, args ...any) { defaultLogger.l.Error(msg, args...) }

// Logger methods
func (l *Logger) Debug(msg string, args ...any) { l.l.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.l.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.l.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.l.Error(msg, args...) }
