package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Logger provides structured, leveled logging throughout the application.
type Logger struct {
	log *slog.Logger
}

// NewLogger creates a Logger writing coloured output to stdout at the given
// level ("debug", "info", "warn", "error").
func NewLogger(level string) *Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo creates a Logger writing to w.
func NewLoggerTo(w io.Writer, level string) *Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      parseLevel(level),
		TimeFormat: "2006-01-02 15:04:05",
	})
	return &Logger{log: slog.New(handler)}
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *Logger {
	return &Logger{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// With returns a child logger that always carries the given key/value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{log: l.log.With(args...)}
}

func (l *Logger) Info(msg string, args ...any)  { l.log.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log.Warn(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.log.Debug(msg, args...) }

// Error logs msg with err attached under the "err" key.
func (l *Logger) Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, tint.Err(err))
	}
	l.log.Error(msg, args...)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
