// Package logger provides structured logging with typed field helpers,
// backed by log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// LogLevel controls the minimum severity a logger emits.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Field is a typed key/value pair attached to a log record.
type Field = slog.Attr

// String returns a string field.
func String(key, value string) Field { return slog.String(key, value) }

// Int returns an int field.
func Int(key string, value int) Field { return slog.Int(key, value) }

// Int64 returns an int64 field.
func Int64(key string, value int64) Field { return slog.Int64(key, value) }

// Uint64 returns a uint64 field.
func Uint64(key string, value uint64) Field { return slog.Uint64(key, value) }

// Bool returns a bool field.
func Bool(key string, value bool) Field { return slog.Bool(key, value) }

// Duration returns a duration field.
func Duration(key string, value time.Duration) Field { return slog.Duration(key, value) }

// Any returns a field holding an arbitrary value.
func Any(key string, value any) Field { return slog.Any(key, value) }

// Error returns a field for an error under the conventional "error" key.
// A nil error renders as "<nil>".
func Error(err error) Field {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Logger is the logging interface used throughout the application.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger creates a Logger writing text records to w at the given
// minimum level. Optional base attributes are attached to every record.
func NewSlogLogger(w io.Writer, level LogLevel, attrs []slog.Attr) Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.slogLevel()})
	l := slog.New(handler)
	if len(attrs) > 0 {
		args := make([]any, 0, len(attrs))
		for _, a := range attrs {
			args = append(args, a)
		}
		l = l.With(args...)
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	s.l.LogAttrs(ctx, level, msg, fields...)
}

func (s *slogLogger) Debug(msg string, fields ...Field) {
	s.log(context.Background(), slog.LevelDebug, msg, fields)
}

func (s *slogLogger) Info(msg string, fields ...Field) {
	s.log(context.Background(), slog.LevelInfo, msg, fields)
}

func (s *slogLogger) Warn(msg string, fields ...Field) {
	s.log(context.Background(), slog.LevelWarn, msg, fields)
}

func (s *slogLogger) Error(msg string, fields ...Field) {
	s.log(context.Background(), slog.LevelError, msg, fields)
}

func (s *slogLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return &slogLogger{l: s.l.With(args...)}
}
