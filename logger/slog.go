package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// slogLogger routes messages through a *slog.Logger. Level, format and output
// belong to the slog handler, so the corresponding setters only adjust the
// level filter applied before handing records over.
type slogLogger struct {
	l     *slog.Logger
	level LogLevel
}

// NewSlogLogger adapts a *slog.Logger to the Logger interface.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l, level: LogLevelDebug}
}

func (s *slogLogger) SetLevel(level LogLevel) { s.level = level }

func (s *slogLogger) SetFormat(LogFormat) {}

func (s *slogLogger) SetOutput(io.Writer) {}

func (s *slogLogger) WithFields(fields map[string]any) Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &slogLogger{l: s.l.With(args...), level: s.level}
}

func (s *slogLogger) Debug(format string, args ...any) {
	s.emit(LogLevelDebug, slog.LevelDebug, format, args...)
}

func (s *slogLogger) Info(format string, args ...any) {
	s.emit(LogLevelInfo, slog.LevelInfo, format, args...)
}

func (s *slogLogger) Warn(format string, args ...any) {
	s.emit(LogLevelWarn, slog.LevelWarn, format, args...)
}

func (s *slogLogger) Error(format string, args ...any) {
	s.emit(LogLevelError, slog.LevelError, format, args...)
}

func (s *slogLogger) SQL(sql string, duration time.Duration, args ...any) {
	if s.level < LogLevelInfo {
		return
	}
	s.l.LogAttrs(context.Background(), slog.LevelInfo, "sql",
		slog.String("sql", sql),
		slog.Duration("duration", duration),
		slog.Any("args", args),
	)
}

func (s *slogLogger) emit(want LogLevel, level slog.Level, format string, args ...any) {
	if s.level < want {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	s.l.Log(context.Background(), level, msg)
}
