package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// ParseLevel maps a configuration string to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "off", "none":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "", "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// LogFormat defines the output format of the log
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Logger is the interface for logging SQL and internal messages
type Logger interface {
	SetLevel(level LogLevel)
	SetFormat(format LogFormat)
	SetOutput(w io.Writer)
	WithFields(fields map[string]any) Logger
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	SQL(sql string, duration time.Duration, args ...any)
}

// baseLogger contains common logging functionality
type baseLogger struct {
	mu     *sync.Mutex
	level  LogLevel
	format LogFormat
	writer io.Writer
	fields map[string]any
}

func (l *baseLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *baseLogger) SetFormat(format LogFormat) {
	l.format = format
}

func (l *baseLogger) SetOutput(w io.Writer) {
	l.writer = w
}

func (l *baseLogger) clone() *baseLogger {
	newFields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	return &baseLogger{
		mu:     l.mu,
		level:  l.level,
		format: l.format,
		writer: l.writer,
		fields: newFields,
	}
}

// stdLogger is the default implementation of Logger
type stdLogger struct {
	baseLogger
}

// NewStdLogger creates a new standard logger writing text to stdout at info level.
func NewStdLogger() Logger {
	return &stdLogger{
		baseLogger: baseLogger{
			mu:     &sync.Mutex{},
			level:  LogLevelInfo,
			format: LogFormatText,
			writer: os.Stdout,
			fields: make(map[string]any),
		},
	}
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	l := NewStdLogger()
	l.SetLevel(LogLevelSilent)
	l.SetOutput(io.Discard)
	return l
}

func (l *stdLogger) WithFields(fields map[string]any) Logger {
	newLogger := &stdLogger{
		baseLogger: *l.clone(),
	}
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

func (l *stdLogger) Debug(format string, args ...any) {
	if l.level >= LogLevelDebug {
		l.log("DEBUG", format, args...)
	}
}

func (l *stdLogger) Info(format string, args ...any) {
	if l.level >= LogLevelInfo {
		l.log("INFO", format, args...)
	}
}

func (l *stdLogger) Warn(format string, args ...any) {
	if l.level >= LogLevelWarn {
		l.log("WARN", format, args...)
	}
}

func (l *stdLogger) Error(format string, args ...any) {
	if l.level >= LogLevelError {
		l.log("ERROR", format, args...)
	}
}

func (l *stdLogger) SQL(sql string, duration time.Duration, args ...any) {
	if l.level < LogLevelInfo {
		return
	}
	if l.format == LogFormatJSON {
		l.structured("SQL", map[string]any{
			"sql":      sql,
			"duration": duration.String(),
			"args":     args,
		})
		return
	}
	msg := fmt.Sprintf("%s[%v] %s%s | args: %v", sqlColor(sql), duration, sql, ansiReset, args)
	l.write("SQL", msg)
}

func (l *stdLogger) log(level string, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if l.format == LogFormatJSON {
		l.structured(level, map[string]any{"msg": msg})
		return
	}
	l.write(level, msg)
}

func (l *stdLogger) structured(level string, extra map[string]any) {
	data := make(map[string]any, len(l.fields)+len(extra)+2)
	for k, v := range l.fields {
		data[k] = v
	}
	for k, v := range extra {
		data[k] = v
	}
	data["time"] = time.Now().Format(time.RFC3339)
	data["level"] = level

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = json.NewEncoder(l.writer).Encode(data)
}

func (l *stdLogger) write(level, msg string) {
	fieldStr := ""
	if len(l.fields) > 0 {
		fieldStr = fmt.Sprintf(" fields: %v", l.fields)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.writer, "[KORMITE] %s %s: %s%s\n", time.Now().Format("2006-01-02 15:04:05"), level, msg, fieldStr)
}

func sqlColor(sqlStr string) string {
	s := strings.TrimSpace(strings.ToUpper(sqlStr))
	switch {
	case strings.HasPrefix(s, "SELECT"):
		return ansiYellow
	case strings.HasPrefix(s, "INSERT"), strings.HasPrefix(s, "UPDATE"):
		return ansiGreen
	case strings.HasPrefix(s, "DELETE"):
		return ansiRed
	case strings.HasPrefix(s, "CREATE"):
		return ansiBlue
	default:
		return ansiCyan
	}
}
