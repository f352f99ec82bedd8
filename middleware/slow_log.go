package middleware

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MineKing9534/KORMite-sub000/core"
	"github.com/MineKing9534/KORMite-sub000/logger"
)

// SlowLogMiddleware logs statements that take longer than Threshold.
type SlowLogMiddleware struct {
	Threshold time.Duration
	LogPath   string
	logger    logger.Logger
	file      *os.File
}

// NewSlowLog creates a new SlowLogMiddleware.
// threshold: statements taking longer than this will be logged.
// logPath: path to the log file. If empty, the DB logger is used.
func NewSlowLog(threshold time.Duration, logPath string) *SlowLogMiddleware {
	return &SlowLogMiddleware{
		Threshold: threshold,
		LogPath:   logPath,
	}
}

// SetOutput sends slow statements to w instead.
func (m *SlowLogMiddleware) SetOutput(w io.Writer) {
	l := logger.NewStdLogger()
	l.SetOutput(w)
	m.logger = l
}

func (m *SlowLogMiddleware) Name() string {
	return "SlowLog"
}

func (m *SlowLogMiddleware) Init(db *core.DB) error {
	// If logger is already set (e.g. by SetOutput), don't overwrite it
	if m.logger != nil {
		return nil
	}

	if m.LogPath == "" {
		m.logger = db.Logger()
		return nil
	}
	f, err := os.OpenFile(m.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open slow log file: %w", err)
	}
	m.file = f
	l := logger.NewStdLogger()
	l.SetOutput(f)
	l.SetFormat(logger.LogFormatJSON)
	m.logger = l
	return nil
}

func (m *SlowLogMiddleware) Shutdown() error {
	if m.file == nil {
		return nil
	}
	f := m.file
	m.file = nil
	return f.Close()
}

func (m *SlowLogMiddleware) Process(ctx context.Context, stmt *core.Statement, next core.Handler) (*core.ExecResult, error) {
	start := time.Now()
	res, err := next(ctx, stmt)
	duration := time.Since(start)

	if duration > m.Threshold {
		var affected int64
		if res != nil {
			affected = res.RowsAffected
		}
		m.logger.Warn("[SLOW SQL] %s on %s: duration=%v | sql=%s | args=%v | rows=%d | err=%v",
			stmt.Op, stmt.Table, duration, stmt.SQL, stmt.Args, affected, err)
	}
	return res, err
}
