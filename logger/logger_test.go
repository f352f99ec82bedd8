package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdLogger(t *testing.T) {
	t.Run("TextFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.Info("hello %s", "world")

		out := buf.String()
		assert.Contains(t, out, "[KORMITE]")
		assert.Contains(t, out, "INFO: hello world")
	})

	t.Run("JSONFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.SQL("SELECT 1", time.Millisecond, 7)

		var data map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
		assert.Equal(t, "SQL", data["level"])
		assert.Equal(t, "SELECT 1", data["sql"])
		assert.Equal(t, []any{float64(7)}, data["args"])
	})

	t.Run("LevelFilter", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetLevel(LogLevelWarn)
		l.Info("dropped")
		l.Debug("dropped")
		l.Warn("kept")
		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("WithFieldsDoesNotLeak", func(t *testing.T) {
		buf := &bytes.Buffer{}
		base := NewStdLogger()
		base.SetOutput(buf)
		child := base.WithFields(map[string]any{"table": "books"})
		child.Info("child")
		base.Info("base")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "table:books")
		assert.NotContains(t, lines[1], "table:books")
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestSlogLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewSlogLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l.WithFields(map[string]any{"table": "authors"}).Warn("mismatch %d", 2)
	l.SQL("DELETE FROM x", time.Second)

	out := buf.String()
	assert.Contains(t, out, "msg=\"mismatch 2\"")
	assert.Contains(t, out, "table=authors")
	assert.Contains(t, out, "sql=\"DELETE FROM x\"")
}
