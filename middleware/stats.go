package middleware

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MineKing9534/KORMite-sub000/core"
)

// StatsMiddleware counts statements and their duration. Selects and counts
// are queries, everything else is an exec.
type StatsMiddleware struct {
	queries  atomic.Int64
	execs    atomic.Int64
	duration atomic.Int64 // nanoseconds
	slow     atomic.Int64
	errors   atomic.Int64

	mu        sync.RWMutex
	threshold time.Duration
	perTable  map[string]int64
}

// NewStats creates a StatsMiddleware counting statements slower than
// threshold as slow. A zero threshold uses 100ms.
func NewStats(threshold time.Duration) *StatsMiddleware {
	if threshold <= 0 {
		threshold = 100 * time.Millisecond
	}
	return &StatsMiddleware{threshold: threshold, perTable: make(map[string]int64)}
}

func (m *StatsMiddleware) Name() string           { return "Stats" }
func (m *StatsMiddleware) Init(db *core.DB) error { return nil }
func (m *StatsMiddleware) Shutdown() error        { return nil }

func (m *StatsMiddleware) Process(ctx context.Context, stmt *core.Statement, next core.Handler) (*core.ExecResult, error) {
	start := time.Now()
	res, err := next(ctx, stmt)
	d := time.Since(start)

	switch stmt.Op {
	case core.OpSelect, core.OpCount:
		m.queries.Add(1)
	default:
		m.execs.Add(1)
	}
	m.duration.Add(int64(d))
	if err != nil {
		m.errors.Add(1)
	}

	m.mu.Lock()
	m.perTable[stmt.Table]++
	slow := d > m.threshold
	m.mu.Unlock()
	if slow {
		m.slow.Add(1)
	}
	return res, err
}

// SetSlowThreshold updates the slow statement threshold.
func (m *StatsMiddleware) SetSlowThreshold(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = d
}

// Snapshot returns the current counters.
func (m *StatsMiddleware) Snapshot() StatsSnapshot {
	m.mu.RLock()
	tables := make(map[string]int64, len(m.perTable))
	for k, v := range m.perTable {
		tables[k] = v
	}
	m.mu.RUnlock()
	return StatsSnapshot{
		Queries:  m.queries.Load(),
		Execs:    m.execs.Load(),
		Duration: time.Duration(m.duration.Load()),
		Slow:     m.slow.Load(),
		Errors:   m.errors.Load(),
		PerTable: tables,
	}
}

// Reset sets every counter to zero.
func (m *StatsMiddleware) Reset() {
	m.queries.Store(0)
	m.execs.Store(0)
	m.duration.Store(0)
	m.slow.Store(0)
	m.errors.Store(0)
	m.mu.Lock()
	m.perTable = make(map[string]int64)
	m.mu.Unlock()
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Queries  int64
	Execs    int64
	Duration time.Duration
	Slow     int64
	Errors   int64
	PerTable map[string]int64
}

// Avg returns the average statement duration.
func (s StatsSnapshot) Avg() time.Duration {
	total := s.Queries + s.Execs
	if total == 0 {
		return 0
	}
	return s.Duration / time.Duration(total)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.Queries, s.Execs, s.Duration, s.Avg(), s.Slow, s.Errors)
}
