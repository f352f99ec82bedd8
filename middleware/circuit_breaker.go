package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MineKing9534/KORMite-sub000/core"
	"github.com/MineKing9534/KORMite-sub000/dialect"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "closed"
}

// CircuitBreakerMiddleware fails statements fast after Threshold
// consecutive database failures. Constraint violations and cancelled
// contexts are answers from a healthy database and do not count.
type CircuitBreakerMiddleware struct {
	Threshold    int           // Number of failures before opening
	ResetTimeout time.Duration // Time to wait before half-open

	mu             sync.Mutex
	classify       func(error) dialect.Violation
	state          State
	failures       int
	lastFailure    time.Time
	halfOpenPassed bool
}

func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreakerMiddleware {
	return &CircuitBreakerMiddleware{
		Threshold:    threshold,
		ResetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

func (m *CircuitBreakerMiddleware) Name() string {
	return "CircuitBreaker"
}

func (m *CircuitBreakerMiddleware) Init(db *core.DB) error {
	m.classify = db.Dialect().Classify
	return nil
}

func (m *CircuitBreakerMiddleware) Shutdown() error {
	return nil
}

// State returns the current state.
func (m *CircuitBreakerMiddleware) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *CircuitBreakerMiddleware) Process(ctx context.Context, stmt *core.Statement, next core.Handler) (*core.ExecResult, error) {
	m.mu.Lock()
	switch m.state {
	case StateOpen:
		if time.Since(m.lastFailure) <= m.ResetTimeout {
			m.mu.Unlock()
			return nil, ErrCircuitOpen
		}
		m.state = StateHalfOpen
		m.halfOpenPassed = true
	case StateHalfOpen:
		// One probe at a time.
		if m.halfOpenPassed {
			m.mu.Unlock()
			return nil, ErrCircuitOpen
		}
		m.halfOpenPassed = true
	}
	m.mu.Unlock()

	res, err := next(ctx, stmt)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed(err) {
		m.recordFailure()
	} else {
		m.recordSuccess()
	}
	return res, err
}

func (m *CircuitBreakerMiddleware) failed(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if m.classify == nil {
		return true
	}
	return m.classify(err) == dialect.ViolationOther
}

func (m *CircuitBreakerMiddleware) recordFailure() {
	m.failures++
	m.lastFailure = time.Now()

	if m.state == StateClosed {
		if m.failures >= m.Threshold {
			m.state = StateOpen
		}
	} else if m.state == StateHalfOpen {
		m.state = StateOpen
		m.halfOpenPassed = false
	}
}

// recordSuccess closes a half-open breaker. Failures count only while
// consecutive.
func (m *CircuitBreakerMiddleware) recordSuccess() {
	if m.state == StateHalfOpen {
		m.state = StateClosed
		m.halfOpenPassed = false
	}
	m.failures = 0
}
