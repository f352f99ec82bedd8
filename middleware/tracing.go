package middleware

import (
	"context"

	"github.com/MineKing9534/KORMite-sub000/core"
)

// ContextKey is the type of the context keys read by TracingMiddleware.
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UserIPKey    ContextKey = "user_ip"
	TraceIDKey   ContextKey = "trace_id"
)

// TracingMiddleware copies request scoped values from the context onto the
// SQL log line of every statement.
type TracingMiddleware struct {
	Keys []ContextKey
}

func NewTracing(keys ...ContextKey) *TracingMiddleware {
	if len(keys) == 0 {
		keys = []ContextKey{RequestIDKey, UserIPKey, TraceIDKey}
	}
	return &TracingMiddleware{Keys: keys}
}

func (m *TracingMiddleware) Name() string {
	return "Tracing"
}

func (m *TracingMiddleware) Init(db *core.DB) error {
	return nil
}

func (m *TracingMiddleware) Shutdown() error {
	return nil
}

func (m *TracingMiddleware) Process(ctx context.Context, stmt *core.Statement, next core.Handler) (*core.ExecResult, error) {
	for _, k := range m.Keys {
		v := ctx.Value(k)
		if v == nil {
			continue
		}
		if stmt.Fields == nil {
			stmt.Fields = make(map[string]any)
		}
		stmt.Fields[string(k)] = v
	}
	return next(ctx, stmt)
}
