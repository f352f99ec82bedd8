package middleware

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MineKing9534/KORMite-sub000/core"
	"github.com/MineKing9534/KORMite-sub000/expr"
	"github.com/MineKing9534/KORMite-sub000/logger"
)

type User struct {
	ID   int64  `kormite:"key;auto"`
	Name string `kormite:"unique"`
}

func openUsers(t *testing.T, l logger.Logger) (*core.DB, *core.Table[User]) {
	t.Helper()
	if l == nil {
		l = logger.Discard()
	}
	db, err := core.Open("sqlite3", ":memory:", &core.Options{MaxOpenConns: 1, Logger: l})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	users, err := core.Register[User](db)
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background()))
	return db, users
}

func addUser(t *testing.T, users *core.Table[User], name string) {
	t.Helper()
	res, err := users.Insert(context.Background(), &User{Name: name})
	require.NoError(t, err)
	require.True(t, res.OK())
}

func TestSlowLog(t *testing.T) {
	db, users := openUsers(t, nil)

	buf := new(bytes.Buffer)
	slowLog := NewSlowLog(0, "") // Threshold 0 to log everything
	slowLog.SetOutput(buf)
	require.NoError(t, db.Use(slowLog))

	addUser(t, users, "Alice")
	_, err := users.Count(context.Background(), expr.Where{})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[SLOW SQL] insert on user")
	assert.Contains(t, out, "[SLOW SQL] count on user")

	buf.Reset()
	slowLog.Threshold = time.Hour
	_, err = users.Count(context.Background(), expr.Where{})
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestSlowLogFile(t *testing.T) {
	db, users := openUsers(t, nil)
	path := filepath.Join(t.TempDir(), "slow.log")
	slowLog := NewSlowLog(0, path)
	require.NoError(t, db.Use(slowLog))

	addUser(t, users, "Alice")
	require.NoError(t, slowLog.Shutdown())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"level":"WARN"`)
	assert.Contains(t, string(b), "SLOW SQL")
}

func TestTracingFields(t *testing.T) {
	buf := new(bytes.Buffer)
	l := logger.NewStdLogger()
	l.SetOutput(buf)
	db, users := openUsers(t, l)
	require.NoError(t, db.Use(NewTracing()))

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")
	_, err := users.Select().Where(expr.Property("name").Eq("x")).All(ctx)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "request_id:req-42")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestStats(t *testing.T) {
	db, users := openUsers(t, nil)
	stats := NewStats(time.Hour)
	require.NoError(t, db.Use(stats))

	addUser(t, users, "Alice")
	addUser(t, users, "Bob")
	_, err := users.Select().All(context.Background())
	require.NoError(t, err)

	s := stats.Snapshot()
	assert.Equal(t, int64(1), s.Queries)
	assert.Equal(t, int64(2), s.Execs)
	assert.Equal(t, int64(0), s.Slow)
	assert.Equal(t, int64(0), s.Errors)
	assert.Equal(t, int64(3), s.PerTable["user"])
	assert.Contains(t, s.String(), "queries=1 execs=2")

	stats.Reset()
	assert.Equal(t, int64(0), stats.Snapshot().Queries)
	assert.Equal(t, time.Duration(0), stats.Snapshot().Avg())
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	ctx := context.Background()
	stmt := &core.Statement{Op: core.OpSelect, Table: "user"}
	boom := errors.New("connection refused")

	var calls int
	failing := func(context.Context, *core.Statement) (*core.ExecResult, error) {
		calls++
		return nil, boom
	}
	ok := func(context.Context, *core.Statement) (*core.ExecResult, error) {
		calls++
		return &core.ExecResult{}, nil
	}

	_, err := cb.Process(ctx, stmt, failing)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateClosed, cb.State())
	_, err = cb.Process(ctx, stmt, failing)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateOpen, cb.State())

	_, err = cb.Process(ctx, stmt, ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls)

	time.Sleep(60 * time.Millisecond)
	_, err = cb.Process(ctx, stmt, ok)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())
}

func TestCircuitBreakerIgnoresViolations(t *testing.T) {
	db, _ := openUsers(t, nil)
	cb := NewCircuitBreaker(1, time.Hour)
	require.NoError(t, cb.Init(db))

	unique := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	_, err := cb.Process(context.Background(), &core.Statement{}, func(context.Context, *core.Statement) (*core.ExecResult, error) {
		return nil, unique
	})
	assert.Error(t, err)
	_, err = cb.Process(context.Background(), &core.Statement{}, func(context.Context, *core.Statement) (*core.ExecResult, error) {
		return nil, context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "kormite:user:1", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "kormite:user:2", []byte("b"), 0))
	require.NoError(t, c.Set(ctx, "kormite:book:1", []byte("c"), time.Nanosecond))

	v, ok, err := c.Get(ctx, "kormite:user:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), v)

	time.Sleep(time.Millisecond)
	_, ok, _ = c.Get(ctx, "kormite:book:1")
	assert.False(t, ok)

	require.NoError(t, c.DeletePrefix(ctx, "kormite:user:"))
	assert.Equal(t, 0, c.Len())
	require.NoError(t, c.Shutdown())
	require.NoError(t, c.Shutdown())
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c := NewFileCache(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, c.Init(nil))

	require.NoError(t, c.Set(ctx, "kormite:user:1", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "kormite:book:1", []byte("b"), 0))

	v, ok, err := c.Get(ctx, "kormite:user:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), v)

	require.NoError(t, c.DeletePrefix(ctx, "kormite:user:"))
	_, ok, err = c.Get(ctx, "kormite:user:1")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "kormite:book:1")
	assert.True(t, ok)

	assert.Error(t, NewFileCache("").Init(nil))
}

func TestCachedQueries(t *testing.T) {
	for name, cache := range map[string]core.Cache{
		"memory": NewMemoryCache(),
		"file":   NewFileCache(t.TempDir()),
	} {
		t.Run(name, func(t *testing.T) {
			db, users := openUsers(t, nil)
			stats := NewStats(0)
			require.NoError(t, db.Use(stats))
			require.NoError(t, db.SetCache(cache))
			addUser(t, users, "Alice")

			query := func() []*User {
				got, err := users.Select().OrderBy(expr.Property("name").Asc()).Cache(time.Minute).All(context.Background())
				require.NoError(t, err)
				return got
			}
			first := query()
			second := query()
			assert.Equal(t, first, second)
			assert.Equal(t, int64(1), stats.Snapshot().Queries)

			addUser(t, users, "Bob")
			assert.Len(t, query(), 2)
			assert.Equal(t, int64(2), stats.Snapshot().Queries)
		})
	}
}
