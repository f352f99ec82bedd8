package kormite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MineKing9534/KORMite-sub000/logger"
	"github.com/MineKing9534/KORMite-sub000/middleware"
)

type Note struct {
	ID   int64 `kormite:"key;auto"`
	Text string
}

func TestOpenInstallsMiddleware(t *testing.T) {
	db, err := Open("sqlite3", ":memory:", &Options{
		MaxOpenConns:  1,
		Logger:        logger.Discard(),
		SlowThreshold: time.Second,
		Cache:         CacheOptions{Kind: "memory"},
	})
	require.NoError(t, err)
	defer db.Close()

	require.Len(t, db.Middlewares(), 1)
	assert.Equal(t, "SlowLog", db.Middlewares()[0].Name())
	assert.IsType(t, &middleware.MemoryCache{}, db.Cache())

	ctx := context.Background()
	notes, err := Register[Note](db)
	require.NoError(t, err)
	require.NoError(t, notes.Create(ctx))
	_, err = notes.Insert(ctx, &Note{Text: "hello"})
	require.NoError(t, err)

	got, err := notes.Select().Where(Property("text").Eq("hello")).Cache(time.Minute).All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)

	same, err := Of[Note](db)
	require.NoError(t, err)
	texts, err := Values[string](ctx, same.Select(), Property("text"))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, texts)
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kormite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
driver: sqlite3
dsn: ":memory:"
max_open_conns: 1
log_level: silent
cache:
  kind: file
  dir: `+filepath.Join(dir, "cache")+`
`), 0o644))

	db, err := OpenFile(path)
	require.NoError(t, err)
	defer db.Close()
	assert.IsType(t, &middleware.FileCache{}, db.Cache())
	assert.Empty(t, db.Middlewares())
	assert.DirExists(t, filepath.Join(dir, "cache"))
}

func TestNewCache(t *testing.T) {
	c, err := NewCache(CacheOptions{})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewCache(CacheOptions{Kind: "redis", Addr: "localhost:6379"})
	require.NoError(t, err)
	assert.IsType(t, &middleware.RedisCache{}, c)

	_, err = NewCache(CacheOptions{Kind: "memcached"})
	assert.Error(t, err)

	_, err = Open("sqlite3", ":memory:", &Options{LogLevel: "silent", Cache: CacheOptions{Kind: "file"}})
	assert.Error(t, err, "file cache without a directory")
}
