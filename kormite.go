// Package kormite is a typed object-relational mapper for PostgreSQL, MySQL
// and SQLite. This package re-exports the common entry points of core and
// installs the middleware and cache named by Options.
package kormite

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MineKing9534/KORMite-sub000/core"
	"github.com/MineKing9534/KORMite-sub000/expr"
	"github.com/MineKing9534/KORMite-sub000/middleware"
)

type (
	DB            = core.DB
	Tx            = core.Tx
	Options       = core.Options
	CacheOptions  = core.CacheOptions
	Middleware    = core.Middleware
	Cache         = core.Cache
	Table[T any]  = core.Table[T]
	Query[T any]  = core.Query[T]
	Rows[T any]   = core.Rows[T]
	Result[T any] = core.Result[T]
	Where         = expr.Where
)

var (
	ErrRecordNotFound      = core.ErrRecordNotFound
	ErrQueryUsed           = core.ErrQueryUsed
	ErrIllegalUpdateTarget = core.ErrIllegalUpdateTarget
	ErrJoinNotAllowed      = core.ErrJoinNotAllowed
	ErrNotRegistered       = core.ErrNotRegistered

	Property = expr.Property
	Value    = expr.Value
	AllOf    = expr.AllOf
	AnyOf    = expr.AnyOf
	Not      = expr.Not
	Set      = expr.Set
	Name     = core.Name
)

// Open opens a database and installs what opts asks for: a slow statement
// log when SlowThreshold is set and the cache described by opts.Cache.
func Open(driver, dsn string, opts *Options) (*DB, error) {
	db, err := core.Open(driver, dsn, opts)
	if err != nil {
		return nil, err
	}
	if err := setup(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenFile is Open with options read from a YAML file.
func OpenFile(path string) (*DB, error) {
	opts, err := core.LoadOptions(path)
	if err != nil {
		return nil, err
	}
	if opts.Driver == "" {
		return nil, fmt.Errorf("kormite: %s: driver is required", path)
	}
	return Open(opts.Driver, opts.DSN, opts)
}

func setup(db *DB) error {
	opts := db.Options()
	if opts.SlowThreshold > 0 {
		if err := db.Use(middleware.NewSlowLog(opts.SlowThreshold, "")); err != nil {
			return err
		}
	}
	c, err := NewCache(opts.Cache)
	if err != nil || c == nil {
		return err
	}
	return db.SetCache(c)
}

// NewCache builds the cache described by o, or returns nil for an empty
// Kind.
func NewCache(o CacheOptions) (Cache, error) {
	switch o.Kind {
	case "":
		return nil, nil
	case "memory":
		return middleware.NewMemoryCache(), nil
	case "redis":
		return middleware.NewRedisCache(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB}), nil
	case "file":
		return middleware.NewFileCache(o.Dir), nil
	}
	return nil, fmt.Errorf("kormite: unknown cache kind %q", o.Kind)
}

// Register registers T with db. See core.Register.
func Register[T any](db *DB, opts ...core.TableOption) (*Table[T], error) {
	return core.Register[T](db, opts...)
}

// Of returns the table T was registered as.
func Of[T any](db *DB) (*Table[T], error) {
	return core.Of[T](db)
}

// Values runs q projecting n and decodes every row as a V.
func Values[V, T any](ctx context.Context, q *Query[T], n expr.Node) ([]V, error) {
	return core.Values[V](ctx, q, n)
}
