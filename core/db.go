package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MineKing9534/KORMite-sub000/dialect"
	"github.com/MineKing9534/KORMite-sub000/logger"
	"github.com/MineKing9534/KORMite-sub000/pool"
	"github.com/MineKing9534/KORMite-sub000/schema"
)

// DefaultJoinDepth is the number of reference levels a select joins unless
// Options.JoinDepth or Query.Depth say otherwise.
const DefaultJoinDepth = 3

// Options defines the configuration of a DB. The yaml tags are the keys
// understood by LoadOptions.
type Options struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// JoinDepth is the number of reference levels a select joins.
	JoinDepth int `yaml:"join_depth"`
	// Naming selects the naming policy: "snake" (default) or "plural".
	Naming string `yaml:"naming"`
	// SlowThreshold enables slow statement logging when set.
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	// Cache selects the result cache installed by kormite.Open.
	Cache CacheOptions `yaml:"cache"`

	// Logger replaces the default stdout logger.
	Logger logger.Logger `yaml:"-"`
	// Mappers are registered after the built-in mappers and take priority
	// over them.
	Mappers []schema.Mapper `yaml:"-"`
}

// CacheOptions describes a result cache. Kind is "memory", "redis", "file"
// or empty for none.
type CacheOptions struct {
	Kind     string `yaml:"kind"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Dir      string `yaml:"dir"`
}

// DB is the main entry point for the ORM. It owns the connection pool, the
// dialect and the mapper registry every table of the DB is built in.
type DB struct {
	pool        pool.Pool
	dialect     dialect.Dialect
	logger      logger.Logger
	registry    *schema.Registry
	middlewares []Middleware
	cache       Cache
	depth       int
	opts        Options
}

// Open initializes a new DB instance with the given driver and DSN.
func Open(driver, dsn string, opts *Options) (*DB, error) {
	if _, ok := dialect.Get(driver); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := OpenDB(pool.NewStdPool(sqlDB), driver, opts)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := db.pool.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// OpenDB wraps an existing pool. driver selects the dialect.
func OpenDB(p pool.Pool, driver string, opts *Options) (*DB, error) {
	d, ok := dialect.Get(driver)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, driver)
	}
	var o Options
	if opts != nil {
		o = *opts
	}
	o.Driver = driver
	pool.Configure(p, o.MaxOpenConns, o.MaxIdleConns, o.ConnMaxLifetime)

	l := o.Logger
	if l == nil {
		l = logger.NewStdLogger()
	}
	if o.LogLevel != "" {
		level, err := logger.ParseLevel(o.LogLevel)
		if err != nil {
			return nil, err
		}
		l.SetLevel(level)
	}
	if o.LogFormat != "" {
		l.SetFormat(logger.LogFormat(o.LogFormat))
	}

	naming := schema.SnakeCase
	switch o.Naming {
	case "", "snake":
	case "plural":
		naming = schema.Pluralize
	default:
		return nil, fmt.Errorf("kormite: unknown naming policy %q", o.Naming)
	}

	depth := o.JoinDepth
	if depth <= 0 {
		depth = DefaultJoinDepth
	}

	r := schema.NewRegistry(
		schema.WithFeatures(d.Features()),
		schema.WithNaming(naming),
		schema.WithLogger(l),
	)
	r.Register(o.Mappers...)

	return &DB{
		pool:     p,
		dialect:  d,
		logger:   l,
		registry: r,
		depth:    depth,
		opts:     o,
	}, nil
}

// Close shuts the middlewares down in reverse order, then the cache, and
// closes the pool.
func (db *DB) Close() error {
	var first error
	for i := len(db.middlewares) - 1; i >= 0; i-- {
		if err := db.middlewares[i].Shutdown(); err != nil && first == nil {
			first = err
		}
	}
	if comp, ok := db.cache.(Component); ok {
		if err := comp.Shutdown(); err != nil && first == nil {
			first = err
		}
	}
	if err := db.pool.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// SetLogger sets a custom logger for the DB.
func (db *DB) SetLogger(l logger.Logger) {
	db.logger = l
}

func (db *DB) Logger() logger.Logger      { return db.logger }
func (db *DB) Dialect() dialect.Dialect   { return db.dialect }
func (db *DB) Registry() *schema.Registry { return db.registry }
func (db *DB) Pool() pool.Pool            { return db.pool }
func (db *DB) Options() Options           { return db.opts }
func (db *DB) Middlewares() []Middleware  { return db.middlewares }

// Use initializes the middlewares and appends them to the chain. The first
// middleware added is the outermost. Use is not safe to call while
// statements are executing.
func (db *DB) Use(ms ...Middleware) error {
	for _, m := range ms {
		if err := m.Init(db); err != nil {
			return fmt.Errorf("kormite: init middleware %s: %w", m.Name(), err)
		}
		db.middlewares = append(db.middlewares, m)
	}
	return nil
}

// logSQL logs the SQL execution if a logger is set.
func (db *DB) logSQL(fields map[string]any, sql string, duration time.Duration, args ...any) {
	if db.logger == nil {
		return
	}
	l := db.logger
	if len(fields) > 0 {
		l = l.WithFields(fields)
	}
	l.SQL(sql, duration, args...)
}

// Begin starts a transaction. Prefer Transaction, which always ends it.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	start := time.Now()
	sqlTx, err := db.pool.BeginTx(ctx, nil)
	db.logSQL(nil, "BEGIN", time.Since(start))
	if err != nil {
		return nil, err
	}
	return &Tx{db: db, sqlTx: sqlTx}, nil
}

// Transaction executes fn within a database transaction. It commits when fn
// returns nil and rolls back when fn fails or panics.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}
