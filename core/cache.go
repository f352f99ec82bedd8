package core

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache stores serialized query results. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix drops every entry whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// SetCache installs the cache used by queries that ask for caching. A cache
// that is also a Component is initialized now and shut down by Close.
func (db *DB) SetCache(c Cache) error {
	if comp, ok := c.(Component); ok {
		if err := comp.Init(db); err != nil {
			return fmt.Errorf("kormite: init cache %s: %w", comp.Name(), err)
		}
	}
	db.cache = c
	return nil
}

// Cache returns the installed cache, or nil.
func (db *DB) Cache() Cache { return db.cache }

// CachePrefix is the key prefix of every cached result of table.
func CachePrefix(table string) string { return "kormite:" + table + ":" }

func cacheKey(table, sql string, args []any) string {
	h := xxhash.New()
	_, _ = h.WriteString(sql)
	for _, a := range args {
		_, _ = fmt.Fprintf(h, "\x00%T:%v", a, a)
	}
	return fmt.Sprintf("%s%016x", CachePrefix(table), h.Sum64())
}

// invalidate drops the cached results of table after a write.
func (db *DB) invalidate(ctx context.Context, table string) {
	if db.cache == nil {
		return
	}
	if err := db.cache.DeletePrefix(ctx, CachePrefix(table)); err != nil {
		db.logger.Warn("cache invalidation for %s failed: %v", table, err)
	}
}

// snapshot is a fully read result set as stored in the cache.
type snapshot struct {
	Cols []string `msgpack:"c"`
	Data [][]any  `msgpack:"r"`
	pos  int
}

func drain(c cursor) (*snapshot, error) {
	defer c.Close()
	cols, err := c.Columns()
	if err != nil {
		return nil, err
	}
	s := &snapshot{Cols: cols}
	for c.Next() {
		row, err := scanRow(c, len(cols))
		if err != nil {
			return nil, err
		}
		s.Data = append(s.Data, row)
	}
	return s, c.Err()
}

func (s *snapshot) marshal() ([]byte, error) { return msgpack.Marshal(s) }

func unmarshalSnapshot(b []byte) (*snapshot, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	s := &snapshot{}
	if err := dec.Decode(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *snapshot) Columns() ([]string, error) { return s.Cols, nil }
func (s *snapshot) Err() error                 { return nil }
func (s *snapshot) Close() error               { return nil }

func (s *snapshot) Next() bool {
	if s.pos >= len(s.Data) {
		return false
	}
	s.pos++
	return true
}

func (s *snapshot) Scan(dest ...any) error {
	row := s.Data[s.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("kormite: cached row has %d values, %d requested", len(row), len(dest))
	}
	for i, d := range dest {
		p, ok := d.(*any)
		if !ok {
			return fmt.Errorf("kormite: cached rows scan into *any only, got %T", d)
		}
		*p = row[i]
	}
	return nil
}
