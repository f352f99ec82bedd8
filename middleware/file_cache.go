package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/MineKing9534/KORMite-sub000/core"
)

// FileCache is a core.Cache keeping one file per entry in CacheDir.
type FileCache struct {
	CacheDir string
}

func NewFileCache(cacheDir string) *FileCache {
	return &FileCache{CacheDir: cacheDir}
}

func (m *FileCache) Name() string {
	return "FileCache"
}

func (m *FileCache) Init(db *core.DB) error {
	if m.CacheDir == "" {
		return fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(m.CacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return nil
}

func (m *FileCache) Shutdown() error {
	return nil
}

type fileCacheEntry struct {
	Data      []byte    `msgpack:"data"`
	ExpiresAt time.Time `msgpack:"expires_at"`
}

// path escapes key so that its prefix survives as a file name prefix.
func (m *FileCache) path(key string) string {
	return filepath.Join(m.CacheDir, url.PathEscape(key)+".cache")
}

func (m *FileCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := m.path(key)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entry fileCacheEntry
	if err := msgpack.Unmarshal(b, &entry); err != nil {
		// Corrupt entry, treat as miss
		_ = os.Remove(path)
		return nil, false, nil
	}
	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return entry.Data, true, nil
}

// Set stores value. A non-positive ttl never expires.
func (m *FileCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := fileCacheEntry{Data: value}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	b, err := msgpack.Marshal(&entry)
	if err != nil {
		return err
	}
	// Write through a temp file so readers never see a partial entry.
	tmp, err := os.CreateTemp(m.CacheDir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), m.path(key))
}

func (m *FileCache) DeletePrefix(_ context.Context, prefix string) error {
	entries, err := os.ReadDir(m.CacheDir)
	if err != nil {
		return err
	}
	escaped := url.PathEscape(prefix)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), escaped) {
			continue
		}
		if err := os.Remove(filepath.Join(m.CacheDir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
