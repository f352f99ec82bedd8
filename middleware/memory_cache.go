package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MineKing9534/KORMite-sub000/core"
)

// MemoryCache is a core.Cache keeping entries in process memory. Expired
// entries are dropped lazily on read and by a cleanup loop.
type MemoryCache struct {
	items     map[string]memoryCacheEntry
	mu        sync.RWMutex
	stopClean chan struct{}
	stopOnce  sync.Once
	// Interval between cleanup sweeps.
	Interval time.Duration
}

type memoryCacheEntry struct {
	Data      []byte
	ExpiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items:     make(map[string]memoryCacheEntry),
		stopClean: make(chan struct{}),
		Interval:  time.Minute,
	}
}

func (m *MemoryCache) Name() string {
	return "MemoryCache"
}

func (m *MemoryCache) Init(db *core.DB) error {
	go m.cleanupLoop()
	return nil
}

func (m *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopClean:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *MemoryCache) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for k, v := range m.items {
		if !v.ExpiresAt.IsZero() && now.After(v.ExpiresAt) {
			delete(m.items, k)
		}
	}
}

func (m *MemoryCache) Shutdown() error {
	m.stopOnce.Do(func() { close(m.stopClean) })
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, found := m.items[key]
	m.mu.RUnlock()
	if !found {
		return nil, false, nil
	}
	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		// Expired, delete (lazy delete)
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.Data, true, nil
}

// Set stores value. A non-positive ttl never expires.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryCacheEntry{Data: value}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
	return nil
}
