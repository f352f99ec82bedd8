package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MineKing9534/KORMite-sub000/core"
)

// RedisCache is a core.Cache backed by Redis.
type RedisCache struct {
	Client redis.UniversalClient
	// ScanCount is the COUNT hint of the SCAN used by DeletePrefix.
	ScanCount int64
}

func NewRedisCache(opt *redis.Options) *RedisCache {
	return NewRedisCacheClient(redis.NewClient(opt))
}

// NewRedisCacheClient wraps an existing client. Shutdown closes it.
func NewRedisCacheClient(c redis.UniversalClient) *RedisCache {
	return &RedisCache{Client: c, ScanCount: 100}
}

func (m *RedisCache) Name() string {
	return "RedisCache"
}

func (m *RedisCache) Init(db *core.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Client.Ping(ctx).Err()
}

func (m *RedisCache) Shutdown() error {
	return m.Client.Close()
}

func (m *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := m.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value. A non-positive ttl never expires.
func (m *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return m.Client.Set(ctx, key, value, ttl).Err()
}

func (m *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := m.Client.Scan(ctx, 0, prefix+"*", m.ScanCount).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= m.ScanCount {
			if err := m.Client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return m.Client.Del(ctx, batch...).Err()
	}
	return nil
}
