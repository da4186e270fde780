package publish

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	texbot "github.com/alnah/go-texbot"
)

// Index remembers which keys have already been uploaded.
type Index interface {
	Published(ctx context.Context, key texbot.CacheKey) (bool, error)
	MarkPublished(ctx context.Context, key texbot.CacheKey) error
}

// MemoryIndex is a process-local Index.
type MemoryIndex struct {
	mu   sync.Mutex
	keys map[texbot.CacheKey]struct{}
}

var _ Index = (*MemoryIndex)(nil)

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{keys: make(map[texbot.CacheKey]struct{})}
}

func (m *MemoryIndex) Published(_ context.Context, key texbot.CacheKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok, nil
}

func (m *MemoryIndex) MarkPublished(_ context.Context, key texbot.CacheKey) error {
	m.mu.Lock()
	m.keys[key] = struct{}{}
	m.mu.Unlock()
	return nil
}

// redisStore is the subset of *redis.Client used by RedisIndex.
type redisStore interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisIndex shares the upload index between replicas and across restarts.
type RedisIndex struct {
	store  redisStore
	prefix string
	ttl    time.Duration // 0 keeps entries forever
}

var _ Index = (*RedisIndex)(nil)

// NewRedisIndex connects lazily to addr; the first command dials.
func NewRedisIndex(addr, prefix string, ttl time.Duration) *RedisIndex {
	return newRedisIndex(redis.NewClient(&redis.Options{Addr: addr}), prefix, ttl)
}

func newRedisIndex(store redisStore, prefix string, ttl time.Duration) *RedisIndex {
	if prefix == "" {
		prefix = "texbot:published:"
	}
	return &RedisIndex{store: store, prefix: prefix, ttl: ttl}
}

func (r *RedisIndex) Published(ctx context.Context, key texbot.CacheKey) (bool, error) {
	n, err := r.store.Exists(ctx, r.prefix+key.String()).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *RedisIndex) MarkPublished(ctx context.Context, key texbot.CacheKey) error {
	if err := r.store.Set(ctx, r.prefix+key.String(), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
