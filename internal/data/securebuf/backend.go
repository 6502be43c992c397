package securebuf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Backend persists sealed blobs. Implementations never see plaintext.
type Backend interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns found=false for a missing or expired key.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Delete(ctx context.Context, keys ...string) (int, error)
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// RedisBackend stores blobs in Redis with a per-key PX expiry.
type RedisBackend struct {
	client redis.UniversalClient
}

// NewRedisBackend wraps an existing client (direct, sentinel or cluster).
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

// Set writes value with the given TTL.
func (r *RedisBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get reads a value; redis.Nil is reported as not found.
func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("key cannot be empty")
	}
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Delete removes keys one DEL per key in a pipeline, which stays valid
// when the keys hash to different cluster slots.
func (r *RedisBackend) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	cmds := make([]*redis.IntCmd, 0, len(keys))
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			cmds = append(cmds, p.Del(ctx, k))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	deleted := 0
	for _, c := range cmds {
		deleted += int(c.Val())
	}
	return deleted, nil
}

// Exists checks if a key exists in Redis.
func (r *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Ping checks the health of the Redis connection.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryBackend keeps blobs in a bounded in-process LRU. Entries carry their
// own deadline because the LRU only supports one TTL for the whole cache.
type MemoryBackend struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, memoryEntry]
	now   func() time.Time
}

// NewMemoryBackend creates an in-memory backend holding at most maxEntries blobs,
// none of which outlive maxTTL.
func NewMemoryBackend(maxEntries int, maxTTL time.Duration) *MemoryBackend {
	return &MemoryBackend{
		cache: expirable.NewLRU[string, memoryEntry](maxEntries, nil, maxTTL),
		now:   time.Now,
	}
}

// WithClock replaces the clock used for per-entry expiry.
func (m *MemoryBackend) WithClock(now func() time.Time) *MemoryBackend {
	m.now = now
	return m
}

// Set stores value until now+ttl.
func (m *MemoryBackend) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(key, memoryEntry{value: value, expiresAt: m.now().Add(ttl)})
	return nil
}

// Get returns a live value and evicts an expired one.
func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.cache.Remove(key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Delete removes keys and counts the live ones.
func (m *MemoryBackend) Delete(_ context.Context, keys ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	now := m.now()
	for _, k := range keys {
		e, ok := m.cache.Peek(k)
		if !ok {
			continue
		}
		m.cache.Remove(k)
		if now.Before(e.expiresAt) {
			deleted++
		}
	}
	return deleted, nil
}

// Exists reports whether a live entry is stored under key.
func (m *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

// Ping always succeeds.
func (m *MemoryBackend) Ping(context.Context) error { return nil }
