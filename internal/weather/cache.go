package weather

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
)

// Cache stores forecasts for a limited time.
type Cache interface {
	Get(ctx context.Context, key string) (Forecast, bool, error)
	Set(ctx context.Context, key string, f Forecast, ttl time.Duration) error
}

type memoryEntry struct {
	forecast  Forecast
	expiresAt time.Time
}

// MemoryCache is an in-process Cache whose expiry follows the given clock.
type MemoryCache struct {
	clock   clock.Clock
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache(clk clock.Clock) *MemoryCache {
	return &MemoryCache{clock: clk, entries: make(map[string]memoryEntry)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (Forecast, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return Forecast{}, false, nil
	}
	if !m.clock.Now().Before(e.expiresAt) {
		delete(m.entries, key)
		return Forecast{}, false, nil
	}
	return e.forecast, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, f Forecast, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{forecast: f, expiresAt: m.clock.Now().Add(ttl)}
	return nil
}

// RedisCache keeps forecasts in Redis with a native TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache returns a Cache backed by client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "weather:"}
}

func (r *RedisCache) Get(ctx context.Context, key string) (Forecast, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Forecast{}, false, nil
	}
	if err != nil {
		return Forecast{}, false, err
	}
	var f Forecast
	if err := json.Unmarshal(b, &f); err != nil {
		return Forecast{}, false, err
	}
	return f, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, f Forecast, ttl time.Duration) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+key, b, ttl).Err()
}
