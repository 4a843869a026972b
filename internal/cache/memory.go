package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache.
// El mutex propio serializa SetMany/DeleteMany contra lecturas, go-cache solo
// garantiza atomicidad por key.
type memoryClient struct {
	prefix string
	mu     sync.RWMutex
	c      *gocache.Cache
}

// NewMemory crea un cliente en memoria. Las entradas sin TTL no expiran.
func NewMemory(prefix string) *memoryClient {
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (m *memoryClient) key(k string) string { return prefixed(m.prefix, k) }

func (m *memoryClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.c.Get(m.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.c.Get(m.key(k)); ok {
			s, _ := v.(string)
			out[k] = s
		}
	}
	return out, nil
}

func (m *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(m.key(key), value, ttl)
	return nil
}

func (m *memoryClient) SetMany(ctx context.Context, entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.c.Set(m.key(k), v, gocache.NoExpiration)
	}
	return nil
}

func (m *memoryClient) Delete(ctx context.Context, key string) error {
	return m.DeleteMany(ctx, key)
}

func (m *memoryClient) DeleteMany(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.c.Delete(m.key(k))
	}
	return nil
}

func (m *memoryClient) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.c.Get(m.key(key))
	return ok, nil
}

func (m *memoryClient) Ping(ctx context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Flush()
	return nil
}
