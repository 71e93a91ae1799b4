package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type entry struct {
	b   []byte
	exp time.Time
}

// MemoryCache is an in-process TTL cache. Values are stored as JSON so
// behavior matches the Redis implementation.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]entry
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]entry)}
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = entry{b: b, exp: exp}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return ErrMiss
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return ErrMiss
	}
	return json.Unmarshal(e.b, dest)
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.m, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Close() error { return nil }

var _ Service = (*MemoryCache)(nil)
