package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// TTL is an in-process cache where every entry shares one time-to-live.
// An entry is valid while now - createdAt < ttl. A zero ttl never expires.
//
// Writes for the same key are last-write-wins.
type TTL[V any] struct {
	mu  sync.RWMutex
	m   map[string]entry[V]
	ttl time.Duration
	now Clock
}

func NewTTL[V any](ttl time.Duration, opts ...TTLOption) *TTL[V] {
	cfg := &TTLConfig{Clock: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	return &TTL[V]{m: make(map[string]entry[V]), ttl: ttl, now: cfg.Clock}
}

// Get returns the value when present and fresh. Stale entries are evicted.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.expired(e) {
		c.mu.Lock()
		if cur, still := c.m[key]; still && cur.createdAt.Equal(e.createdAt) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Age reports how long ago the entry was written.
func (c *TTL[V]) Age(key string) (time.Duration, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok || c.expired(e) {
		return 0, false
	}
	return c.now().Sub(e.createdAt), true
}

func (c *TTL[V]) Set(key string, v V) {
	c.mu.Lock()
	c.m[key] = entry[V]{value: v, createdAt: c.now()}
	c.mu.Unlock()
}

func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

// Len counts entries including ones not yet evicted.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *TTL[V]) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry[V])
	c.mu.Unlock()
}

func (c *TTL[V]) expired(e entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.createdAt) >= c.ttl
}
