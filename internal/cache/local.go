package cache

import (
	"sync"
	"time"
)

// Entry is a cached value and the instant it was stored.
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
}

// Local is an in-process cache with a fixed time-to-live per entry.
// It is owned by the engine that creates it; nothing here is process-wide.
type Local[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[K]Entry[V]
}

// NewLocal builds a cache. A non-positive ttl disables caching entirely.
func NewLocal[K comparable, V any](ttl time.Duration, now func() time.Time) *Local[K, V] {
	if now == nil {
		now = time.Now
	}
	return &Local[K, V]{
		ttl:     ttl,
		now:     now,
		entries: make(map[K]Entry[V]),
	}
}

// Get returns the value for key when it is younger than the ttl.
func (c *Local[K, V]) Get(key K) (V, bool) {
	var zero V
	if c.ttl <= 0 {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(entry.StoredAt) >= c.ttl {
		delete(c.entries, key)
		return zero, false
	}
	return entry.Value, true
}

func (c *Local[K, V]) Set(key K, value V) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	c.entries[key] = Entry[V]{Value: value, StoredAt: c.now()}
	c.mu.Unlock()
}

func (c *Local[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeleteFunc drops every entry whose key matches.
func (c *Local[K, V]) DeleteFunc(match func(K) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
		}
	}
}

func (c *Local[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
