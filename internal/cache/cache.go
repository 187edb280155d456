package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache is an in-process store whose entries expire after a shared TTL.
// Expired entries read as misses but stay in storage until overwritten or
// invalidated; Stats reports both so callers can watch cache health.
type Cache[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry[V]
}

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

type Stats struct {
	Total   int `json:"total_entries"`
	Valid   int `json:"valid_entries"`
	Expired int `json:"expired_entries"`
}

func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry[V]),
	}
}

// NewWithClock is for tests that need a controllable clock.
func NewWithClock[V any](ttl time.Duration, now func() time.Time) *Cache[V] {
	c := New[V](ttl)
	c.now = now
	return c
}

// Get returns a hit only while the entry is younger than the TTL. An entry
// aged exactly TTL is already a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.insertedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put overwrites unconditionally and restarts the entry's clock. Concurrent
// writers race last-write-wins, which is fine: recomputation is idempotent.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, insertedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate removes entries whose key starts with prefix and returns how
// many were removed. An empty prefix clears the whole cache.
func (c *Cache[V]) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prefix == "" {
		removed := len(c.entries)
		c.entries = make(map[string]entry[V])
		return removed
	}
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache[V]) Stats() Stats {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := Stats{Total: len(c.entries)}
	for _, e := range c.entries {
		if now.Sub(e.insertedAt) < c.ttl {
			stats.Valid++
		} else {
			stats.Expired++
		}
	}
	return stats
}

func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// Key builds a deterministic cache key from an operation name and its
// parameters. Parameters are sorted by name so semantically identical
// requests collide regardless of call-site ordering.
func Key(op string, params map[string]string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, op)
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, name+"_"+params[name])
	}
	return strings.Join(parts, ":")
}
