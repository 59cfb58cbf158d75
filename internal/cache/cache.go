// Package cache holds recently fetched upstream results keyed by
// "source:mint:params" with a per-entry time to live.
package cache

import (
	"hash/fnv"
	"sync"
	"time"

	"tokenrisk/internal/metrics"
)

const shardCount = 32

type entry struct {
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) live(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

type shard struct {
	mu    sync.RWMutex
	items map[string]entry
}

// Cache is a TTL map split into fnv-hashed shards so that unrelated keys
// do not contend on one lock. Stale entries are never returned; they are
// dropped on overwrite, Invalidate or Purge.
type Cache struct {
	shards     [shardCount]*shard
	defaultTTL time.Duration
	now        func() time.Time
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache whose Set uses defaultTTL when no ttl is given
func New(defaultTTL time.Duration, opts ...Option) *Cache {
	c := &Cache{
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for i := range c.shards {
		c.shards[i] = &shard{items: make(map[string]entry)}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) shard(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

// Get returns the value stored under key if it is still live
func (c *Cache) Get(key string) (interface{}, bool) {
	s := c.shard(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	switch {
	case !ok:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	case !e.live(c.now()):
		metrics.CacheLookups.WithLabelValues("stale").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return e.value, true
}

// Set stores value under key. A non-positive ttl falls back to the default.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	s := c.shard(key)
	s.mu.Lock()
	s.items[key] = entry{value: value, storedAt: c.now(), ttl: ttl}
	s.mu.Unlock()
}

// Invalidate removes key; removing an absent key is a no-op
func (c *Cache) Invalidate(key string) {
	s := c.shard(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// InvalidateAll empties the cache
func (c *Cache) InvalidateAll() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.items = make(map[string]entry)
		s.mu.Unlock()
	}
}

// Keys lists live keys in no particular order
func (c *Cache) Keys() []string {
	now := c.now()
	var keys []string
	for _, s := range c.shards {
		s.mu.RLock()
		for k, e := range s.items {
			if e.live(now) {
				keys = append(keys, k)
			}
		}
		s.mu.RUnlock()
	}
	return keys
}

// Purge drops stale entries and returns how many were removed
func (c *Cache) Purge() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if !e.live(now) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len counts stored entries, stale ones included
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Lookup is a typed Get. A live value of another type counts as a miss.
func Lookup[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
