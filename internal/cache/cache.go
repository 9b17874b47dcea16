// Package cache provides a bounded in-memory map with access-based expiry.
// Entries are evicted LRU-style once the capacity is reached, and an entry
// untouched for longer than the TTL is treated as absent on the next lookup.
package cache

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry[V any] struct {
	value V

	// lastAccess holds UnixNano of the most recent Get or Add.
	lastAccess atomic.Int64
}

// Cache is safe for concurrent use. A zero TTL disables expiry.
type Cache[K comparable, V any] struct {
	ttl time.Duration
	lru *lru.Cache[K, *entry[V]]

	// now is swappable in tests
	now func() time.Time
}

// New creates a cache holding at most maxEntries values, each expiring after
// ttl of no access.
func New[K comparable, V any](maxEntries int, ttl time.Duration) (*Cache[K, V], error) {
	l, err := lru.New[K, *entry[V]](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{
		ttl: ttl,
		lru: l,
		now: time.Now,
	}, nil
}

// Get returns the value for key, refreshing its access timestamp. An expired
// entry is removed and reported as absent.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	e, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	now := c.now()
	if c.ttl > 0 && now.UnixNano()-e.lastAccess.Load() > int64(c.ttl) {
		c.lru.Remove(key)
		return zero, false
	}
	e.lastAccess.Store(now.UnixNano())
	return e.value, true
}

// Add stores value under key, displacing the oldest entry when full.
func (c *Cache[K, V]) Add(key K, value V) {
	e := &entry[V]{value: value}
	e.lastAccess.Store(c.now().UnixNano())
	c.lru.Add(key, e)
}

// Remove drops key from the cache.
func (c *Cache[K, V]) Remove(key K) {
	c.lru.Remove(key)
}

// Len reports the number of resident entries, expired or not.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache[K, V]) Purge() {
	c.lru.Purge()
}
