// Package cache implements the cache manager (C5): three independently
// configured TTL+LRU caches (query embedding, search result, file digest)
// sharing a single generic implementation, with single-flight collapsing of
// concurrent misses on the same key.
//
// The cache manager is purely data: it holds no reference to the
// components that produce values. Callers pass a compute closure into Get,
// breaking the cyclic reference a directly-held producer handle would
// create (Search Service -> Cache Manager -> Embedding Client -> Search
// Service for warming).
package cache

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Stats reports cumulative counters for one cache instance.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

type entry[V any] struct {
	key       string
	value     V
	err       error
	expiresAt time.Time
}

// Cache is a thread-safe, capacity-bounded, TTL-expiring cache with
// single-flight deduplication of concurrent compute calls for the same
// key. The zero value is not usable; construct with New.
type Cache[V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	group    singleflight.Group

	hits      int64
	misses    int64
	evictions int64
}

// New creates a cache with the given TTL (0 disables expiry) and maximum
// entry count (0 or negative means unbounded).
func New[V any](ttl time.Duration, capacity int) *Cache[V] {
	return &Cache[V]{
		ttl:      ttl,
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached value for key if present and unexpired. On a
// miss, compute is invoked exactly once even if multiple goroutines call
// Get for the same key concurrently; all waiters observe the same value or
// error.
func (c *Cache[V]) Get(key string, compute func() (V, error)) (V, error) {
	if v, ok := c.lookup(key, true); ok {
		return v, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.lookup(key, false); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return v, err
		}
		c.put(key, v)
		return v, nil
	})

	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Peek returns the cached value without triggering a compute or
// single-flight on a miss.
func (c *Cache[V]) Peek(key string) (V, bool) {
	return c.lookup(key, true)
}

// Put inserts or replaces a value directly, bypassing single-flight.
func (c *Cache[V]) Put(key string, value V) {
	c.put(key, value)
}

// Invalidate removes key if present.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

// Warm populates entries for keys not already cached, computing each
// through the single-flight path so concurrent warm/Get calls on the same
// key still collapse to one computation.
func (c *Cache[V]) Warm(keys []string, compute func(key string) (V, error)) {
	for _, k := range keys {
		k := k
		_, _ = c.Get(k, func() (V, error) { return compute(k) })
	}
}

// Stats returns a snapshot of cumulative counters and current size.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.items),
	}
}

// lookup returns the live entry for key. count selects whether the hit or
// miss is added to the stats; Get's recheck inside single-flight passes
// false so one Get records at most one miss.
func (c *Cache[V]) lookup(key string, count bool) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		if count {
			c.misses++
		}
		var zero V
		return zero, false
	}
	e := el.Value.(*entry[V])
	if c.ttl > 0 && time.Now().After(e.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		if count {
			c.misses++
		}
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	if count {
		c.hits++
	}
	return e.value, true
}

func (c *Cache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[V]).value = value
		el.Value.(*entry[V]).expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	e := &entry[V]{key: key, value: value, expiresAt: expiresAt}
	el := c.order.PushFront(e)
	c.items[key] = el

	if c.capacity > 0 && len(c.items) > c.capacity {
		c.evictOldest()
	}
}

func (c *Cache[V]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	e := oldest.Value.(*entry[V])
	c.order.Remove(oldest)
	delete(c.items, e.key)
	c.evictions++
}
