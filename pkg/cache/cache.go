// Package cache provides a thread-safe LRU cache.
//
// The conversion table uses it to remember how an overloaded call was
// resolved for a given list of argument types, so repeated resolutions skip
// the search over implicit casts.
//
// # Example
//
//	c := cache.New[conversion.CacheKey, *conversion.Resolution](1024)
//	res, err := c.GetOrCompute(key, resolve)
package cache

import (
	"container/list"
	"sync"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 256

// entry is a cache entry stored in the doubly-linked list.
type entry[K comparable, V any] struct {
	key   K
	value V
}

// Cache is a thread-safe LRU (Least Recently Used) cache.
// Once the capacity is reached, the least recently accessed entry is evicted.
//
// Safe for concurrent use by multiple goroutines.
type Cache[K comparable, V any] struct {
	mu       sync.RWMutex
	capacity int
	ll       *list.List
	items    map[K]*list.Element
}

// New creates a new LRU cache with the given capacity.
// capacity must be > 0; if <= 0, DefaultCapacity is used.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache[K, V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[K]*list.Element, capacity),
	}
}

// Get retrieves a value from the cache.
// Returns (value, true) if found and moves the entry to front (MRU).
// Returns (zero, false) if not present.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	el, ok := c.items[key]
	// Already most recent: no write lock needed.
	alreadyFront := ok && c.ll.Front() == el
	var value V
	if alreadyFront {
		// Set rewrites entries in place, so read under the lock.
		value = el.Value.(*entry[K, V]).value
	}
	c.mu.RUnlock()
	if !ok {
		return value, false
	}
	if alreadyFront {
		return value, true
	}

	// Promote to front under write lock; re-check in case of concurrent eviction.
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok = c.items[key]
	if !ok {
		return value, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry[K, V]).value, true
}

// Set inserts or replaces a value in the cache.
// If at capacity, the least recently used entry is evicted first.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		c.evictLocked()
	}

	el := c.ll.PushFront(&entry[K, V]{key: key, value: value})
	c.items[key] = el
}

// GetOrCompute retrieves the value for key from cache, or calls compute()
// to create it, caches the result, and returns it.
// Errors are not cached.
func (c *Cache[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

// Len returns the number of entries currently in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	return n
}

// Capacity returns the maximum number of entries the cache can hold.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// Invalidate removes a single entry from the cache.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

// Clear removes all entries from the cache.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[K]*list.Element, c.capacity)
}

// evictLocked removes the least recently used entry.
// Must be called with c.mu held for writing.
func (c *Cache[K, V]) evictLocked() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry[K, V]).key)
}
