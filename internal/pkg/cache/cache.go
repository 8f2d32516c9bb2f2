// Package cache implements a bounded TTL cache with LRU eviction, used to
// de-duplicate repeated external reads within a short window.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[V any] struct {
	key    string
	value  V
	expiry time.Time
}

// Cache maps string keys to values with per-entry expiry. Once more than
// maxSize entries are stored, the least recently used entry is evicted.
type Cache[V any] struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	maxSize    int
	order      *list.List // front = most recently used
	items      map[string]*list.Element
	hits       int64
	misses     int64
	nowFn      func() time.Time
}

// Stats is a point-in-time view for the status endpoint.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Size    int   `json:"size"`
	MaxSize int   `json:"max_size"`
}

func New[V any](defaultTTL time.Duration, maxSize int) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache[V]{
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
		order:      list.New(),
		items:      make(map[string]*list.Element),
		nowFn:      time.Now,
	}
}

// Get returns the cached value and whether it was present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	ent := el.Value.(*entry[V])
	if c.nowFn().After(ent.expiry) {
		c.order.Remove(el)
		delete(c.items, key)
		c.misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return ent.value, true
}

// Set stores value under key with the given ttl (defaultTTL when ttl<=0).
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry := c.nowFn().Add(ttl)
	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[V])
		ent.value = value
		ent.expiry = expiry
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiry: expiry})
	if c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry[V]).key)
		}
	}
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Size:    c.order.Len(),
		MaxSize: c.maxSize,
	}
}
