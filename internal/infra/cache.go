package infra

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// DefaultMaxCacheEntries bounds the cache when NewCache is given a non-positive size.
const DefaultMaxCacheEntries = 1000

// CacheObserver receives hit/miss/size notifications (wired to Prometheus by callers).
type CacheObserver interface {
	CacheAccess(hit bool)
	CacheSize(n int)
}

type cacheEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a TTL cache with least-recently-used eviction once maxEntries is reached.
// Expired entries are dropped lazily on access.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	now        func() time.Time
	observer   CacheObserver
}

// NewCache creates a cache holding at most maxEntries values.
func NewCache[V any](maxEntries int) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxCacheEntries
	}
	return &Cache[V]{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// SetObserver attaches an observer for cache metrics.
func (c *Cache[V]) SetObserver(o CacheObserver) {
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

// Get returns the cached value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.observeAccess(false)
		return zero, false
	}
	e := el.Value.(*cacheEntry[V])
	if !c.now().Before(e.expiresAt) {
		c.removeElement(el)
		c.observeAccess(false)
		return zero, false
	}
	c.order.MoveToFront(el)
	c.observeAccess(true)
	return e.value, true
}

// Set stores value under key for ttl, evicting the least recently used entry when full.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*cacheEntry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry[V]{key: key, value: value, expiresAt: expiresAt})
	c.entries[key] = el
	for len(c.entries) > c.maxEntries {
		c.removeElement(c.order.Back())
	}
	c.observeSize()
}

// Delete removes key from the cache.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
}

// DeletePrefix removes all entries whose key starts with prefix.
func (c *Cache[V]) DeletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, el := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(el)
		}
	}
}

// Size returns the number of entries, including expired ones not yet collected.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// removeElement must be called with c.mu held.
func (c *Cache[V]) removeElement(el *list.Element) {
	e := el.Value.(*cacheEntry[V])
	delete(c.entries, e.key)
	c.order.Remove(el)
	c.observeSize()
}

func (c *Cache[V]) observeAccess(hit bool) {
	if c.observer != nil {
		c.observer.CacheAccess(hit)
	}
}

func (c *Cache[V]) observeSize() {
	if c.observer != nil {
		c.observer.CacheSize(len(c.entries))
	}
}
