package strata

import (
	"container/list"
	"context"
	"sync"
)

// Cache stores rendered statements keyed by the canonical form of the
// logical query that produced them. Alias allocation is deterministic, so the
// same logical query always renders to the same text.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, false if the key doesn't exist.
	Get(ctx context.Context, key CacheKey) (any, bool)

	// Set stores a value in the cache.
	Set(ctx context.Context, key CacheKey, value any)

	// Clear removes all values from the cache.
	Clear(ctx context.Context)
}

// CacheKey identifies a translated statement.
type CacheKey struct {
	Dialect   string
	Entity    string
	Operation string
	Query     string
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return k.Dialect + ":" + k.Entity + ":" + k.Operation + ":" + k.Query
}

// DefaultCacheSize is the capacity of a memory cache created with a
// non-positive size.
const DefaultCacheSize = 256

// MemoryCache is an in-process LRU Cache safe for concurrent use.
type MemoryCache struct {
	mu    sync.Mutex
	size  int
	ll    *list.List
	items map[CacheKey]*list.Element
}

type cacheEntry struct {
	key   CacheKey
	value any
}

// NewMemoryCache returns an LRU cache holding at most size entries.
func NewMemoryCache(size int) *MemoryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &MemoryCache{
		size:  size,
		ll:    list.New(),
		items: make(map[CacheKey]*list.Element, size),
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key CacheKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key CacheKey, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, value: value})
	if c.ll.Len() > c.size {
		last := c.ll.Back()
		c.ll.Remove(last)
		delete(c.items, last.Value.(*cacheEntry).key)
	}
}

// Clear implements Cache.
func (c *MemoryCache) Clear(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	clear(c.items)
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

var _ Cache = (*MemoryCache)(nil)
