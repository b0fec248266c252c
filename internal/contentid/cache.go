package contentid

import (
	"sync"
	"sync/atomic"

	"github.com/golang/groupcache/lru"
)

// Cache memoizes values derived from a node (rendered markup, typically) by ID.
// Callers own the cache; nothing in the compiler keeps hidden state.
type Cache interface {
	Get(id ID) (string, bool)
	Add(id ID, value string)
}

// LRU is a bounded, concurrency-safe Cache.
type LRU struct {
	mu     sync.Mutex
	cache  *lru.Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewLRU returns an LRU holding at most size entries (0 means unbounded).
func NewLRU(size int) *LRU {
	return &LRU{cache: lru.New(size)}
}

// Get returns the cached value for id.
func (c *LRU) Get(id ID) (string, bool) {
	c.mu.Lock()
	v, ok := c.cache.Get(lru.Key(id))
	c.mu.Unlock()
	if !ok {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return v.(string), true
}

// Add stores value under id.
func (c *LRU) Add(id ID, value string) {
	c.mu.Lock()
	c.cache.Add(lru.Key(id), value)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Stats returns hit and miss counts since creation.
func (c *LRU) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
