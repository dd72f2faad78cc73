package scheduler

import (
	"sync"
	"time"
)

// memoryResultCache is the default idempotency store: TTL-bounded, in-memory,
// safe for concurrent use.
type memoryResultCache struct {
	mu    sync.RWMutex
	items map[string]cachedResult
}

type cachedResult struct {
	result    *Result
	expiresAt time.Time
}

// NewMemoryResultCache builds an empty in-memory result cache.
func NewMemoryResultCache() ResultCache {
	return &memoryResultCache{items: make(map[string]cachedResult)}
}

func (c *memoryResultCache) Get(key string) (*Result, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false
	}
	return item.result, true
}

func (c *memoryResultCache) Set(key string, result *Result, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	c.mu.Lock()
	c.items[key] = cachedResult{result: result, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}
