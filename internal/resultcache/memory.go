package resultcache

import (
	"context"
	"sync"
	"time"

	"article-inference/internal/inference"
)

// MemoryCache is a process-local cache for development and tests. Expired
// entries are dropped lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	result    inference.Result
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get retrieves a cached result by key. Returns nil if not found or expired.
func (c *MemoryCache) Get(_ context.Context, key string) (*inference.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	me, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !me.expiresAt.After(time.Now()) {
		delete(c.entries, key)
		return nil, nil
	}
	result := me.result
	return &result, nil
}

// Put stores a result; it expires ttl from now.
func (c *MemoryCache) Put(_ context.Context, key string, result *inference.Result, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{result: *result, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Close does nothing and always succeeds.
func (c *MemoryCache) Close() error { return nil }
