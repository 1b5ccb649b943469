package catalog

import (
	"sync"
	"time"
)

type cacheEntry struct {
	task     Task
	cachedAt time.Time
}

// InMemoryTaskCache is a simple in-memory implementation of TaskCache
// Thread-safe for concurrent access
type InMemoryTaskCache struct {
	entries map[string]cacheEntry
	config  CacheConfig
	now     func() time.Time
	mu      sync.RWMutex
}

// NewInMemoryTaskCache creates a new in-memory task cache
func NewInMemoryTaskCache(config CacheConfig) *InMemoryTaskCache {
	return &InMemoryTaskCache{
		entries: make(map[string]cacheEntry),
		config:  config,
		now:     time.Now,
	}
}

// Get retrieves a deep copy of a cached task
// Returns nil if the entry is missing or expired
func (c *InMemoryTaskCache) Get(name string) *Task {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[name]
	if !ok || c.expired(entry) {
		return nil
	}

	return entry.task.Clone()
}

// Set stores a task in the cache
func (c *InMemoryTaskCache) Set(task *Task) {
	if task == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[task.Name] = cacheEntry{task: *task.Clone(), cachedAt: c.now()}
}

// Invalidate clears the cache
func (c *InMemoryTaskCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of unexpired entries
func (c *InMemoryTaskCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.entries {
		if !c.expired(e) {
			n++
		}
	}
	return n
}

func (c *InMemoryTaskCache) expired(e cacheEntry) bool {
	return c.config.TTL > 0 && c.now().Sub(e.cachedAt) > c.config.TTL
}
