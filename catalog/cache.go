package catalog

import (
	"context"
	"errors"
	"time"
)

// TaskCache provides an abstraction for caching resolved catalog tasks.
// This allows swapping the in-memory cache for a shared one later.
type TaskCache interface {
	// Get returns the cached task, or nil on a miss or an expired entry
	Get(name string) *Task

	// Set stores a task under its name
	Set(task *Task)

	// Invalidate drops every entry, forcing the next lookup to the catalog
	Invalidate()

	// Len returns the number of live entries
	Len() int
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration
}

// DefaultCacheConfig returns the defaults used by the server
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 5 * time.Minute,
	}
}

// CachedCatalog wraps a Catalog and caches task lookups. Application lookups
// and failures are never cached.
type CachedCatalog struct {
	next  Catalog
	cache TaskCache
}

// NewCachedCatalog wraps next with an in-memory task cache.
func NewCachedCatalog(next Catalog, config CacheConfig) *CachedCatalog {
	return &CachedCatalog{
		next:  next,
		cache: NewInMemoryTaskCache(config),
	}
}

func (c *CachedCatalog) ResolveTask(ctx context.Context, name string) (*Task, error) {
	if t := c.cache.Get(name); t != nil {
		return t, nil
	}
	t, err := c.next.ResolveTask(ctx, name)
	if err != nil {
		return nil, err
	}
	c.cache.Set(t)
	cp := *t
	return &cp, nil
}

func (c *CachedCatalog) ResolveApplicationsByType(ctx context.Context, appType string) ([]Application, error) {
	return c.next.ResolveApplicationsByType(ctx, appType)
}

// Invalidate clears cached tasks.
func (c *CachedCatalog) Invalidate() {
	c.cache.Invalidate()
}

// IsNotFound reports whether err means the catalog has no such task.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}
