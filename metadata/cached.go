package metadata

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	d     Dataset
	found bool
}

// Cached memoises a Lookup. Misses are cached too; errors are not.
// Concurrent lookups of the same id share one call to the inner Lookup.
type Cached struct {
	inner Lookup
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCached wraps inner.
func NewCached(inner Lookup) *Cached {
	return &Cached{inner: inner, entries: make(map[string]cacheEntry)}
}

// Lookup implements Lookup.
func (c *Cached) Lookup(ctx context.Context, id string) (Dataset, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		return e.d, e.found, nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		d, found, err := c.inner.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		e := cacheEntry{d: d, found: found}
		c.mu.Lock()
		c.entries[id] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return Dataset{}, false, err
	}
	e = v.(cacheEntry)
	return e.d, e.found, nil
}

// Len returns the number of cached ids.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
