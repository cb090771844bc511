package services

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"pricewatch/models"
)

// CachedPipeline memoizes reports per (snapshot, query). A new snapshot has a
// new ID, so stale entries are never hit and age out of the LRU. Cached
// reports are shared between callers and must be treated as read-only.
type CachedPipeline struct {
	inner Runner
	cache *lru.Cache[string, *models.Report]
}

// NewCachedPipeline wraps inner with an LRU of the given size.
func NewCachedPipeline(inner Runner, size int) (*CachedPipeline, error) {
	cache, err := lru.New[string, *models.Report](size)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &CachedPipeline{inner: inner, cache: cache}, nil
}

// Run returns the cached report for (snap, q), computing it on a miss.
// Errors are not cached.
func (c *CachedPipeline) Run(snap *models.Snapshot, q Query) (*models.Report, error) {
	if snap == nil {
		return c.inner.Run(snap, q)
	}
	key := snap.ID.String() + "#" + q.Key()
	if r, ok := c.cache.Get(key); ok {
		return r, nil
	}
	r, err := c.inner.Run(snap, q)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, r)
	return r, nil
}

// Len returns the number of cached reports.
func (c *CachedPipeline) Len() int { return c.cache.Len() }
