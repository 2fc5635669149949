package postadmin

import (
	"context"
	"sync"
	"time"
)

// CategoryCache is an in-memory TTL cache in front of the category lookup.
// The form reads the category list on every render and every submission;
// categories change rarely and writes go through Invalidate.
type CategoryCache struct {
	mu         sync.RWMutex
	categories []Category
	fetched    time.Time
	ttl        time.Duration
	source     CategoryLookup
}

// NewCategoryCache creates a CategoryCache backed by source.
func NewCategoryCache(source CategoryLookup, ttl time.Duration) *CategoryCache {
	return &CategoryCache{source: source, ttl: ttl}
}

func (c *CategoryCache) valid() bool {
	return c.categories != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *CategoryCache) Invalidate() {
	c.mu.Lock()
	c.categories = nil
	c.mu.Unlock()
}

// ListCategories returns the cached list, reloading it when stale. It tries
// a read lock first and only takes the write lock to reload.
func (c *CategoryCache) ListCategories(ctx context.Context) ([]Category, error) {
	c.mu.RLock()
	if c.valid() {
		categories := c.categories
		c.mu.RUnlock()
		return categories, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.categories, nil
	}
	categories, err := c.source.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []Category{}
	}
	c.categories = categories
	c.fetched = time.Now()
	return categories, nil
}

// categoryExists reports whether id is in the cached list.
func categoryExists(categories []Category, id int64) bool {
	for _, c := range categories {
		if c.ID == id {
			return true
		}
	}
	return false
}
