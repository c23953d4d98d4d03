package store

import (
	"context"
	"sync"
	"time"
)

type cachedSearch struct {
	result   *SearchResult
	cachedAt time.Time
}

// InMemorySearchCache is a simple in-memory implementation of SearchCache
// Thread-safe for concurrent access
type InMemorySearchCache struct {
	entries    map[string]cachedSearch
	generation Generation
	config     CacheConfig
	mu         sync.RWMutex
}

// NewInMemorySearchCache creates a new in-memory search cache
func NewInMemorySearchCache(config CacheConfig) *InMemorySearchCache {
	return &InMemorySearchCache{
		entries: make(map[string]cachedSearch),
		config:  config,
	}
}

// Get retrieves a cached result
// Returns false if the entry is missing or expired; expired entries are evicted
func (c *InMemorySearchCache) Get(_ context.Context, q string) (*SearchResult, Generation, bool) {
	c.mu.RLock()
	entry, ok := c.entries[q]
	gen := c.generation
	c.mu.RUnlock()

	if !ok {
		return nil, gen, false
	}

	if c.expired(entry) {
		c.mu.Lock()
		if current, ok := c.entries[q]; ok && c.expired(current) {
			delete(c.entries, q)
		}
		c.mu.Unlock()
		return nil, gen, false
	}

	// Return copy to prevent external modifications
	return copyResult(entry.result), gen, true
}

func (c *InMemorySearchCache) expired(entry cachedSearch) bool {
	return c.config.TTL > 0 && time.Since(entry.cachedAt) > c.config.TTL
}

// Set stores a result in cache
// The result is dropped when an invalidation happened after gen was read
func (c *InMemorySearchCache) Set(_ context.Context, q string, gen Generation, result *SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	c.entries[q] = cachedSearch{
		result:   copyResult(result),
		cachedAt: time.Now(),
	}
}

// Invalidate clears the cache
func (c *InMemorySearchCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.entries = make(map[string]cachedSearch)
}

func copyResult(r *SearchResult) *SearchResult {
	if r == nil {
		return nil
	}
	out := &SearchResult{Total: r.Total, Hits: make([]Hit, len(r.Hits))}
	for i, h := range r.Hits {
		src, err := copyDocument(h.Source)
		if err != nil {
			src = h.Source
		}
		out.Hits[i] = Hit{ID: h.ID, Source: src}
	}
	return out
}
