package store

import (
	"context"
	"time"
)

// Generation identifies the cache contents a lookup observed. A negative
// generation means the cache could not tell, and Set ignores it.
type Generation int64

// SearchCache caches search results keyed by query string.
// This allows swapping between in-memory, Redis, or other caching implementations
type SearchCache interface {
	// Get returns the cached result for q, or false on a miss. The returned
	// generation must be handed to Set when the miss is filled.
	Get(ctx context.Context, q string) (*SearchResult, Generation, bool)

	// Set stores the result for q unless the cache was invalidated after gen
	// was read
	Set(ctx context.Context, q string, gen Generation, result *SearchResult)

	// Invalidate drops every cached result
	Invalidate(ctx context.Context)
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration

	// KeyPrefix namespaces keys in shared backends such as Redis
	KeyPrefix string
}

// DefaultCacheConfig returns sensible defaults for search caching
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:       30 * time.Second,
		KeyPrefix: "watches:search:",
	}
}
