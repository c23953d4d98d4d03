package store

import "context"

// CachedStore wraps a DocumentStore and serves repeated searches from a
// SearchCache. Every write invalidates the cache, including failed ones.
// A search that raced with a write is returned but not cached.
type CachedStore struct {
	next  DocumentStore
	cache SearchCache
}

// NewCachedStore creates a caching decorator around next.
func NewCachedStore(next DocumentStore, cache SearchCache) *CachedStore {
	return &CachedStore{next: next, cache: cache}
}

func (s *CachedStore) Search(ctx context.Context, q string) (*SearchResult, error) {
	result, gen, ok := s.cache.Get(ctx, q)
	if ok {
		return result, nil
	}

	result, err := s.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, q, gen, result)
	return result, nil
}

func (s *CachedStore) Index(ctx context.Context, id string, doc Document) (*WriteResult, error) {
	defer s.cache.Invalidate(ctx)
	return s.next.Index(ctx, id, doc)
}

func (s *CachedStore) Update(ctx context.Context, id string, partial Document) (*WriteResult, error) {
	defer s.cache.Invalidate(ctx)
	return s.next.Update(ctx, id, partial)
}

func (s *CachedStore) Delete(ctx context.Context, id string) (*WriteResult, error) {
	defer s.cache.Invalidate(ctx)
	return s.next.Delete(ctx, id)
}
