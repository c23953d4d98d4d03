package store

import (
	"context"
	"reflect"
	"sync"

	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"
)

// MemoryStore implements DocumentStore using an in-memory map. Search
// results are returned in insertion order.
type MemoryStore struct {
	docs    map[string]Document
	order   []string
	matcher *QueryMatcher
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() (*MemoryStore, error) {
	matcher, err := NewQueryMatcher()
	if err != nil {
		return nil, err
	}
	return &MemoryStore{
		docs:    make(map[string]Document),
		matcher: matcher,
	}, nil
}

// Search evaluates q against every stored document.
func (s *MemoryStore) Search(ctx context.Context, q string) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// compile outside the lock so a bad query fails fast
	cq, err := s.matcher.Compile(q)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := &SearchResult{Hits: []Hit{}}
	for _, id := range s.order {
		doc := s.docs[id]
		matched, err := cq.Match(id, doc)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		cp, err := copyDocument(doc)
		if err != nil {
			return nil, err
		}
		result.Hits = append(result.Hits, Hit{ID: id, Source: cp})
	}
	result.Total = len(result.Hits)
	return result, nil
}

// Index stores doc under id. The id must not be in use.
func (s *MemoryStore) Index(ctx context.Context, id string, doc Document) (*WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cp, err := copyDocument(doc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; exists {
		return nil, errors.Wrapf(ErrDocumentExists, "document %s", id)
	}
	s.docs[id] = cp
	s.order = append(s.order, id)

	return &WriteResult{ID: id, Result: ResultCreated, Found: false}, nil
}

// Update merges partial into the stored document. Top-level keys of partial
// replace the stored values.
func (s *MemoryStore) Update(ctx context.Context, id string, partial Document) (*WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cp, err := copyDocument(partial)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "document %s", id)
	}

	merged, err := copyDocument(existing)
	if err != nil {
		return nil, err
	}
	for k, v := range cp {
		merged[k] = v
	}

	result := ResultUpdated
	if reflect.DeepEqual(existing, merged) {
		result = ResultNoop
	}
	s.docs[id] = merged

	return &WriteResult{ID: id, Result: result, Found: true}, nil
}

// Delete removes the document stored under id.
func (s *MemoryStore) Delete(ctx context.Context, id string) (*WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return &WriteResult{ID: id, Result: ResultNotFound, Found: false}, nil
	}

	delete(s.docs, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return &WriteResult{ID: id, Result: ResultDeleted, Found: true}, nil
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func copyDocument(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	cp, err := copystructure.Copy(map[string]any(doc))
	if err != nil {
		return nil, errors.Wrap(err, "copy document")
	}
	return Document(cp.(map[string]any)), nil
}
