// Package store provides the search-indexed document stores that hold watch
// documents.
package store

import (
	"context"

	"github.com/pkg/errors"
)

// Write outcomes reported in WriteResult.Result.
const (
	ResultCreated  = "created"
	ResultUpdated  = "updated"
	ResultNoop     = "noop"
	ResultDeleted  = "deleted"
	ResultNotFound = "not_found"
)

var (
	// ErrNotFound is returned by Update when no document has the given id.
	ErrNotFound = errors.New("not found")

	// ErrDocumentExists is returned by Index when the id is already taken.
	ErrDocumentExists = errors.New("document already exists")
)

// Document is a stored JSON object.
type Document map[string]any

// Hit is one search match.
type Hit struct {
	ID     string   `json:"_id"`
	Source Document `json:"_source"`
}

// SearchResult holds the ordered matches of a search.
type SearchResult struct {
	Total int   `json:"total"`
	Hits  []Hit `json:"hits"`
}

// WriteResult describes the outcome of an index, update or delete.
type WriteResult struct {
	ID     string `json:"_id"`
	Result string `json:"result"`
	Found  bool   `json:"found"`
}

// DocumentStore is the search-indexed document store consumed by the API.
type DocumentStore interface {
	// Search returns the documents matching a query string built by the
	// query package.
	Search(ctx context.Context, q string) (*SearchResult, error)

	// Index stores a new document under id.
	Index(ctx context.Context, id string, doc Document) (*WriteResult, error)

	// Update merges partial into the document stored under id.
	Update(ctx context.Context, id string, partial Document) (*WriteResult, error)

	// Delete removes the document stored under id. A missing document is
	// reported with Found=false rather than an error.
	Delete(ctx context.Context, id string) (*WriteResult, error)
}
