// Package gateway translates validated watch field sets into document store
// operations and normalizes the store's responses into outcomes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liamcoop/watches/store"
	"github.com/liamcoop/watches/watches"
)

// ErrNotFound is returned when an update addresses a watch that does not
// exist.
var ErrNotFound = errors.New("watch not found")

// StoreError is a failure talking to the document store. It is never
// retried.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Observer receives the outcome and latency of every store operation.
type Observer interface {
	ObserveStoreOperation(op, outcome string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveStoreOperation(string, string, time.Duration) {}

// CreateResult is the outcome of Create.
type CreateResult struct {
	CreatedID string `json:"createdId"`
	Success   bool   `json:"success"`
}

// UpdateResult is the outcome of Update.
type UpdateResult struct {
	Success bool `json:"success"`
}

// DeleteResult is the outcome of Delete. Found is false when no watch had
// the requested id.
type DeleteResult struct {
	Success bool `json:"success"`
	Found   bool `json:"found"`
}

// Gateway performs watch writes and reads against a DocumentStore.
type Gateway struct {
	store    store.DocumentStore
	newID    func() string
	observer Observer
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithIDGenerator replaces the UUID generator used by Create.
func WithIDGenerator(fn func() string) Option {
	return func(g *Gateway) {
		g.newID = fn
	}
}

// WithObserver reports store operations to o.
func WithObserver(o Observer) Option {
	return func(g *Gateway) {
		if o != nil {
			g.observer = o
		}
	}
}

// New creates a Gateway over s.
func New(s store.DocumentStore, opts ...Option) *Gateway {
	g := &Gateway{
		store:    s,
		newID:    uuid.NewString,
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Create stores fields as a new watch under a freshly minted id. The id is
// also written into the body as uuid.
func (g *Gateway) Create(ctx context.Context, fields watches.Fields) (*CreateResult, error) {
	id := g.newID()
	body := store.Document(fields.Clone())
	body[watches.FieldUUID] = id

	start := time.Now()
	res, err := g.store.Index(ctx, id, body)
	if err != nil {
		g.observer.ObserveStoreOperation("create", "error", time.Since(start))
		return nil, &StoreError{Op: "create", Err: err}
	}

	success := res.Result == store.ResultCreated
	g.observer.ObserveStoreOperation("create", outcome(success), time.Since(start))
	return &CreateResult{CreatedID: res.ID, Success: success}, nil
}

// Update merges fields into the watch stored under id. Identifier fields
// are stripped from the partial document.
func (g *Gateway) Update(ctx context.Context, id string, fields watches.Fields) (*UpdateResult, error) {
	partial := store.Document(fields.Clone())
	delete(partial, watches.FieldID)
	delete(partial, watches.FieldUUID)

	start := time.Now()
	res, err := g.store.Update(ctx, id, partial)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.observer.ObserveStoreOperation("update", "not_found", time.Since(start))
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		g.observer.ObserveStoreOperation("update", "error", time.Since(start))
		return nil, &StoreError{Op: "update", Err: err}
	}

	success := res.Result == store.ResultUpdated || res.Result == store.ResultNoop
	g.observer.ObserveStoreOperation("update", outcome(success), time.Since(start))
	return &UpdateResult{Success: success}, nil
}

// Delete removes the watch stored under id. A missing watch is reported as
// Found=false, not as an error.
func (g *Gateway) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	start := time.Now()
	res, err := g.store.Delete(ctx, id)
	if err != nil {
		g.observer.ObserveStoreOperation("delete", "error", time.Since(start))
		return nil, &StoreError{Op: "delete", Err: err}
	}

	if !res.Found {
		g.observer.ObserveStoreOperation("delete", "not_found", time.Since(start))
		return &DeleteResult{Success: false, Found: false}, nil
	}

	success := res.Result == store.ResultDeleted
	g.observer.ObserveStoreOperation("delete", outcome(success), time.Since(start))
	return &DeleteResult{Success: success, Found: true}, nil
}

// Search returns the raw hits for a query built by the query package.
func (g *Gateway) Search(ctx context.Context, q string) ([]store.Hit, error) {
	start := time.Now()
	res, err := g.store.Search(ctx, q)
	if err != nil {
		g.observer.ObserveStoreOperation("search", "error", time.Since(start))
		return nil, &StoreError{Op: "search", Err: err}
	}

	g.observer.ObserveStoreOperation("search", "success", time.Since(start))
	return res.Hits, nil
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
