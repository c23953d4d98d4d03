// Package service runs the validate-then-persist flow shared by the REST
// and GraphQL surfaces.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/liamcoop/watches/gateway"
	"github.com/liamcoop/watches/internal/logger"
	"github.com/liamcoop/watches/query"
	"github.com/liamcoop/watches/store"
	"github.com/liamcoop/watches/validation"
	"github.com/liamcoop/watches/watches"
)

// ErrNotFound is returned when a watch does not exist or belongs to another
// owner.
var ErrNotFound = gateway.ErrNotFound

// Validator checks a field set before it is written.
type Validator interface {
	Validate(ctx context.Context, fields watches.Fields, isNew bool) validation.Result
}

// Recorder receives validation verdicts.
type Recorder interface {
	ObserveValidation(isNew, valid bool, reasons int)
}

type noopRecorder struct{}

func (noopRecorder) ObserveValidation(bool, bool, int) {}

// MutationResult is the outcome of a create, update or delete. Validation
// failures are reported here, not as errors.
type MutationResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	ID      string         `json:"id,omitempty"`
	Reasons []string       `json:"reasons,omitempty"`
	Watch   watches.Fields `json:"watch,omitempty"`
}

// Invalid reports whether the mutation was rejected by validation.
func (r *MutationResult) Invalid() bool {
	return !r.Success && len(r.Reasons) > 0
}

// Service exposes the watch operations of the API.
type Service struct {
	validator Validator
	gateway   *gateway.Gateway
	recorder  Recorder
}

// New creates a Service. recorder may be nil.
func New(validator Validator, gw *gateway.Gateway, recorder Recorder) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		validator: validator,
		gateway:   gw,
		recorder:  recorder,
	}
}

// List returns the owner's watches matching base and action filters, in
// store order.
func (s *Service) List(ctx context.Context, userID string, base, actions query.Filters) ([]watches.Fields, error) {
	q := query.Build(query.Identity(userID), base, actions)
	logger.Debug("searching watches", "query", q)

	hits, err := s.gateway.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]watches.Fields, 0, len(hits))
	for _, hit := range hits {
		out = append(out, project(hit))
	}
	return out, nil
}

// Get returns a single watch of the owner.
func (s *Service) Get(ctx context.Context, userID, id string) (watches.Fields, error) {
	found, err := s.List(ctx, userID, query.Filters{{Field: watches.FieldID, Value: id}}, nil)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return found[0], nil
}

// Create validates fields as a new watch of userID and stores it.
func (s *Service) Create(ctx context.Context, userID string, fields watches.Fields) (*MutationResult, error) {
	input := fields.Clone()
	delete(input, watches.FieldID)
	delete(input, watches.FieldUUID)
	input[watches.FieldUserID] = userID

	normalized, err := validation.Normalize(input)
	if err != nil {
		return nil, err
	}

	if invalid := s.validate(ctx, normalized, true); invalid != nil {
		return invalid, nil
	}

	res, err := s.gateway.Create(ctx, normalized)
	if err != nil {
		logger.Error("failed to create watch", "user_id", userID, "error", err)
		return nil, err
	}
	if !res.Success {
		return &MutationResult{Success: false, Message: "New watch was not created"}, nil
	}

	watch := normalized.Clone()
	watch[watches.FieldID] = res.CreatedID
	watch[watches.FieldUUID] = res.CreatedID
	logger.Info("watch created", "id", res.CreatedID, "user_id", userID)

	return &MutationResult{
		Success: true,
		Message: fmt.Sprintf("New watch with id %s was created", res.CreatedID),
		ID:      res.CreatedID,
		Watch:   watch,
	}, nil
}

// Update merges partial over the stored watch, validates the merged result
// and writes the partial fields.
func (s *Service) Update(ctx context.Context, userID, id string, partial watches.Fields) (*MutationResult, error) {
	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	changes := partial.Clone()
	delete(changes, watches.FieldID)
	delete(changes, watches.FieldUUID)
	changes[watches.FieldUserID] = userID

	merged := existing.Clone()
	for k, v := range changes {
		merged[k] = v
	}

	normalized, err := validation.Normalize(merged)
	if err != nil {
		return nil, err
	}

	if invalid := s.validate(ctx, normalized, false); invalid != nil {
		invalid.ID = id
		return invalid, nil
	}

	// defaults applied by Normalize are written along with the changes
	for _, key := range []string{watches.FieldIncludeRecord, watches.FieldRecordFields} {
		if _, ok := existing[key]; !ok {
			changes[key] = normalized[key]
		}
	}

	res, err := s.gateway.Update(ctx, id, changes)
	if err != nil {
		logger.Error("failed to update watch", "id", id, "error", err)
		return nil, err
	}
	if !res.Success {
		return &MutationResult{Success: false, ID: id, Message: fmt.Sprintf("Watch %s was not updated", id)}, nil
	}

	normalized[watches.FieldID] = id
	logger.Info("watch updated", "id", id, "user_id", userID)

	return &MutationResult{
		Success: true,
		Message: fmt.Sprintf("Watch %s was updated", id),
		ID:      id,
		Watch:   normalized,
	}, nil
}

// Delete removes a watch of the owner. A watch that vanished between the
// ownership check and the delete is reported as an unsuccessful result.
func (s *Service) Delete(ctx context.Context, userID, id string) (*MutationResult, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	res, err := s.gateway.Delete(ctx, id)
	if err != nil {
		logger.Error("failed to delete watch", "id", id, "error", err)
		return nil, err
	}
	if !res.Found || !res.Success {
		return &MutationResult{Success: false, ID: id, Message: fmt.Sprintf("Watch %s could not be deleted", id)}, nil
	}

	logger.Info("watch deleted", "id", id, "user_id", userID)
	return &MutationResult{
		Success: true,
		Message: fmt.Sprintf("Watch %s was deleted", id),
		ID:      id,
	}, nil
}

// validate returns a failed MutationResult, or nil when fields are valid.
func (s *Service) validate(ctx context.Context, fields watches.Fields, isNew bool) *MutationResult {
	result := s.validator.Validate(ctx, fields, isNew)
	s.recorder.ObserveValidation(isNew, result.IsValid, len(result.InvalidReasons))
	if result.IsValid {
		return nil
	}

	logger.Debug("watch rejected", "reasons", result.InvalidReasons)
	return &MutationResult{
		Success: false,
		Message: strings.Join(result.InvalidReasons, ", "),
		Reasons: result.InvalidReasons,
	}
}

// project turns a search hit into the public watch shape: the stored body
// plus the store identifier as id.
func project(hit store.Hit) watches.Fields {
	out := make(watches.Fields, len(hit.Source)+1)
	for k, v := range hit.Source {
		out[k] = v
	}
	out[watches.FieldID] = hit.ID
	return out
}
