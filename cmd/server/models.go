package main

import "github.com/liamcoop/watches/watches"

// API request and response models

// WatchesListResponse is the response for listing watches
type WatchesListResponse struct {
	Watches []*watches.Watch `json:"watches"`
}

// MutationResponse reports the outcome of a create, update or delete
type MutationResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	ID      string         `json:"id,omitempty"`
	Watch   watches.Fields `json:"watch,omitempty"`
}

// ErrorResponse represents an error response. Reasons lists validation
// failures when the request was rejected as invalid.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Error  string `json:"error,omitempty"`
}
