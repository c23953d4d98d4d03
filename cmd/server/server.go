package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/watches/gateway"
	"github.com/liamcoop/watches/graphql"
	"github.com/liamcoop/watches/internal/config"
	"github.com/liamcoop/watches/internal/identity"
	"github.com/liamcoop/watches/internal/logger"
	"github.com/liamcoop/watches/internal/metrics"
	"github.com/liamcoop/watches/query"
	"github.com/liamcoop/watches/service"
	"github.com/liamcoop/watches/store"
	"github.com/liamcoop/watches/validation"
	"github.com/liamcoop/watches/watches"
)

const (
	watchesPath = "/api/v1/alerts/watches"
	graphqlPath = "/api/v1/alerts-graphql"

	// actionFilterPrefix marks list query parameters that filter on actions.
	actionFilterPrefix = "action."
)

type Server struct {
	db      *sql.DB
	backend string
	svc     *service.Service
	metrics *metrics.Metrics
	graphql http.Handler
	router  *chi.Mux
}

// NewServer wires the service stack over docs. db is only used for health
// checks and may be nil.
func NewServer(cfg *config.Config, docs store.DocumentStore, db *sql.DB) (*Server, error) {
	m, err := metrics.New()
	if err != nil {
		return nil, err
	}

	gw := gateway.New(docs, gateway.WithObserver(m))
	svc := service.New(validation.NewValidator(docs), gw, m)

	schema, err := graphql.LoadSchema()
	if err != nil {
		return nil, err
	}
	exec := graphql.NewExecutor(schema, graphql.NewResolver(svc))

	s := &Server{
		db:      db,
		backend: cfg.Store.Backend,
		svc:     svc,
		metrics: m,
		graphql: graphql.NewHandler(exec, graphqlPath, cfg.GraphQL.Playground),
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware)

		r.Route(watchesPath, func(r chi.Router) {
			r.Get("/", s.handleListWatches)
			r.Post("/", s.handleCreateWatch)

			r.Get("/{watchId}", s.handleGetWatch)
			r.Put("/{watchId}", s.handleUpdateWatch)
			r.Delete("/{watchId}", s.handleDeleteWatch)
		})

		r.Handle(graphqlPath, s.graphql)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unhealthy",
				Store:  s.backend,
				Error:  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Store: s.backend})
}

// List watches handler. Query parameters filter the watch fields, those
// prefixed with "action." filter the actions.
func (s *Server) handleListWatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	base := map[string]any{}
	actions := map[string]any{}
	for key, values := range r.URL.Query() {
		var value any = values[0]
		if len(values) > 1 {
			list := make([]any, len(values))
			for i, v := range values {
				list[i] = v
			}
			value = list
		}

		if name, isAction := strings.CutPrefix(key, actionFilterPrefix); isAction {
			actions[name] = value
			continue
		}
		base[key] = value
	}

	list, err := s.svc.List(r.Context(), userID, query.FiltersFromMap(base), query.FiltersFromMap(actions))
	if err != nil {
		respondServiceError(w, "could not retrieve watches", err)
		return
	}

	resp := WatchesListResponse{Watches: make([]*watches.Watch, 0, len(list))}
	for _, fields := range list {
		watch, err := watches.Decode(fields)
		if err != nil {
			respondServiceError(w, "stored watch is malformed", err)
			return
		}
		resp.Watches = append(resp.Watches, watch)
	}

	respondJSON(w, http.StatusOK, resp)
}

// Get watch handler
func (s *Server) handleGetWatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	watchID := chi.URLParam(r, "watchId")

	fields, err := s.svc.Get(r.Context(), userID, watchID)
	if err != nil {
		respondServiceError(w, "could not retrieve watch", err)
		return
	}

	watch, err := watches.Decode(fields)
	if err != nil {
		respondServiceError(w, "stored watch is malformed", err)
		return
	}

	respondJSON(w, http.StatusOK, watch)
}

// Create watch handler
func (s *Server) handleCreateWatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}

	res, err := s.svc.Create(r.Context(), userID, fields)
	if err != nil {
		respondServiceError(w, "a new watch could not be created", err)
		return
	}

	respondMutation(w, http.StatusCreated, "invalid fields in new watch", res)
}

// Update watch handler
func (s *Server) handleUpdateWatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	watchID := chi.URLParam(r, "watchId")

	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}

	res, err := s.svc.Update(r.Context(), userID, watchID, fields)
	if err != nil {
		respondServiceError(w, "watch could not be updated", err)
		return
	}

	respondMutation(w, http.StatusOK, "invalid fields in updated watch", res)
}

// Delete watch handler
func (s *Server) handleDeleteWatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	watchID := chi.URLParam(r, "watchId")

	res, err := s.svc.Delete(r.Context(), userID, watchID)
	if err != nil {
		respondServiceError(w, "watch could not be deleted", err)
		return
	}
	if !res.Success {
		respondError(w, http.StatusNotFound, res.Message, nil)
		return
	}

	respondJSON(w, http.StatusOK, toMutationResponse(res))
}

// Helper functions
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := identity.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing "+identity.Header+" header", nil)
		return "", false
	}
	return userID, true
}

func decodeFields(w http.ResponseWriter, r *http.Request) (watches.Fields, bool) {
	var fields watches.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return nil, false
	}
	if fields == nil {
		respondError(w, http.StatusBadRequest, "request body must be a JSON object", nil)
		return nil, false
	}
	return fields, true
}

func toMutationResponse(res *service.MutationResult) MutationResponse {
	return MutationResponse{
		Success: res.Success,
		Message: res.Message,
		ID:      res.ID,
		Watch:   res.Watch,
	}
}

func respondMutation(w http.ResponseWriter, status int, invalidMessage string, res *service.MutationResult) {
	switch {
	case res.Invalid():
		logger.WarnHttp4xx(http.StatusBadRequest)
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   invalidMessage,
			Reasons: res.Reasons,
		})
	case !res.Success:
		respondError(w, http.StatusInternalServerError, res.Message, nil)
	default:
		respondJSON(w, status, toMutationResponse(res))
	}
}

// respondServiceError maps service errors to statuses: unknown watches are
// 404, everything else is a server error.
func respondServiceError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, service.ErrNotFound) {
		respondError(w, http.StatusNotFound, "watch not found", err)
		return
	}

	logger.Error(message, "error", err)
	respondError(w, http.StatusInternalServerError, message, err)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	switch {
	case status >= 500:
		logger.ErrorHttp5xx()
	case status >= 400:
		logger.WarnHttp4xx(status)
	}

	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}
