package graphql

import (
	"encoding/json"
	"net/http"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/liamcoop/watches/internal/logger"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Handler serves GraphQL over HTTP: POST with a JSON body, or GET with
// query parameters for queries. A GET without a query serves the
// playground when enabled.
type Handler struct {
	exec       *Executor
	playground http.Handler
}

// NewHandler creates a Handler. endpoint is the public path of the handler,
// used by the playground.
func NewHandler(exec *Executor, endpoint string, enablePlayground bool) *Handler {
	h := &Handler{exec: exec}
	if enablePlayground {
		h.playground = playground.Handler("Watches GraphQL", endpoint)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request

	switch r.Method {
	case http.MethodGet:
		params := r.URL.Query()
		if params.Get("query") == "" {
			if h.playground != nil {
				h.playground.ServeHTTP(w, r)
				return
			}
			writeResponse(w, http.StatusBadRequest, &Response{Errors: gqlerror.List{requestError("query parameter is required")}})
			return
		}
		req.Query = params.Get("query")
		req.OperationName = params.Get("operationName")
		if raw := params.Get("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
				writeResponse(w, http.StatusBadRequest, &Response{Errors: gqlerror.List{requestError("variables must be a JSON object")}})
				return
			}
		}
		req.queryOnly = true

	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeResponse(w, http.StatusBadRequest, &Response{Errors: gqlerror.List{requestError("invalid request body")}})
			return
		}

	default:
		w.Header().Set("Allow", "GET, POST")
		writeResponse(w, http.StatusMethodNotAllowed, &Response{Errors: gqlerror.List{requestError("method not allowed")}})
		return
	}

	resp := h.exec.Execute(r.Context(), req)

	status := http.StatusOK
	if resp.Data == nil {
		status = http.StatusBadRequest
		logger.WarnHttp4xx(status)
	}
	writeResponse(w, status, resp)
}

func writeResponse(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode graphql response", "error", err)
	}
}
