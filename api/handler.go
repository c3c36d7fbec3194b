// Package api provides the HTTP surface for intake: the public webhook
// receiver plus the admin API for endpoint and model management.
//
// All routes are mounted under a configurable prefix (default: /api/v1/webhooks).
// The receiver route is the only one meant for external callers; admin routes
// assume owner authentication upstream.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/xraph/intake"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/schema"
)

// Handler is the root HTTP handler for the intake API.
type Handler struct {
	engine      *intake.Engine
	models      *schema.Catalog
	endpointSvc *endpoint.Service
	executions  *execution.Service
	logger      *slog.Logger
	mux         *http.ServeMux
}

// NewHandler creates a new API handler around an engine.
func NewHandler(engine *intake.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		engine:      engine,
		models:      engine.Models(),
		endpointSvc: engine.Endpoints(),
		executions:  engine.Executions(),
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Inbound receiver
	h.mux.HandleFunc("POST /in/{slug}", h.receive)

	// Models
	h.mux.HandleFunc("POST /models", h.registerModel)
	h.mux.HandleFunc("GET /models", h.listModels)
	h.mux.HandleFunc("GET /models/{name}", h.getModel)
	h.mux.HandleFunc("DELETE /models/{name}", h.deleteModel)

	// Endpoints
	h.mux.HandleFunc("POST /endpoints", h.createEndpoint)
	h.mux.HandleFunc("GET /endpoints", h.listEndpoints)
	h.mux.HandleFunc("GET /endpoints/{id}", h.getEndpoint)
	h.mux.HandleFunc("PUT /endpoints/{id}", h.updateEndpoint)
	h.mux.HandleFunc("DELETE /endpoints/{id}", h.deleteEndpoint)
	h.mux.HandleFunc("PATCH /endpoints/{id}/activate", h.activateEndpoint)
	h.mux.HandleFunc("PATCH /endpoints/{id}/deactivate", h.deactivateEndpoint)
	h.mux.HandleFunc("POST /endpoints/{id}/rotate-credential", h.rotateCredential)
	h.mux.HandleFunc("POST /endpoints/{id}/test", h.testEndpoint)

	// Executions
	h.mux.HandleFunc("GET /endpoints/{id}/executions", h.listExecutions)
	h.mux.HandleFunc("GET /endpoints/{id}/stats", h.getStats)
	h.mux.HandleFunc("GET /executions/{id}", h.getExecution)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	var n int
	for _, c := range v {
		if c < '0' || c > '9' {
			return defaultVal
		}
		n = n*10 + int(c-'0')
	}
	return n
}
