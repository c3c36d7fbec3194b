package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/xraph/intake"
)

// receive is the public webhook receiver: POST /in/{slug}.
//
// The response status follows the pipeline outcome; the body is the Result
// JSON, redacted for external callers.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	res, err := h.engine.Ingest(r.Context(), slug, intake.Request{
		Body:      body,
		APIKey:    r.Header.Get("X-API-Key"),
		Signature: r.Header.Get("X-Signature"),
	})
	if err != nil {
		if errors.Is(err, intake.ErrEndpointNotFound) {
			writeError(w, http.StatusNotFound, "unknown endpoint")
			return
		}
		h.logger.Error("endpoint resolution failed", "slug", slug, "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}

	writeJSON(w, statusCode(res.Status), externalResult(res))
}

// statusCode maps a terminal pipeline status to its HTTP status.
func statusCode(s intake.Status) int {
	switch s {
	case intake.StatusCreated, intake.StatusUpdated, intake.StatusValid:
		return http.StatusOK
	case intake.StatusRejectedAuth:
		return http.StatusUnauthorized
	case intake.StatusRejectedInactive:
		return http.StatusForbidden
	case intake.StatusRejectedRateLimit:
		return http.StatusTooManyRequests
	case intake.StatusMappingError, intake.StatusWriteError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// externalResult redacts a pipeline result for the sending system. Processing
// failures keep their status but lose the per-field detail; that detail stays
// in the execution log and the owner-facing test operation.
func externalResult(res *intake.Result) *intake.Result {
	out := &intake.Result{
		Status:  res.Status,
		Message: res.Message,
	}

	switch res.Status {
	case intake.StatusCreated, intake.StatusUpdated:
		out.ObjectID = res.ObjectID
	case intake.StatusMappingError:
		out.Message = "payload could not be mapped"
	case intake.StatusWriteError:
		out.Message = "payload could not be processed"
	}

	return out
}
