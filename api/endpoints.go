package api

import (
	"errors"
	"net/http"

	"github.com/xraph/intake"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/id"
)

type testEndpointRequest struct {
	Payload map[string]any `json:"payload"`
	DryRun  bool           `json:"dry_run,omitempty"`
}

func (h *Handler) createEndpoint(w http.ResponseWriter, r *http.Request) {
	var in endpoint.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ep, err := h.endpointSvc.Create(r.Context(), in)
	if err != nil {
		h.writeEndpointError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ep)
}

func (h *Handler) listEndpoints(w http.ResponseWriter, r *http.Request) {
	opts := endpoint.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	switch queryParam(r, "active") {
	case "true":
		active := true
		opts.Active = &active
	case "false":
		active := false
		opts.Active = &active
	}

	eps, err := h.endpointSvc.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, eps)
}

func (h *Handler) getEndpoint(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	ep, getErr := h.endpointSvc.Get(r.Context(), epID)
	if getErr != nil {
		h.writeEndpointError(w, getErr)
		return
	}

	writeJSON(w, http.StatusOK, ep)
}

func (h *Handler) updateEndpoint(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	var in endpoint.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ep, updateErr := h.endpointSvc.Update(r.Context(), epID, in)
	if updateErr != nil {
		h.writeEndpointError(w, updateErr)
		return
	}

	writeJSON(w, http.StatusOK, ep)
}

func (h *Handler) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	if deleteErr := h.endpointSvc.Delete(r.Context(), epID); deleteErr != nil {
		h.writeEndpointError(w, deleteErr)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) activateEndpoint(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) deactivateEndpoint(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	if setErr := h.endpointSvc.SetActive(r.Context(), epID, active); setErr != nil {
		h.writeEndpointError(w, setErr)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rotateCredential(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	// The plaintext is handed out exactly once. It is never retrievable
	// through any other route.
	credential, rotateErr := h.endpointSvc.RotateCredential(r.Context(), epID)
	if rotateErr != nil {
		h.writeEndpointError(w, rotateErr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"credential": credential})
}

func (h *Handler) testEndpoint(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	var req testEndpointRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Owner-facing: the full result comes back, mapping errors included.
	res, testErr := h.engine.Test(r.Context(), epID, req.Payload, req.DryRun)
	if testErr != nil {
		h.writeEndpointError(w, testErr)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// writeEndpointError maps endpoint service errors to HTTP responses.
func (h *Handler) writeEndpointError(w http.ResponseWriter, err error) {
	var vErr *endpoint.ValidationError

	switch {
	case errors.Is(err, intake.ErrEndpointNotFound):
		writeError(w, http.StatusNotFound, "endpoint not found")
	case errors.Is(err, intake.ErrSlugTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
