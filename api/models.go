package api

import (
	"errors"
	"net/http"

	"github.com/xraph/intake"
	"github.com/xraph/intake/schema"
)

type registerModelRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Fields      []schema.Field    `json:"fields"`
	ScopeAppID  string            `json:"scope_app_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (h *Handler) registerModel(w http.ResponseWriter, r *http.Request) {
	var req registerModelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	def := schema.Definition{
		Name:        req.Name,
		Description: req.Description,
		Fields:      req.Fields,
	}

	var opts []schema.RegisterOption
	if req.ScopeAppID != "" {
		opts = append(opts, schema.WithScopeAppID(req.ScopeAppID))
	}
	if req.Metadata != nil {
		opts = append(opts, schema.WithMetadata(req.Metadata))
	}

	m, err := h.models.Register(r.Context(), def, opts...)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	opts := schema.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	models, err := h.models.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models)
}

func (h *Handler) getModel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	m, err := h.models.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, intake.ErrModelNotFound) {
			writeError(w, http.StatusNotFound, "model not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) deleteModel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	err := h.models.Delete(r.Context(), name)
	if err != nil {
		if errors.Is(err, intake.ErrModelNotFound) {
			writeError(w, http.StatusNotFound, "model not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
