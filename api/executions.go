package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/xraph/intake"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/id"
)

type statsResponse struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// terminalStatuses enumerates every pipeline outcome for stats aggregation.
var terminalStatuses = []intake.Status{
	intake.StatusValid,
	intake.StatusCreated,
	intake.StatusUpdated,
	intake.StatusRejectedAuth,
	intake.StatusRejectedRateLimit,
	intake.StatusRejectedInactive,
	intake.StatusMappingError,
	intake.StatusWriteError,
}

func (h *Handler) listExecutions(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	opts := execution.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
		Status: queryParam(r, "status"),
	}

	if v := queryParam(r, "from"); v != "" {
		from, parseErr := time.Parse(time.RFC3339, v)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid 'from' time format (use RFC3339)")
			return
		}
		opts.From = &from
	}

	if v := queryParam(r, "to"); v != "" {
		to, parseErr := time.Parse(time.RFC3339, v)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid 'to' time format (use RFC3339)")
			return
		}
		opts.To = &to
	}

	exes, listErr := h.executions.List(r.Context(), epID, opts)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, exes)
}

func (h *Handler) getExecution(w http.ResponseWriter, r *http.Request) {
	exeID, err := id.ParseExecutionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid execution ID")
		return
	}

	exe, getErr := h.executions.Get(r.Context(), exeID)
	if getErr != nil {
		if errors.Is(getErr, intake.ErrExecutionNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, exe)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	ctx := r.Context()

	total, countErr := h.executions.Count(ctx, epID, "")
	if countErr != nil {
		writeError(w, http.StatusInternalServerError, countErr.Error())
		return
	}

	byStatus := make(map[string]int64, len(terminalStatuses))
	for _, status := range terminalStatuses {
		n, statusErr := h.executions.Count(ctx, epID, string(status))
		if statusErr != nil {
			writeError(w, http.StatusInternalServerError, statusErr.Error())
			return
		}
		if n > 0 {
			byStatus[string(status)] = n
		}
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Total:    total,
		ByStatus: byStatus,
	})
}
