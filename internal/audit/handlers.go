package audit

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
)

// Handler exposes the audit trail to administrators.
type Handler struct {
	Recorder *Recorder
}

// Routes mounts the audit endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
}

// List returns audit entries, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	offset := 0
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o > 0 {
		offset = o
	}
	var actorID *uuid.UUID
	if raw := r.URL.Query().Get("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid actor_id", nil)
			return
		}
		actorID = &id
	}

	entries, err := h.Recorder.List(r.Context(), actorID, limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	common.JSON(w, http.StatusOK, entries)
}
