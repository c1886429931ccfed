package notify

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
)

// Handler exposes the caller's notifications over HTTP.
type Handler struct {
	Store *Store
}

// Routes mounts the notification endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{notificationID}/read", h.MarkRead)
	r.Post("/read-all", h.MarkAllRead)
}

func callerID(r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

// List returns the caller's notifications with an unread count in meta.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	list, unread, err := h.Store.ListForUser(r.Context(), userID, page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, common.Envelope{
		Data: list,
		Meta: map[string]any{"page": page, "per_page": perPage, "unread": unread},
	})
}

// MarkRead marks one notification as read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid notification id", nil)
		return
	}
	if err := h.Store.MarkRead(r.Context(), userID, id); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]string{"id": id.String()}, "notification read")
}

// MarkAllRead marks every unread notification as read.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	count, err := h.Store.MarkAllRead(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]int64{"marked": count}, "all notifications read")
}
