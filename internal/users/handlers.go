package users

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
)

// Handler exposes profile and account management endpoints.
type Handler struct {
	Svc *Service
}

// MeRoutes mounts the self-service endpoints under /users/me.
func (h *Handler) MeRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Get("/", h.Me)
	r.Put("/", h.UpdateProfile)
}

// AdminRoutes mounts the account management endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{userID}", h.Get)
	r.Patch("/{userID}/role", h.SetRole)
	r.Patch("/{userID}/status", h.SetStatus)
}

func caller(r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

// Register ensures a profile row exists for the authenticated caller. The
// email comes from the verified token, not the body.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	email, _ := common.UserEmail(r.Context())
	u, err := h.Svc.EnsureRegistered(r.Context(), id, email)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, u, "registered")
}

// Me returns the caller's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	u, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, u, "")
}

// UpdateProfile updates the caller's display fields.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	u, err := h.Svc.UpdateProfile(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, u, "profile updated")
}

// List returns accounts for the admin console.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	list, total, err := h.Svc.List(r.Context(),
		r.URL.Query().Get("status"), r.URL.Query().Get("q"), page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, common.Envelope{
		Data: list,
		Meta: common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Get returns one account.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	u, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, u, "")
}

// SetRole assigns a role to an account.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := caller(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	var payload struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	u, err := h.Svc.SetRole(r.Context(), actorID, targetID, payload.Role)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, u, "role updated")
}

// SetStatus moves an account's status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := caller(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	u, err := h.Svc.SetStatus(r.Context(), actorID, targetID, payload.Status)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, u, "status updated")
}
