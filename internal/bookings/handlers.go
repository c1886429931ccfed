package bookings

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
	"github.com/illusia-ry-organization/illusia-ry/internal/users"
)

// Handler exposes the booking endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the user-facing booking endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{bookingID}", h.Get)
	r.Post("/{bookingID}/cancel", h.Cancel)
}

// AdminRoutes mounts the admin booking endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.AdminList)
	r.Patch("/{bookingID}/status", h.Decide)
}

func callerID(r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

func callerIsAdmin(r *http.Request) bool {
	role, _ := common.UserRole(r.Context())
	return role == users.RoleAdmin || role == users.RoleHeadAdmin
}

// Create submits the caller's cart as a new pending booking.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	b, err := h.Svc.CreateFromCart(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, b, "booking submitted")
}

// List returns the caller's bookings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	list, total, err := h.Svc.ListForUser(r.Context(), id, page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, common.Envelope{
		Data: list,
		Meta: common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Get returns one booking.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid booking id", nil)
		return
	}
	b, err := h.Svc.Get(r.Context(), id, callerIsAdmin(r), bookingID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, b, "")
}

// Cancel withdraws an open booking.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid booking id", nil)
		return
	}
	b, err := h.Svc.Cancel(r.Context(), id, callerIsAdmin(r), bookingID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, b, "booking cancelled")
}

// AdminList returns bookings across all users, filterable by status and
// user id.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	f := ListFilter{Status: r.URL.Query().Get("status")}
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user_id", nil)
			return
		}
		f.UserID = id
	}
	f.Page, f.PerPage = common.ParsePagination(r, 20)
	list, total, err := h.Svc.List(r.Context(), f)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, common.Envelope{
		Data: list,
		Meta: common.Pagination{Page: f.Page, PerPage: f.PerPage, TotalItems: total},
	})
}

type decideRequest struct {
	Status string `json:"status"`
}

// Decide approves or rejects a pending booking.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid booking id", nil)
		return
	}
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", nil)
		return
	}
	b, err := h.Svc.Decide(r.Context(), actorID, bookingID, req.Status)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, b, "booking "+b.Status)
}
