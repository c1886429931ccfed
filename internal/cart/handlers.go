package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
	"github.com/illusia-ry-organization/illusia-ry/internal/daterange"
)

// Handler exposes the cart over HTTP. Every response carries the full cart
// view so clients can re-render without a follow-up fetch.
type Handler struct {
	Svc *Service
}

// Routes mounts the cart endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Empty)
	r.Post("/items", h.AddItem)
	r.Post("/items/{itemID}/increase", h.Increase)
	r.Post("/items/{itemID}/decrease", h.Decrease)
	r.Delete("/items/{itemID}", h.Remove)
	r.Put("/dates", h.ChangeDates)
	r.Post("/edit", h.StartEdit)
	r.Post("/edit/confirm", h.ConfirmEdit)
	r.Delete("/edit", h.CancelEdit)
}

// cartOwner resolves whose cart the request addresses: the authenticated
// user, or a client-held session from X-Cart-Session so visitors can build
// a cart before signing in. Anonymous carts live under their own key
// namespace and can never be submitted as bookings.
func cartOwner(r *http.Request) (string, bool) {
	if userID, ok := common.UserID(r.Context()); ok && userID != "" {
		return userID, true
	}
	if session := strings.TrimSpace(r.Header.Get("X-Cart-Session")); session != "" {
		return "anon:" + session, true
	}
	return "", false
}

type addItemRequest struct {
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type datesRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Get returns the current cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := cartOwner(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	view, err := h.Svc.Get(r.Context(), userID)
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view, "")
}

// AddItem adds an item to the cart. When the cart is empty the supplied
// dates become the cart's range.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := cartOwner(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	itemID, err := uuid.Parse(payload.ItemID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	qty := payload.Quantity
	if qty == 0 {
		qty = 1
	}
	var rangeArg daterange.Range
	if payload.StartDate != "" || payload.EndDate != "" {
		rangeArg, err = daterange.Parse(payload.StartDate, payload.EndDate)
		if err != nil {
			writeCartError(w, err)
			return
		}
	}
	view, err := h.Svc.AddItem(r.Context(), userID, itemID, qty, rangeArg)
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view, "item added")
}

// Increase raises a line's quantity. The body quantity defaults to 1.
func (h *Handler) Increase(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.Svc.Increase)
}

// Decrease lowers a line's quantity. The body quantity defaults to 1.
func (h *Handler) Decrease(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.Svc.Decrease)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID string, itemID uuid.UUID, delta int) (View, error)) {
	userID, ok := cartOwner(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	payload := quantityRequest{Quantity: 1}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
			return
		}
	}
	view, err := op(r.Context(), userID, itemID, payload.Quantity)
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view, "")
}

// Remove drops a line from the cart.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := cartOwner(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	view, err := h.Svc.Remove(r.Context(), userID, itemID)
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view, "item removed")
}

// ChangeDates applies a new date range to the active cart.
func (h *Handler) ChangeDates(w http.ResponseWriter, r *http.Request) {
	userID, ok := cartOwner(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload datesRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	rangeArg, err := daterange.Parse(payload.StartDate, payload.EndDate)
	if err != nil {
		writeCartError(w, err)
		return
	}
	view, err := h.Svc.ChangeDates(r.Context(), userID, rangeArg)
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view, "")
}

// StartEdit opens an edit session.
func (h *Handler) StartEdit(w http.ResponseWriter, r *http.Request) {
	h.session(w, r, h.Svc.StartEdit, "edit session opened")
}

// ConfirmEdit commits the edit session.
func (h *Handler) ConfirmEdit(w http.ResponseWriter, r *http.Request) {
	h.session(w, r, h.Svc.ConfirmEdit, "changes confirmed")
}

// CancelEdit discards the edit session.
func (h *Handler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	h.session(w, r, h.Svc.CancelEdit, "changes discarded")
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID string) (View, error), message string) {
	userID, ok := cartOwner(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	view, err := op(r.Context(), userID)
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view, message)
}

// Empty clears the whole cart.
func (h *Handler) Empty(w http.ResponseWriter, r *http.Request) {
	userID, ok := cartOwner(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	if err := h.Svc.Empty(r.Context(), userID); err != nil {
		writeCartError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, buildView(State{}), "cart emptied")
}

// writeCartError translates engine errors into the API error envelope.
func writeCartError(w http.ResponseWriter, err error) {
	var unavail *UnavailableError
	switch {
	case errors.As(err, &unavail):
		common.JSONError(w, http.StatusConflict, "UNAVAILABLE", unavail.Result.Message, unavail.Result)
	case errors.Is(err, daterange.ErrTooLong):
		common.JSONError(w, http.StatusUnprocessableEntity, "RANGE_TOO_LONG", err.Error(), nil)
	case errors.Is(err, daterange.ErrInvalid):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_RANGE", err.Error(), nil)
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrNoDateRange):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrAlreadyEditing), errors.Is(err, ErrNotEditing), errors.Is(err, ErrEditing):
		common.JSONError(w, http.StatusConflict, "EDIT_STATE", err.Error(), nil)
	case errors.Is(err, ErrOutstandingErrors):
		common.JSONError(w, http.StatusConflict, "VALIDATION_PENDING", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
