package items

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
)

// Handler exposes the catalogue over HTTP.
type Handler struct {
	Svc *Service
}

// PublicRoutes mounts the browse endpoints available to every caller.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{itemID}", h.Get)
	r.Get("/categories", h.ListCategories)
}

// AdminRoutes mounts the catalogue management endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{itemID}", h.Update)
	r.Delete("/{itemID}", h.Delete)
	r.Patch("/{itemID}/visibility", h.SetVisibility)
	r.Post("/categories", h.CreateCategory)
	r.Put("/categories/{categoryID}", h.UpdateCategory)
	r.Delete("/categories/{categoryID}", h.DeleteCategory)
}

func isAdmin(r *http.Request) bool {
	role, _ := common.UserRole(r.Context())
	return role == "admin" || role == "head_admin"
}

// List returns catalogue items with pagination meta. Admins may request
// hidden items with ?include_hidden=true.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	filter := ListFilter{
		Search:        r.URL.Query().Get("q"),
		IncludeHidden: r.URL.Query().Get("include_hidden") == "true" && isAdmin(r),
		Page:          page,
		PerPage:       perPage,
	}
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid category id", nil)
			return
		}
		filter.CategoryID = &id
	}

	list, total, err := h.Svc.List(r.Context(), filter)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, common.Envelope{
		Data: list,
		Meta: common.Pagination{Page: filter.Page, PerPage: filter.PerPage, TotalItems: total},
	})
}

// Get returns one item.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	it, err := h.Svc.Get(r.Context(), id, isAdmin(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, it, "")
}

// Create adds a catalogue item.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in ItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	it, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, it, "item created")
}

// Update replaces a catalogue item.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var in ItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	it, err := h.Svc.Update(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, it, "item updated")
}

// SetVisibility shows or hides an item.
func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var payload struct {
		Visible *bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Visible == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "visible is required", nil)
		return
	}
	it, err := h.Svc.SetVisibility(r.Context(), id, *payload.Visible)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, it, "visibility updated")
}

// Delete removes an item.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]string{"id": id.String()}, "item deleted")
}

// ListCategories returns all categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.ListCategories(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, list, "")
}

// CreateCategory adds a category.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	c, err := h.Svc.CreateCategory(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, c, "category created")
}

// UpdateCategory replaces a category.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "categoryID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid category id", nil)
		return
	}
	var in CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	c, err := h.Svc.UpdateCategory(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, c, "category updated")
}

// DeleteCategory removes a category.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "categoryID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid category id", nil)
		return
	}
	if err := h.Svc.DeleteCategory(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]string{"id": id.String()}, "category deleted")
}

