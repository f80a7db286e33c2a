package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/partner"
)

// Handler exposes the public catalog and admin catalog management.
type Handler struct {
	service        *Service
	defaultPerPage int
	maxPerPage     int
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service        *Service
	DefaultPerPage int
	MaxPerPage     int
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, defaultPerPage: cfg.DefaultPerPage, maxPerPage: cfg.MaxPerPage}
}

// CategoryRoutes mounts category CRUD under /admin/categories.
func (h *Handler) CategoryRoutes(r chi.Router) {
	r.Get("/", h.ListCategories)
	r.Post("/", h.CreateCategory)
	r.Put("/{categoryID}", h.UpdateCategory)
	r.Delete("/{categoryID}", h.DeleteCategory)
}

// ProductRoutes mounts product and tier CRUD under /admin/products.
func (h *Handler) ProductRoutes(r chi.Router) {
	r.Get("/", h.ListProducts)
	r.Post("/", h.CreateProduct)
	r.Get("/{productID}", h.GetProduct)
	r.Put("/{productID}", h.UpdateProduct)
	r.Delete("/{productID}", h.DeleteProduct)
	r.Post("/{productID}/tiers", h.CreateTier)
	r.Put("/{productID}/tiers/{tierID}", h.UpdateTier)
	r.Delete("/{productID}/tiers/{tierID}", h.DeleteTier)
}

// Public handles GET /p/{partner}/catalog. The partner is resolved upstream.
func (h *Handler) Public(w http.ResponseWriter, r *http.Request) {
	p, ok := partner.FromContext(r.Context())
	if !ok {
		common.WriteError(w, common.NewNotFound("partner", chi.URLParam(r, "partner")))
		return
	}
	categories, err := h.service.PublicCatalog(r.Context(), p)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": categories})
}

// ListCategories handles GET /admin/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListCategories(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// CreateCategory handles POST /admin/categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.service.CreateCategory(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": c})
}

// UpdateCategory handles PUT /admin/categories/{categoryID}.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := common.UUIDParam(r, "categoryID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in CategoryInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// DeleteCategory handles DELETE /admin/categories/{categoryID}.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := common.UUIDParam(r, "categoryID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProducts handles GET /admin/products?category_id=&search=&active=&page=&limit=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := common.ParsePagination(r, h.defaultPerPage, h.maxPerPage)
	params := ProductListParams{Search: q.Get("search"), Page: page, PerPage: perPage}
	if raw := q.Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.WriteError(w, common.NewValidationError("invalid category filter", map[string]string{"category_id": "must be a UUID"}))
			return
		}
		params.CategoryID = &id
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			common.WriteError(w, common.NewValidationError("invalid active filter", map[string]string{"active": "must be true or false"}))
			return
		}
		params.Active = &active
	}
	result, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result.Items, "pagination": result.Pagination})
}

// GetProduct handles GET /admin/products/{productID}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := common.UUIDParam(r, "productID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	detail, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

// CreateProduct handles POST /admin/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// UpdateProduct handles PUT /admin/products/{productID}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := common.UUIDParam(r, "productID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in ProductInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// DeleteProduct handles DELETE /admin/products/{productID}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := common.UUIDParam(r, "productID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateTier handles POST /admin/products/{productID}/tiers.
func (h *Handler) CreateTier(w http.ResponseWriter, r *http.Request) {
	productID, err := common.UUIDParam(r, "productID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in TierInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	t, err := h.service.CreateTier(r.Context(), productID, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": t})
}

// UpdateTier handles PUT /admin/products/{productID}/tiers/{tierID}.
func (h *Handler) UpdateTier(w http.ResponseWriter, r *http.Request) {
	productID, err := common.UUIDParam(r, "productID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	tierID, err := common.UUIDParam(r, "tierID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in TierInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	t, err := h.service.UpdateTier(r.Context(), productID, tierID, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": t})
}

// DeleteTier handles DELETE /admin/products/{productID}/tiers/{tierID}.
func (h *Handler) DeleteTier(w http.ResponseWriter, r *http.Request) {
	productID, err := common.UUIDParam(r, "productID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	tierID, err := common.UUIDParam(r, "tierID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.service.DeleteTier(r.Context(), productID, tierID); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
