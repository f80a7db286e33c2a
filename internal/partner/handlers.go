package partner

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

// Handler exposes public branding and admin partner management endpoints.
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

// AdminRoutes mounts partner CRUD under /admin/partners.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{partnerID}", h.Get)
	r.Put("/{partnerID}", h.Update)
	r.Delete("/{partnerID}", h.Delete)
}

// Branding handles GET /p/{partner}. The partner is resolved by Resolver.
func (h *Handler) Branding(w http.ResponseWriter, r *http.Request) {
	p, ok := FromContext(r.Context())
	if !ok {
		common.WriteError(w, common.NewNotFound("partner", chi.URLParam(r, "partner")))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p.Branding()})
}

// List handles GET /admin/partners?search=&active=&page=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, h.defaultPerPage, h.maxPerPage)
	params := ListParams{Search: r.URL.Query().Get("search"), Page: page, PerPage: perPage}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			common.WriteError(w, common.NewValidationError("invalid active filter", map[string]string{"active": "must be true or false"}))
			return
		}
		params.Active = &active
	}
	result, err := h.service.List(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result.Items, "pagination": result.Pagination})
}

// Get handles GET /admin/partners/{partnerID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := common.UUIDParam(r, "partnerID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Create handles POST /admin/partners.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// Update handles PUT /admin/partners/{partnerID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := common.UUIDParam(r, "partnerID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Delete handles DELETE /admin/partners/{partnerID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := common.UUIDParam(r, "partnerID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
