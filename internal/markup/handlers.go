package markup

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

// Handler exposes admin endpoints for partner markup rules.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the handler under /partners/{partnerID}/markup-rules.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/resolve", h.Resolve)
	r.Put("/{ruleID}", h.Update)
	r.Delete("/{ruleID}", h.Delete)
}

// List handles GET /partners/{partnerID}/markup-rules.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	partnerID, err := common.UUIDParam(r, "partnerID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	rules, err := h.service.List(r.Context(), partnerID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rules})
}

// Create handles POST /partners/{partnerID}/markup-rules.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	partnerID, err := common.UUIDParam(r, "partnerID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in RuleInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	rule, err := h.service.Create(r.Context(), partnerID, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rule})
}

// Update handles PUT /partners/{partnerID}/markup-rules/{ruleID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	partnerID, err := common.UUIDParam(r, "partnerID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	ruleID, err := common.UUIDParam(r, "ruleID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in UpdateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	rule, err := h.service.Update(r.Context(), partnerID, ruleID, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rule})
}

// Delete handles DELETE /partners/{partnerID}/markup-rules/{ruleID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	partnerID, err := common.UUIDParam(r, "partnerID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	ruleID, err := common.UUIDParam(r, "ruleID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), partnerID, ruleID); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Resolve handles GET /partners/{partnerID}/markup-rules/resolve?product_id=&tier_id=.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	partnerID, err := common.UUIDParam(r, "partnerID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	productID, err := uuid.Parse(r.URL.Query().Get("product_id"))
	if err != nil {
		common.WriteError(w, common.NewValidationError("invalid product id", map[string]string{"product_id": "must be a valid uuid"}))
		return
	}
	var tierID *uuid.UUID
	if raw := r.URL.Query().Get("tier_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			common.WriteError(w, common.NewValidationError("invalid tier id", map[string]string{"tier_id": "must be a valid uuid"}))
			return
		}
		tierID = &parsed
	}
	res, err := h.service.Preview(r.Context(), partnerID, productID, tierID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}
