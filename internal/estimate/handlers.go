package estimate

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/partner"
)

// Handler exposes public estimate creation/lookup and admin management.
type Handler struct {
	builder        *Builder
	service        *Service
	defaultPerPage int
	maxPerPage     int
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Builder        *Builder
	Service        *Service
	DefaultPerPage int
	MaxPerPage     int
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		builder:        cfg.Builder,
		service:        cfg.Service,
		defaultPerPage: cfg.DefaultPerPage,
		maxPerPage:     cfg.MaxPerPage,
	}
}

// AdminRoutes mounts estimate management under /admin/estimates.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/export", h.Export)
	r.Get("/{estimateID}", h.Get)
	r.Patch("/{estimateID}/status", h.UpdateStatus)
	r.Delete("/{estimateID}", h.Delete)
}

// Create handles POST /p/{partner}/estimates.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := partner.FromContext(r.Context())
	if !ok {
		common.WriteError(w, common.NewNotFound("partner", chi.URLParam(r, "partner")))
		return
	}
	var req CreateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	est, err := h.builder.Create(r.Context(), p, req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": est.Public()})
}

// GetPublic handles GET /estimates/{reference}.
func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	est, err := h.service.GetByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": est.Public()})
}

// List handles GET /admin/estimates.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	params.Page, params.PerPage = common.ParsePagination(r, h.defaultPerPage, h.maxPerPage)
	result, err := h.service.List(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result.Items, "pagination": result.Pagination})
}

// Export handles GET /admin/estimates/export with the List filters.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	filename := fmt.Sprintf("estimates-%s.csv", time.Now().UTC().Format("20060102"))
	started := false
	err = h.service.ExportCSV(r.Context(), params, w, func() {
		started = true
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		w.WriteHeader(http.StatusOK)
	})
	switch {
	case err == nil:
	case !started:
		common.WriteError(w, err)
	default:
		// the status line is out, the file is only truncated
		h.service.logger.Error().Err(err).Msg("estimate export failed midway")
	}
}

// Get handles GET /admin/estimates/{estimateID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := common.UUIDParam(r, "estimateID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	est, err := h.service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": est})
}

type statusInput struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus handles PATCH /admin/estimates/{estimateID}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := common.UUIDParam(r, "estimateID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in statusInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	est, err := h.service.UpdateStatus(r.Context(), id, in.Status)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": est})
}

// Delete handles DELETE /admin/estimates/{estimateID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := common.UUIDParam(r, "estimateID")
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

func listParams(r *http.Request) (ListParams, error) {
	q := r.URL.Query()
	params := ListParams{Status: q.Get("status"), Search: q.Get("search")}
	if raw := strings.TrimSpace(q.Get("partner_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ListParams{}, common.NewValidationError("invalid partner filter", map[string]string{"partner_id": "must be a UUID"})
		}
		params.PartnerID = &id
	}
	var err error
	if params.From, err = parseDate(q.Get("from"), "from"); err != nil {
		return ListParams{}, err
	}
	if params.To, err = parseDate(q.Get("to"), "to"); err != nil {
		return ListParams{}, err
	}
	return params, nil
}

// parseDate accepts RFC3339 timestamps or plain dates (UTC midnight).
func parseDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, common.NewValidationError("invalid date filter", map[string]string{field: "must be YYYY-MM-DD or RFC3339"})
}
