package analytics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the analytics endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/overview", h.Overview)
	r.Get("/daily", h.Daily)
	r.Get("/top-products", h.TopProducts)
}

// Overview handles GET /admin/analytics/overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	rg, ok := h.window(w, r)
	if !ok {
		return
	}
	ov, err := h.Svc.Overview(r.Context(), rg, common.QueryInt(r, "top", 0))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ov})
}

// Daily handles GET /admin/analytics/daily.
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	rg, ok := h.window(w, r)
	if !ok {
		return
	}
	rows, err := h.Svc.Daily(r.Context(), rg)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows, "range": rg})
}

// TopProducts handles GET /admin/analytics/top-products.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	rg, ok := h.window(w, r)
	if !ok {
		return
	}
	rows, err := h.Svc.TopProducts(r.Context(), rg, common.QueryInt(r, "limit", 0))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows, "range": rg})
}

// window reads from/to (RFC3339 or YYYY-MM-DD) or falls back to the last
// DefaultRange days, optionally overridden by ?days=.
func (h *Handler) window(w http.ResponseWriter, r *http.Request) (Range, bool) {
	q := r.URL.Query()
	fromStr, toStr := q.Get("from"), q.Get("to")
	if fromStr == "" && toStr == "" {
		rg := h.Svc.DefaultWindow()
		if days := common.QueryInt(r, "days", 0); days > 0 {
			rg.From = rg.To.AddDate(0, 0, -days)
		}
		return rg, true
	}
	from, err := parseTime(fromStr)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid from date", nil)
		return Range{}, false
	}
	to, err := parseTime(toStr)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid to date", nil)
		return Range{}, false
	}
	return Range{From: from, To: to}, true
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}
