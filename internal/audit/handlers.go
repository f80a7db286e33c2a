package audit

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

// Handler exposes HTTP endpoints for working with audit logs.
type Handler struct {
	Service        *Service
	DefaultPerPage int
	MaxPerPage     int
}

// List returns a paginated list of audit logs for administrators.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "audit store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, h.DefaultPerPage, h.MaxPerPage)
	q := r.URL.Query()
	filter := ListFilter{
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		Limit:        perPage,
		Offset:       common.Offset(page, perPage),
	}
	if raw := q.Get("admin_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid admin_id", nil)
			return
		}
		filter.ActorAdminID = &id
	}

	entries, total, err := h.Service.List(r.Context(), filter)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       entries,
		"pagination": common.NewPagination(page, perPage, total),
	})
}
