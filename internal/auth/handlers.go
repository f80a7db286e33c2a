package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

// Handler exposes the admin login endpoints.
type Handler struct {
	Service *Service
	// LoginLimiter throttles POST /login when set.
	LoginLimiter func(http.Handler) http.Handler
	Guard        func(http.Handler) http.Handler
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Routes mounts /login and the guarded /me.
func (h *Handler) Routes(r chi.Router) {
	login := http.Handler(http.HandlerFunc(h.Login))
	if h.LoginLimiter != nil {
		login = h.LoginLimiter(login)
	}
	r.Method(http.MethodPost, "/login", login)
	r.Group(func(r chi.Router) {
		if h.Guard != nil {
			r.Use(h.Guard)
		}
		r.Get("/me", h.Me)
	})
}

// Login handles POST /api/v1/admin/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Me handles GET /api/v1/admin/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	adminID, ok := common.AdminID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
		return
	}
	admin, err := h.Service.Me(r.Context(), adminID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": admin})
}
