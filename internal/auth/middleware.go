package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/obs"
)

type tokenParser interface {
	ParseAccessToken(token string) (string, error)
}

// Middleware guards the admin API. Tokens are read from the Authorization
// header only; the admin API sets no cookies.
type Middleware struct {
	Service tokenParser
	Logger  zerolog.Logger
}

// RequireAuth answers 401 unless the request carries a valid admin token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" || m.Service == nil {
			unauthorized(w, "missing or invalid token")
			return
		}
		adminID, err := m.Service.ParseAccessToken(token)
		if err != nil {
			m.Logger.Debug().Err(err).Str("path", r.URL.Path).Msg("admin token rejected")
			unauthorized(w, "missing or invalid token")
			return
		}
		ctx := common.WithAdminID(r.Context(), adminID)
		obs.SetAdmin(ctx, adminID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearer(r *http.Request) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
	common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, msg, nil)
}
