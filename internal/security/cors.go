package security

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the partner storefronts and the admin panel to call the API.
// An empty origin list allows any origin without credentials.
func CORS(origins []string, partnerHeader string) func(http.Handler) http.Handler {
	allowCredentials := true
	if len(origins) == 0 {
		origins = []string{"*"}
		allowCredentials = false
	}
	headers := []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"}
	if partnerHeader != "" {
		headers = append(headers, partnerHeader)
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   headers,
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID", "Retry-After"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	})
}
