package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestHeadersMiddlewareSetsSecurityHeaders(t *testing.T) {
	handler := Headers{Enable: true, EnableHSTS: true, HSTSIncludeSubdomains: true}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "https://api.example.com/api/v1/p/direct", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))
	require.Contains(t, rr.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
}

func TestHeadersMiddlewareSkipsHSTSOnPlainHTTP(t *testing.T) {
	handler := Headers{Enable: true, EnableHSTS: true}.Middleware(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://localhost/", nil))
	require.Empty(t, rr.Header().Get("Strict-Transport-Security"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestHeadersMiddlewareDisabled(t *testing.T) {
	handler := Headers{Enable: false, EnableHSTS: true}.Middleware(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	require.Empty(t, rr.Header().Get("X-Content-Type-Options"))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	handler := CORS([]string{"https://partner.example.com"}, "X-Partner-Slug")(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "http://localhost/api/v1/p/acme/estimates", nil)
	req.Header.Set("Origin", "https://partner.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Idempotency-Key")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, "https://partner.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	other := httptest.NewRequest(http.MethodGet, "http://localhost/api/v1/p/acme", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, other)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestNoStore(t *testing.T) {
	rr := httptest.NewRecorder()
	NoStore(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/estimates", nil))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}
