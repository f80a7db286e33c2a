package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	handler := Handler{
		Limiter: Limiter{Client: newClient(t), Prefix: "ratelimit:"},
		Config:  Config{Key: PartnerClientKey, Window: time.Second, Max: 1},
	}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/p/acme/estimates", nil)
	req = req.WithContext(common.WithPartnerSlug(req.Context(), "acme"))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))
	require.Contains(t, rr2.Body.String(), "RATE_LIMITED")

	other := httptest.NewRequest(http.MethodPost, "/api/v1/p/globex/estimates", nil)
	other = other.WithContext(common.WithPartnerSlug(other.Context(), "globex"))
	rr3 := httptest.NewRecorder()
	handler.ServeHTTP(rr3, other)
	require.Equal(t, http.StatusOK, rr3.Code)
}

func TestHandlerMiddlewareFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	called := false
	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config:  Config{Key: func(*http.Request) string { return "err" }, Window: time.Second, Max: 1},
		OnError: func(error) { called = true },
	}.Middleware(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}

func TestPartnerClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	require.Equal(t, "-:10.0.0.7", PartnerClientKey(req))

	req = req.WithContext(common.WithPartnerSlug(context.Background(), "acme"))
	require.Equal(t, "acme:10.0.0.7", PartnerClientKey(req))
}

func TestLoginLimiter(t *testing.T) {
	mw, err := NewLoginLimiter(newClient(t), "2-M", zerolog.Nop())
	require.NoError(t, err)
	handler := mw(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/auth/login", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestLoginLimiterRejectsBadRate(t *testing.T) {
	_, err := NewLoginLimiter(newClient(t), "ten per minute", zerolog.Nop())
	require.Error(t, err)
}
