package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

type estimateBody struct {
	CustomerName string `json:"customer_name" validate:"required"`
}

func decodeHandler(got *estimateBody) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := common.DecodeJSON(r, got); err != nil {
			common.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestBodyLimitAllowsWithinLimit(t *testing.T) {
	var got estimateBody
	handler := BodyLimit{Max: 64}.Middleware(decodeHandler(&got))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/p/direct/estimates", strings.NewReader(`{"customer_name":"Ana"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Ana", got.CustomerName)
}

func TestBodyLimitRejectsStreamedOversize(t *testing.T) {
	var got estimateBody
	handler := BodyLimit{Max: 16}.Middleware(decodeHandler(&got))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/p/direct/estimates", strings.NewReader(`{"customer_name":"a much longer name than allowed"}`))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Contains(t, rr.Body.String(), common.CodeTooLarge)
}

func TestBodyLimitRejectsDeclaredContentLength(t *testing.T) {
	called := false
	handler := BodyLimit{Max: 4}.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("too long")))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.False(t, called)
}

func TestBodyLimitDisabled(t *testing.T) {
	var got estimateBody
	handler := BodyLimit{}.Middleware(decodeHandler(&got))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"customer_name":"Ana"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
}
