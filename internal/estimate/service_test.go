package estimate

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/seijin4ka/CostNavigator-sub000/internal/cache"
	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/partner"
)

func newServiceFixture(t *testing.T) (*builderFixture, *Service, *miniredis.Miniredis) {
	t.Helper()
	f := newBuilderFixture(t, "20")
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(ServiceConfig{Store: f.store, Cache: cache.New(client, time.Minute), Logger: zerolog.Nop()})
	return f, svc, mr
}

func TestServiceLifecycle(t *testing.T) {
	f, svc, mr := newServiceFixture(t)
	ctx := context.Background()
	est, err := f.builder.Create(ctx, f.partner, cart(f.proLine(1)))
	require.NoError(t, err)

	got, err := svc.GetByReference(ctx, strings.ToLower(est.ReferenceNumber))
	require.NoError(t, err)
	require.Equal(t, est.ID, got.ID)
	require.Len(t, got.Items, 1)

	require.NoError(t, mr.Set(cache.KeyAnalytics("overview"), "{}"))
	updated, err := svc.UpdateStatus(ctx, est.ID, "Sent")
	require.NoError(t, err)
	require.Equal(t, StatusSent, updated.Status)
	require.False(t, mr.Exists(cache.KeyAnalytics("overview")))

	_, err = svc.UpdateStatus(ctx, est.ID, "cancelled")
	require.True(t, common.HasCode(err, common.CodeValidation))

	_, err = svc.UpdateStatus(ctx, uuid.New(), "sent")
	require.True(t, common.HasCode(err, common.CodeNotFound))

	require.NoError(t, svc.Delete(ctx, est.ID))
	_, err = svc.Get(ctx, est.ID)
	require.True(t, common.HasCode(err, common.CodeNotFound))
	_, err = svc.GetByReference(ctx, "")
	require.True(t, common.HasCode(err, common.CodeNotFound))
}

func TestServiceListAndFilters(t *testing.T) {
	f, svc, _ := newServiceFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.builder.Create(ctx, f.partner, cart(f.proLine(i+1)))
		require.NoError(t, err)
	}

	result, err := svc.List(ctx, ListParams{Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, 3, result.Pagination.TotalItems)
	require.Equal(t, 2, result.Pagination.TotalPages)

	result, err = svc.List(ctx, ListParams{Status: "accepted", Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Empty(t, result.Items)

	_, err = svc.List(ctx, ListParams{Status: "bogus", Page: 1, PerPage: 10})
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func TestExportCSV(t *testing.T) {
	f, svc, _ := newServiceFixture(t)
	ctx := context.Background()
	company := "Initech"
	req := cart(f.proLine(2))
	req.CustomerCompany = &company
	est, err := f.builder.Create(ctx, f.partner, req)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, ListParams{}, &buf, nil))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, exportHeader, rows[0])
	require.Equal(t, est.ReferenceNumber, rows[1][0])
	require.Equal(t, "Acme Cloud", rows[1][1])
	require.Equal(t, "Initech", rows[1][5])
	require.Equal(t, "48.00", rows[1][7])
	require.Equal(t, "576.00", rows[1][8])
}

func TestExportCSVEscapesFormulas(t *testing.T) {
	f, svc, _ := newServiceFixture(t)
	ctx := context.Background()
	company := "@SUM(A1:A9)"
	phone := "+1 555 0100"
	req := cart(f.proLine(1))
	req.CustomerName = "=HYPERLINK(\"http://evil.example\")"
	req.CustomerCompany = &company
	req.CustomerPhone = &phone
	_, err := f.builder.Create(ctx, f.partner, req)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, ListParams{}, &buf, nil))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Equal(t, `'=HYPERLINK("http://evil.example")`, rows[1][3])
	require.Equal(t, "jane@example.com", rows[1][4])
	require.Equal(t, "'@SUM(A1:A9)", rows[1][5])
	require.Equal(t, "'+1 555 0100", rows[1][6])
}

func TestExportHandlerReportsStoreFailure(t *testing.T) {
	f, svc, _ := newServiceFixture(t)
	f.store.failList = errors.New("connection refused")

	router := chi.NewRouter()
	router.Route("/admin/estimates", NewHandler(HandlerConfig{Service: svc, DefaultPerPage: 20, MaxPerPage: 100}).AdminRoutes)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/estimates/export", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Empty(t, rec.Header().Get("Content-Disposition"))
	require.Contains(t, rec.Body.String(), `"error"`)
}

func TestPublicHandlers(t *testing.T) {
	f, svc, _ := newServiceFixture(t)
	h := NewHandler(HandlerConfig{Builder: f.builder, Service: svc, DefaultPerPage: 20, MaxPerPage: 100})

	router := chi.NewRouter()
	router.With(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(partner.WithPartner(r.Context(), f.partner)))
		})
	}).Post("/api/v1/p/{partner}/estimates", h.Create)
	router.Get("/api/v1/estimates/{reference}", h.GetPublic)

	body := `{"customer_name":"Jane","customer_email":"jane@example.com","items":[{"product_id":"` +
		f.cdn.ID.String() + `","tier_id":"` + f.pro.ID.String() + `","quantity":2}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/p/acme/estimates", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	ref := created.Data["reference_number"].(string)
	require.Equal(t, "48", created.Data["total_monthly"])
	require.Equal(t, "Acme Cloud", created.Data["partner_name"])
	require.NotContains(t, created.Data, "customer_email")
	item := created.Data["items"].([]any)[0].(map[string]any)
	require.NotContains(t, item, "base_price")
	require.NotContains(t, item, "markup_amount")
	require.Equal(t, "48", item["final_price"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/estimates/"+ref, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/estimates/EST-NOPE-00000000", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/p/acme/estimates", strings.NewReader(`{"customer_name":"Jane","customer_email":"jane@example.com","items":[]}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHandlers(t *testing.T) {
	f, svc, _ := newServiceFixture(t)
	est, err := f.builder.Create(context.Background(), f.partner, cart(f.proLine(1)))
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Route("/admin/estimates", NewHandler(HandlerConfig{Service: svc, DefaultPerPage: 20, MaxPerPage: 100}).AdminRoutes)
	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	rec := do(http.MethodGet, "/admin/estimates/?status=draft&partner_id="+f.partner.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), est.ReferenceNumber)

	require.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/admin/estimates/?from=yesterday", "").Code)

	rec = do(http.MethodPatch, "/admin/estimates/"+est.ID.String()+"/status", `{"status":"accepted"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"accepted"`)

	rec = do(http.MethodGet, "/admin/estimates/export?status=accepted", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), est.ReferenceNumber)

	require.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/admin/estimates/"+est.ID.String(), "").Code)
	require.Equal(t, http.StatusNotFound, do(http.MethodGet, "/admin/estimates/"+est.ID.String(), "").Code)
}
