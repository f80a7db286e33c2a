package partner

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestAdminHandlers(t *testing.T) {
	store := newMemoryStore(directPartner())
	svc, _ := newTestService(t, store)
	router := chi.NewRouter()
	router.Route("/admin/partners", NewHandler(HandlerConfig{Service: svc, DefaultPerPage: 20, MaxPerPage: 100}).AdminRoutes)

	body := `{"name":"Acme","slug":"acme","primary_color":"#aabbcc","default_markup_type":"fixed","default_markup_value":"2.50"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/partners/", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		Data Partner `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, "#AABBCC", created.Data.PrimaryColor)
	require.Equal(t, "2.5", created.Data.DefaultMarkupValue.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/partners/", strings.NewReader(`{"name":"x","unknown":1}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/partners/?active=true&limit=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Data       []Partner      `json:"data"`
		Pagination map[string]int `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Equal(t, 2, list.Pagination["total_items"])
	require.Equal(t, 1, list.Pagination["per_page"])

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/partners/?active=maybe", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/partners/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/admin/partners/"+created.Data.ID.String(), nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/partners/"+created.Data.ID.String(), nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
