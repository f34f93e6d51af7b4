package sales

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/waa-mobile/waapos/internal/platform/httpx"
)

func newTestRouter(store *memoryStore) http.Handler {
	svc := NewService(store, newMemoryParties("Aslam Mobile"), nil, &memoryIdempotency{}, nil)
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)
	return r
}

func TestHandlerPostInvoice(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("USB Cable", 10, 180, 250)
	router := newTestRouter(store)

	body := `{"customer":"Aslam Mobile","lines":[{"item_name":"USB Cable","quantity":3,"unit_rate":"300"}],"payment":{"amount":"400","method":"cash"}}`
	req := httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body))
	req.Header.Set(IdempotencyHeader, "k-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var snap InvoiceSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.EqualValues(t, 1001, snap.Number)
	require.Equal(t, "900", snap.NetTotal.String())
	require.Equal(t, "400", snap.Paid.String())

	req = httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body))
	req.Header.Set(IdempotencyHeader, "k-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerInsufficientStockProblem(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("USB Cable", 2, 180, 250)
	router := newTestRouter(store)

	body := `{"customer":"Aslam Mobile","lines":[{"item_name":"USB Cable","quantity":3,"unit_rate":"300"}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, rec.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "USB Cable", problem.Item)
	require.NotNil(t, problem.Available)
	require.EqualValues(t, 2, *problem.Available)
}

func TestHandlerEmptyCartAndBadNumber(t *testing.T) {
	router := newTestRouter(newMemoryStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(`{"customer":"Aslam Mobile","lines":[]}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/1001", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
