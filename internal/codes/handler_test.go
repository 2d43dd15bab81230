package codes

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/admin/tokens/generate", h.Generate)
	r.GET("/admin/tokens/today", h.Today)
	r.GET("/admin/tokens", h.ListMonth)
	r.GET("/admin/tokens/:date/qr.png", h.DownloadQR)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHandler_Generate(t *testing.T) {
	store := newMemStore()
	reg := newTestRegistry(t, store, time.Date(2024, 5, 20, 9, 0, 0, 0, ist(t)))
	router := setupRouter(NewHandler(reg, nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/tokens/generate", bytes.NewBufferString(`{"month":"2024-12"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	var data struct {
		Generated int `json:"generated"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 31, data.Generated)
	_, ok := store.tokens[day(2024, 12, 31)]
	assert.True(t, ok)

	// No body: current month.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/tokens/generate", nil))
	require.Equal(t, http.StatusOK, w.Code)
	_, ok = store.tokens[day(2024, 5, 1)]
	assert.True(t, ok)
}

func TestHandler_Generate_BadMonth(t *testing.T) {
	reg := newTestRegistry(t, newMemStore(), time.Now())
	router := setupRouter(NewHandler(reg, nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/tokens/generate", bytes.NewBufferString(`{"month":"December"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Generate_FailureListsDates(t *testing.T) {
	store := newMemStore()
	store.createErr = errors.New("disk full")
	reg := newTestRegistry(t, store, time.Date(2024, 2, 1, 9, 0, 0, 0, ist(t)))
	router := setupRouter(NewHandler(reg, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/tokens/generate", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w)
	assert.Equal(t, "generation_failed", env.Code)
	var data struct {
		FailedDates []string `json:"failed_dates"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.FailedDates, 29)
	assert.Equal(t, "2024-02-01", data.FailedDates[0])
}

func TestHandler_Today(t *testing.T) {
	store := newMemStore()
	reg := newTestRegistry(t, store, time.Date(2024, 5, 20, 9, 0, 0, 0, ist(t)))
	router := setupRouter(NewHandler(reg, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/tokens/today", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	store.put(day(2024, 5, 20), "TodayCode")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/tokens/today", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "TodayCode")
}

func TestHandler_ListMonth(t *testing.T) {
	store := newMemStore()
	store.put(day(2024, 5, 2), "may")
	store.put(day(2024, 6, 2), "june")
	reg := newTestRegistry(t, store, time.Date(2024, 5, 20, 9, 0, 0, 0, ist(t)))
	router := setupRouter(NewHandler(reg, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/tokens?month=2024-06", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "june")
	assert.NotContains(t, w.Body.String(), `"may"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/tokens", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"may"`)
}

func TestHandler_DownloadQR(t *testing.T) {
	store := newMemStore()
	store.put(day(2024, 5, 20), "QrCodeValue")
	reg := newTestRegistry(t, store, time.Now())
	router := setupRouter(NewHandler(reg, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/tokens/2024-05-20/qr.png", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "qr_code_2024-05-20.png")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/tokens/2024-05-21/qr.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/tokens/yesterday/qr.png", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
