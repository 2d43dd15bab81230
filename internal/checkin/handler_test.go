package checkin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-attendance/backend/internal/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func setupRouter(h *Handler, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	authed := r.Group("/", func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(middleware.ContextUserID, userID)
		}
		c.Next()
	})
	authed.POST("/attendance/scan", h.Scan)
	authed.GET("/attendance/status", h.Status)
	authed.GET("/admin/attendance", h.ListByDate)
	return r
}

func scan(t *testing.T, router *gin.Engine, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/attendance/scan", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func newTestHandler(f *fixture, now time.Time) *Handler {
	h := NewHandler(f.svc, nil)
	h.now = func() time.Time { return now }
	return h
}

func TestHandler_Scan(t *testing.T) {
	f := newFixture(t)
	h := newTestHandler(f, f.at(9, 40, 0))
	router := setupRouter(h, uuid.New())

	w, env := scan(t, router, `{"code":"`+todayCode+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)
	var conf Confirmation
	require.NoError(t, json.Unmarshal(env.Data, &conf))
	assert.Equal(t, "09:40 AM IST", conf.ScannedAtLocal)

	h.now = func() time.Time { return f.at(9, 41, 0) }
	w, env = scan(t, router, `{"code":"`+todayCode+`"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_checked_in", env.Code)
}

func TestHandler_Scan_Rejections(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		now    time.Time
		body   string
		status int
		code   string
	}{
		{"window closed", f.at(9, 46, 0), `{"code":"` + todayCode + `"}`, http.StatusForbidden, "window_closed"},
		{"invalid code", f.at(9, 40, 0), `{"code":"nope"}`, http.StatusBadRequest, "invalid_code"},
		{"missing code", f.at(9, 40, 0), `{}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(newTestHandler(f, tt.now), uuid.New())
			w, env := scan(t, router, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, env.Code)
			assert.False(t, env.Success)
		})
	}
	assert.Zero(t, f.store.count())
}

func TestHandler_Scan_WindowMessageNamesWindow(t *testing.T) {
	f := newFixture(t)
	router := setupRouter(newTestHandler(f, f.at(12, 0, 0)), uuid.New())

	_, env := scan(t, router, `{"code":"x"}`)
	assert.Contains(t, env.Error, "09:30:00-09:45:00")
}

func TestHandler_Scan_StorageFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.store.createErr = assert.AnError
	router := setupRouter(newTestHandler(f, f.at(9, 40, 0)), uuid.New())

	w, env := scan(t, router, `{"code":"`+todayCode+`"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, env.Error, assert.AnError.Error())
}

func TestHandler_Scan_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	router := setupRouter(newTestHandler(f, f.at(9, 40, 0)), uuid.Nil)

	w, _ := scan(t, router, `{"code":"`+todayCode+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_StatusAndList(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	router := setupRouter(newTestHandler(f, f.at(9, 35, 0)), user)

	_, _ = scan(t, router, `{"code":"`+todayCode+`"}`)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/attendance/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var st Status
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.CheckedIn)
	assert.False(t, st.CanCheckIn)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/attendance?date=2024-03-04", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/attendance?date=04-03-2024", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
