package intake

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := RequestID(logger)(AccessLog()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusCreated)
	})))

	r := httptest.NewRequest(http.MethodPost, "http://example/api/problems", nil)
	r.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-42"`)
	assert.Contains(t, out, `"message":"inside"`)
	assert.Contains(t, out, `"status":201`)
	assert.Contains(t, out, `"path":"/api/problems"`)
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	h := RequestID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/", nil))

	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

func TestRecover_ReturnsJSON500(t *testing.T) {
	h := Recover()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestHealthHandler(t *testing.T) {
	ok := HealthCheck{Name: "redis", Check: func(context.Context) error { return nil }}
	bad := HealthCheck{Name: "sqlite", Check: func(context.Context) error { return errors.New("locked") }}

	w := httptest.NewRecorder()
	HealthHandler(time.Second, ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	HealthHandler(time.Second, ok, bad).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"sqlite":"locked"}}`, w.Body.String())
}
