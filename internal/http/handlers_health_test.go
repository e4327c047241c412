package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name     string
		method   string
		checks   map[string]ReadinessCheck
		wantCode int
		wantBody string
	}{
		{name: "liveness", method: http.MethodGet, wantCode: http.StatusOK, wantBody: `{"status":"ok"}` + "\n"},
		{name: "healthy deps", method: http.MethodGet, checks: map[string]ReadinessCheck{"db": ok}, wantCode: http.StatusOK, wantBody: `{"status":"ok"}` + "\n"},
		{
			name:     "failing dep",
			method:   http.MethodGet,
			checks:   map[string]ReadinessCheck{"db": ok, "redis": down},
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"checks":{"redis":"unavailable"},"status":"unavailable"}` + "\n",
		},
		{name: "head", method: http.MethodHead, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			healthHandler(logger, tt.checks)(rec, httptest.NewRequest(tt.method, "/healthz", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestRouter_UnknownRouteIsJSON404(t *testing.T) {
	h := NewRouter(RouterServices{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
