package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/straye-as/measure-api/internal/config"
	"github.com/straye-as/measure-api/internal/logger"
	"github.com/straye-as/measure-api/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseAuditEntry(t *testing.T) {
	tests := []struct {
		method, pattern, id string
		want                AuditEntry
	}{
		{http.MethodPost, "/api/v1/projects", "", AuditEntry{"create", "Project", 0}},
		{http.MethodPut, "/api/v1/measurement-details/{id}", "12", AuditEntry{"update", "MeasurementDetail", 12}},
		{http.MethodPost, "/api/v1/measurement-details/{id}/review", "12", AuditEntry{"review", "MeasurementDetail", 12}},
		{http.MethodPost, "/api/v1/periods/{id}/archive", "3", AuditEntry{"archive", "Period", 3}},
		{http.MethodPost, "/api/v1/contracts/{id}/items", "7", AuditEntry{"create", "MeasurementItem", 7}},
		{http.MethodDelete, "/api/v1/unknown/{id}", "x", AuditEntry{"delete", "Unknown", 0}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAuditEntry(tt.method, tt.pattern, tt.id))
		})
	}
}

func TestLogging_PropagatesRequestID(t *testing.T) {
	var seen *zap.Logger
	h := Logging(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.FromContext(r.Context(), nil)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	assert.NotNil(t, seen)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "unexpected error")
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/projects/"+id, nil))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/projects/{id}", "200")))
}

func TestRateLimiter(t *testing.T) {
	cfg := &config.RateLimitConfig{
		Enabled:               true,
		RequestsPerMinute:     1,
		RequestsPerMinuteAuth: 1,
		WhitelistPaths:        []string{"/health/*"},
	}
	rl := NewRateLimiter(cfg, zap.NewNop())
	h := rl.LimitByIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, call("/api/v1/projects"))
	assert.Equal(t, http.StatusTooManyRequests, call("/api/v1/projects"))
	assert.Equal(t, http.StatusOK, call("/health/db"))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(&config.SecurityConfig{
		EnableHSTS:         true,
		HSTSMaxAge:         60,
		ContentTypeNosniff: true,
		FrameOptions:       "DENY",
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "max-age=60", rec.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/measurement-details", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "unsafe-inline")
}
