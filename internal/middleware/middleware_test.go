package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateUserID("discord:1234"))
	assert.Error(t, ValidateUserID(""))
	assert.Error(t, ValidateUserID("has space"))
	assert.Error(t, ValidateUserID(strings.Repeat("a", 65)))

	assert.NoError(t, ValidateTargetID("13365322"))
	assert.Error(t, ValidateTargetID("abc"))
	assert.Error(t, ValidateTargetID(""))

	assert.NoError(t, ValidateFileName("Huge Cat.rbxm"))
	assert.Error(t, ValidateFileName("../etc/passwd"))
	assert.Error(t, ValidateFileName(`a\b.png`))
	assert.Error(t, ValidateFileName("  "))

	assert.Equal(t, "hello", SanitizeString(" hel\x00lo\x07 "))
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"ok":   CheckerFunc(func(context.Context) error { return nil }),
		"nats": CheckerFunc(func(context.Context) error { return errors.New("disconnected") }),
	}, func() map[string]any { return map[string]any{"scheduler": "idle"} })

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["ok"].Status)
	assert.Equal(t, "disconnected", body.Checks["nats"].Message)
	assert.Equal(t, "idle", body.Info["scheduler"])
}

func TestMetricsMiddlewareAndNotifier(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/scans/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	r.Method(http.MethodGet, "/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/scans/abc", nil))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/v1/scans/{id}", "418")))

	m.OnScanResult(context.Background(), assets.ScanResult{
		TotalAssetsObserved: 7,
		NewLeaks:            []assets.Asset{{ID: "1", IsDeveloperOrigin: true}, {ID: "2"}, {ID: "3"}},
		Skipped:             []assets.TargetFailure{{TargetID: "t", Reason: "502"}},
		ScanDurationMS:      1500,
	})
	m.ScanFailed()
	m.ObserveUpstream("catalog", 200, 20*time.Millisecond)
	m.ObserveCommand("search", "search_results")
	m.ObserveUpload("accepted")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.scans.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.scans.WithLabelValues("failed")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.assetsObserved))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.newLeaks.WithLabelValues("developer")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.newLeaks.WithLabelValues("public")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.skippedTargets))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.upstreamRequests.WithLabelValues("catalog", "200")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "leakwatch_new_leaks_total")
}

func TestRequestLogger(t *testing.T) {
	var buf strings.Builder
	h := RequestLogger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, float64(404), line["status"])
	assert.Equal(t, float64(4), line["bytes"])
}
