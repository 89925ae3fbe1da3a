package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	reg prometheus.Gatherer

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	scans            *prometheus.CounterVec
	scanDuration     prometheus.Histogram
	assetsObserved   prometheus.Counter
	newLeaks         *prometheus.CounterVec
	skippedTargets   prometheus.Counter
	commands         *prometheus.CounterVec
	uploads          *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leakwatch_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leakwatch_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leakwatch_scans_total",
			Help: "Completed scan ticks by outcome.",
		}, []string{"outcome"}),
		scanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "leakwatch_scan_duration_seconds",
			Help:    "Wall time of successful scan ticks.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		assetsObserved: f.NewCounter(prometheus.CounterOpts{
			Name: "leakwatch_assets_observed_total",
			Help: "Assets returned by the source across all ticks.",
		}),
		newLeaks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leakwatch_new_leaks_total",
			Help: "Newly discovered assets by origin.",
		}, []string{"origin"}),
		skippedTargets: f.NewCounter(prometheus.CounterOpts{
			Name: "leakwatch_skipped_targets_total",
			Help: "Targets skipped because the source was unavailable.",
		}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leakwatch_commands_total",
			Help: "Routed commands by name and response kind.",
		}, []string{"command", "response"}),
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leakwatch_uploads_total",
			Help: "Upload submissions by outcome.",
		}, []string{"outcome"}),
		upstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leakwatch_upstream_requests_total",
			Help: "Requests to the asset source by endpoint and status.",
		}, []string{"endpoint", "status"}),
		upstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leakwatch_upstream_request_duration_seconds",
			Help:    "Latency of requests to the asset source.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware tracks request metrics. Routes are labelled by their chi pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrapWriter(w)

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// OnScanResult implements assets.Notifier.
func (m *Metrics) OnScanResult(_ context.Context, r assets.ScanResult) {
	m.scans.WithLabelValues("ok").Inc()
	m.scanDuration.Observe(float64(r.ScanDurationMS) / 1000)
	m.assetsObserved.Add(float64(r.TotalAssetsObserved))
	dev := r.DeveloperLeaks()
	m.newLeaks.WithLabelValues("developer").Add(float64(dev))
	m.newLeaks.WithLabelValues("public").Add(float64(len(r.NewLeaks) - dev))
	m.skippedTargets.Add(float64(len(r.Skipped)))
}

// ScanFailed counts a tick aborted by a fatal store failure.
func (m *Metrics) ScanFailed() { m.scans.WithLabelValues("failed").Inc() }

// ObserveUpstream matches the roblox client's OnRequest hook.
func (m *Metrics) ObserveUpstream(endpoint string, status int, took time.Duration) {
	m.upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.upstreamDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

func (m *Metrics) ObserveCommand(command, response string) {
	m.commands.WithLabelValues(command, response).Inc()
}

func (m *Metrics) ObserveUpload(outcome string) {
	m.uploads.WithLabelValues(outcome).Inc()
}
