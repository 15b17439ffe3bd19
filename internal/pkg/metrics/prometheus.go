package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldai",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shieldai",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// Audit metrics
	auditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldai",
			Subsystem: "audit",
			Name:      "runs_total",
			Help:      "Total number of audit runs",
		},
		[]string{"mode"},
	)

	auditDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shieldai",
			Subsystem: "audit",
			Name:      "duration_seconds",
			Help:      "Audit run duration in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	findingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldai",
			Subsystem: "audit",
			Name:      "findings_total",
			Help:      "Total number of findings produced",
		},
		[]string{"severity", "source"},
	)

	// Fix engine metrics
	fixesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldai",
			Subsystem: "fix",
			Name:      "applies_total",
			Help:      "Total number of fix apply attempts",
		},
		[]string{"result"},
	)

	// Extractor metrics
	extractorOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldai",
			Subsystem: "extractor",
			Name:      "outcomes_total",
			Help:      "How each model stream was resolved",
		},
		[]string{"outcome"},
	)
)

// RecordAudit records a completed audit run.
func RecordAudit(mode string, d time.Duration) {
	auditsTotal.WithLabelValues(mode).Inc()
	auditDuration.Observe(d.Seconds())
}

// RecordFinding records one produced finding.
func RecordFinding(severity, source string) {
	findingsTotal.WithLabelValues(severity, source).Inc()
}

// RecordFix records one fix apply attempt.
func RecordFix(result string) {
	fixesTotal.WithLabelValues(result).Inc()
}

// RecordExtractorOutcome records how a model stream was resolved
// (inline, fenced, full_buffer, degraded).
func RecordExtractorOutcome(outcome string) {
	extractorOutcomes.WithLabelValues(outcome).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware instruments HTTP requests with count and duration metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := strconv.Itoa(ww.status)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
