package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	enrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_enrichments_total",
			Help: "Enrichment runs by outcome",
		},
		[]string{"outcome"},
	)

	emailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_emails_total",
			Help: "Campaign emails by delivery outcome",
		},
		[]string{"outcome"},
	)

	engagementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_engagements_total",
			Help: "Accepted engagement events by kind",
		},
		[]string{"kind"},
	)

	leadsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_ingested_total",
			Help: "Leads created by scraping or import",
		},
		[]string{"source"},
	)

	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_tasks_total",
			Help: "Queue tasks handled by the worker",
		},
		[]string{"queue", "outcome"},
	)

	integrationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_errors_total",
			Help: "Total number of integration errors",
		},
		[]string{"service"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics records request count and latency. The path label is the chi route
// pattern so ids do not explode the series count.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Domain exposes the business counters to the use cases.
type Domain struct{}

func (Domain) RecordEnrichment(outcome string) {
	enrichmentsTotal.WithLabelValues(outcome).Inc()
}

func (Domain) RecordEmail(outcome string) {
	emailsTotal.WithLabelValues(outcome).Inc()
}

func (Domain) RecordEngagement(kind string) {
	engagementsTotal.WithLabelValues(kind).Inc()
}

func (Domain) RecordLeadsIngested(source string, n int) {
	if n > 0 {
		leadsIngested.WithLabelValues(source).Add(float64(n))
	}
}

func RecordTask(queue, outcome string) {
	tasksTotal.WithLabelValues(queue, outcome).Inc()
}

func RecordIntegrationError(service string) {
	integrationErrors.WithLabelValues(service).Inc()
}
