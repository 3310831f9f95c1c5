package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vantage-distress-ui/internal/risk"
)

var (
	metricsRegistry = prometheus.NewRegistry()

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vantage_http_requests_total",
		Help: "Total HTTP requests handled by this app.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vantage_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vantage_http_in_flight_requests",
		Help: "In-flight HTTP requests currently served by this app.",
	})

	dbQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vantage_db_query_duration_seconds",
		Help:    "Database query duration in seconds by connector/operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"connector", "operation"})

	dbQueryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vantage_db_query_errors_total",
		Help: "Database query errors by connector/operation.",
	}, []string{"connector", "operation"})

	externalDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vantage_external_probe_duration_seconds",
		Help:    "Upstream API call duration in seconds by target/operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"target", "operation"})

	externalErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vantage_external_probe_errors_total",
		Help: "Upstream API call errors by target/operation.",
	}, []string{"target", "operation"})

	classifiedAssets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vantage_classified_assets_total",
		Help: "Assets classified and returned to clients, by risk tier.",
	}, []string{"tier", "source"})
)

func init() {
	metricsRegistry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		httpInFlight,
		dbQueryDuration,
		dbQueryErrors,
		externalDuration,
		externalErrors,
		classifiedAssets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func metricsHandler() http.Handler {
	return promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})
}

func recordDBQuery(connector, operation string, seconds float64, err error) {
	dbQueryDuration.WithLabelValues(connector, operation).Observe(seconds)
	if err != nil {
		dbQueryErrors.WithLabelValues(connector, operation).Inc()
	}
}

func recordExternalProbe(target, operation string, seconds float64, err error) {
	externalDuration.WithLabelValues(target, operation).Observe(seconds)
	if err != nil {
		externalErrors.WithLabelValues(target, operation).Inc()
	}
}

func recordClassification(tier risk.Tier, source string) {
	classifiedAssets.WithLabelValues(string(tier), source).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func observabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := normalizeMetricPath(r.URL.Path)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func normalizeMetricPath(path string) string {
	switch {
	case path == "/":
		return "/"
	case strings.HasPrefix(path, "/api/companies/") && strings.HasSuffix(path, "/structure"):
		return "/api/companies/{number}/structure"
	case strings.HasPrefix(path, "/api/companies/") && strings.HasSuffix(path, "/charges"):
		return "/api/companies/{number}/charges"
	case strings.HasPrefix(path, "/api/companies/") && strings.HasSuffix(path, "/dossier"):
		return "/api/companies/{number}/dossier"
	case strings.HasPrefix(path, "/api/companies/"):
		return "/api/companies/{other}"
	case strings.HasPrefix(path, "/api/"), path == "/metrics", path == "/health", path == "/ready", path == "/favicon.ico":
		return path
	default:
		return "{unmatched}"
	}
}
