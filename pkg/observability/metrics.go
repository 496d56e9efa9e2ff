package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Migration metrics
	MigrationsTotal             *prometheus.CounterVec
	MigrationDuration           *prometheus.HistogramVec
	ConvertersAppliedTotal      *prometheus.CounterVec
	HeadValidationFailuresTotal *prometheus.CounterVec

	// Plan cache metrics
	PlanCacheHitsTotal   *prometheus.CounterVec
	PlanCacheMissesTotal *prometheus.CounterVec

	// Generation metrics
	GenerationDuration *prometheus.HistogramVec
	VersionsTotal      prometheus.Gauge
	RoutesTotal        *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "api_version", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewind_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewind_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),

		MigrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_migrations_total",
				Help: "Total number of payload migrations",
			},
			[]string{"direction", "api_version", "status"},
		),
		MigrationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewind_migration_duration_seconds",
				Help:    "Payload migration duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"direction"},
		),
		ConvertersAppliedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_converters_applied_total",
				Help: "Total number of converter invocations",
			},
			[]string{"direction"},
		),
		HeadValidationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_head_validation_failures_total",
				Help: "Migrated requests that failed validation against the head schema",
			},
			[]string{"api_version"},
		),

		PlanCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_plan_cache_hits_total",
				Help: "Total number of migration plan cache hits",
			},
			[]string{"direction"},
		),
		PlanCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_plan_cache_misses_total",
				Help: "Total number of migration plan cache misses",
			},
			[]string{"direction"},
		),

		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewind_generation_duration_seconds",
				Help:    "Schema and route projection duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"stage"},
		),
		VersionsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rewind_versions_total",
				Help: "Number of declared API versions",
			},
		),
		RoutesTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rewind_routes_total",
				Help: "Number of routes served per API version",
			},
			[]string{"api_version"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.MigrationsTotal,
		m.MigrationDuration,
		m.ConvertersAppliedTotal,
		m.HeadValidationFailuresTotal,
		m.PlanCacheHitsTotal,
		m.PlanCacheMissesTotal,
		m.GenerationDuration,
		m.VersionsTotal,
		m.RoutesTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labeled by their route template, not the raw path.
func HTTPMetricsMiddleware(metrics *Metrics, versionHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			version := r.Header.Get(versionHeader)
			if version == "" {
				version = "head"
			}
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, version, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, gatherer prometheus.Gatherer) {
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
