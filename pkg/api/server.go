package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/rewind/pkg/changelog"
	"github.com/platinummonkey/rewind/pkg/httputil"
	"github.com/platinummonkey/rewind/pkg/observability"
	"github.com/platinummonkey/rewind/pkg/routing"
	"github.com/platinummonkey/rewind/pkg/structure"
	"github.com/platinummonkey/rewind/pkg/swagger"
)

// DefaultVersionHeader is the request header read when none is configured
const DefaultVersionHeader = "X-API-Version"

// Server serves every version of an API from one listener. The version is
// chosen per request from a header; requests without it are served by head.
type Server struct {
	versioned *routing.Versioned
	bundle    *structure.VersionBundle
	header    string
	logger    *observability.Logger
	metrics   *observability.Metrics
	gatherer  prometheus.Gatherer
	health    *observability.HealthChecker
	changelog *changelog.Changelog
	docs      *swagger.Handlers
	cors      []string
	maxBody   int64
	tracing   bool

	router   *mux.Router
	head     http.Handler
	versions map[structure.Date]http.Handler
	handler  http.Handler
}

// Option configures a Server
type Option func(*Server)

// WithVersionHeader sets the header carrying the client's API version
func WithVersionHeader(header string) Option {
	return func(s *Server) { s.header = header }
}

// WithLogger sets the request logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics instruments versioned routes and serves gatherer on /metrics
func WithMetrics(metrics *observability.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = metrics
		s.gatherer = gatherer
	}
}

// WithHealthChecker replaces the default health checker
func WithHealthChecker(h *observability.HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithChangelog serves cl on /_rewind/changelog
func WithChangelog(cl *changelog.Changelog) Option {
	return func(s *Server) { s.changelog = cl }
}

// WithDocs serves the OpenAPI documents under /_rewind
func WithDocs(h *swagger.Handlers) Option {
	return func(s *Server) { s.docs = h }
}

// WithCORS allows browser clients from origins to send and read the version header
func WithCORS(origins ...string) Option {
	return func(s *Server) { s.cors = origins }
}

// WithMaxBodyBytes limits request bodies; zero means no limit
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// WithTracing wraps the server in otelhttp instrumentation
func WithTracing(enabled bool) Option {
	return func(s *Server) { s.tracing = enabled }
}

// NewServer builds the HTTP surface over generated version routers
func NewServer(versioned *routing.Versioned, bundle *structure.VersionBundle, opts ...Option) *Server {
	s := &Server{
		versioned: versioned,
		bundle:    bundle,
		header:    DefaultVersionHeader,
		logger:    observability.NewLogger(observability.InfoLevel, nil),
		versions:  make(map[structure.Date]http.Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = observability.NewHealthChecker("")
		s.health.Register("versions", true, func(ctx context.Context) error {
			if len(s.versioned.Dates()) == 0 {
				return errNoVersions
			}
			return nil
		})
	}

	s.head = s.versionHandler(versioned.Head())
	for _, d := range versioned.Dates() {
		vr, _ := versioned.Version(d)
		s.versions[d] = s.versionHandler(vr)
	}
	s.setupRoutes()

	middlewares := []httputil.Middleware{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
	}
	if len(s.cors) > 0 {
		middlewares = append(middlewares, httputil.CORSMiddleware(s.cors, s.header, httputil.RequestIDHeader))
	}
	if s.maxBody > 0 {
		middlewares = append(middlewares, httputil.MaxBytesMiddleware(s.maxBody))
	}
	s.handler = httputil.Chain(s.router, middlewares...)
	if s.tracing {
		s.handler = otelhttp.NewHandler(s.handler, "rewind",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
	return s
}

func (s *Server) versionHandler(vr *routing.VersionRouter) http.Handler {
	r := vr.Handler()
	if s.metrics != nil {
		r.Use(observability.HTTPMetricsMiddleware(s.metrics, s.header))
	}
	return r
}

// setupRoutes configures the service routes; everything else is dispatched
// to a version router
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	meta := s.router.PathPrefix("/_rewind").Subrouter()
	if s.metrics != nil {
		meta.Use(observability.HTTPMetricsMiddleware(s.metrics, s.header))
	}
	meta.HandleFunc("/versions", s.listVersions).Methods(http.MethodGet)
	meta.HandleFunc("/changelog", s.getChangelog).Methods(http.MethodGet)
	if s.docs != nil {
		s.docs.RegisterRoutes(meta)
	}

	s.router.HandleFunc("/healthz", s.health.Liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.health.Readiness).Methods(http.MethodGet)
	if s.gatherer != nil {
		observability.RegisterMetricsEndpoint(s.router, s.gatherer)
	}

	s.router.PathPrefix("/").HandlerFunc(s.dispatch)
}

// dispatch picks the router of the closest version not after the requested one
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get(s.header)
	if raw == "" {
		s.head.ServeHTTP(w, r)
		return
	}
	requested, err := structure.ParseDate(raw)
	if err != nil {
		httputil.WriteBadRequest(w, fmt.Sprintf("%s header must be a date in YYYY-MM-DD format, got %q", s.header, raw))
		return
	}
	closest, err := s.bundle.ClosestVersion(requested)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	h, ok := s.versions[closest]
	if !ok {
		observability.FromContext(r.Context()).WithField("version", closest.String()).Error("No router for version")
		httputil.WriteInternalError(w)
		return
	}
	w.Header().Set(s.header, closest.String())
	h.ServeHTTP(w, r.WithContext(structure.WithAPIVersion(r.Context(), requested)))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
