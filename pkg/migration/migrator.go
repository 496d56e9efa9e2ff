package migration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/rewind/pkg/contextkeys"
	"github.com/platinummonkey/rewind/pkg/httputil"
	"github.com/platinummonkey/rewind/pkg/observability"
	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/schemagen"
	"github.com/platinummonkey/rewind/pkg/structure"
)

// bodyOnlyPath never matches a route so that only by-schema converters run
const bodyOnlyPath = "\x00\x00\x00"

// Config holds migrator tuning
type Config struct {
	// PlanCacheSize is the number of plans kept; zero disables caching
	PlanCacheSize int
	// PlanCacheTTL bounds how long an unused plan is kept; zero keeps it until evicted
	PlanCacheTTL time.Duration
}

// DefaultConfig returns the default migrator configuration
func DefaultConfig() Config {
	return Config{PlanCacheSize: 1024}
}

// Option configures a Migrator
type Option func(*Migrator)

// WithMetrics reports migrations to Prometheus
func WithMetrics(m *observability.Metrics) Option {
	return func(mg *Migrator) { mg.metrics = m }
}

// WithOTelMetrics reports migrations to OpenTelemetry instruments
func WithOTelMetrics(m *observability.OTelMetrics) Option {
	return func(mg *Migrator) { mg.otel = m }
}

// WithTracer overrides the tracer used for migration spans
func WithTracer(t trace.Tracer) Option {
	return func(mg *Migrator) { mg.tracer = t }
}

// WithLogger sets the logger used when no logger travels in the context
func WithLogger(l *observability.Logger) Option {
	return func(mg *Migrator) { mg.log = l }
}

// WithConfig replaces the default configuration
func WithConfig(cfg Config) Option {
	return func(mg *Migrator) { mg.cfg = cfg }
}

// Migrator walks the version chain of a bundle at call time. It is safe for
// concurrent use; it never mutates the bundle or the projected schemas.
type Migrator struct {
	bundle  *structure.VersionBundle
	schemas *schemagen.Result
	cfg     Config

	plans   *planCache
	metrics *observability.Metrics
	otel    *observability.OTelMetrics
	tracer  trace.Tracer
	log     *observability.Logger
}

// NewMigrator creates a migrator over bundle and its projected schemas
func NewMigrator(bundle *structure.VersionBundle, schemas *schemagen.Result, opts ...Option) *Migrator {
	m := &Migrator{
		bundle:  bundle,
		schemas: schemas,
		cfg:     DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tracer == nil {
		m.tracer = observability.Tracer()
	}
	m.plans = newPlanCache(m.cfg.PlanCacheSize, m.cfg.PlanCacheTTL)
	return m
}

// Bundle returns the bundle the migrator walks
func (m *Migrator) Bundle() *structure.VersionBundle {
	return m.bundle
}

// Schemas returns the projected schemas the migrator validates against
func (m *Migrator) Schemas() *schemagen.Result {
	return m.schemas
}

// CacheStats reports plan cache usage; zero when caching is disabled
func (m *Migrator) CacheStats() CacheStats {
	if m.plans == nil {
		return CacheStats{}
	}
	return CacheStats{Hits: m.plans.hits.Load(), Misses: m.plans.misses.Load(), Len: m.plans.cache.Len()}
}

// MigrateRequest moves req from the client version up to head and validates
// the result against the head schema of t.Schema. On success req.Body holds
// the normalized head payload.
func (m *Migrator) MigrateRequest(ctx context.Context, version structure.Date, t Target, req *structure.RequestInfo) (err error) {
	closest, err := m.bundle.ClosestVersion(version)
	if err != nil {
		return err
	}
	ctx, span := m.startSpan(ctx, "rewind.migrate_request", closest, t)
	start := time.Now()
	p := m.plan(ctx, Request, closest, t)
	applied := 0
	defer func() { m.finish(ctx, span, Request, closest, start, applied, err) }()

	if req.Headers == nil {
		req.Headers = http.Header{}
	}
	for _, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.request(req); err != nil {
			return err
		}
		applied++
	}

	if t.Schema == "" {
		return nil
	}
	body, verr := m.schemas.Head().Validate(t.Schema, req.Body)
	if verr != nil {
		var ve *schema.ValidationError
		if errors.As(verr, &ve) {
			if m.metrics != nil {
				m.metrics.HeadValidationFailuresTotal.WithLabelValues(closest.String()).Inc()
			}
			m.logger(ctx).WithFields(map[string]interface{}{
				"api_version": version.String(),
				"schema":      string(t.Schema),
				"errors":      len(ve.Errors),
			}).Error("Migrated request failed head validation")
			return &HeadRequestValidationError{Errors: ve.Errors, Body: req.Body, Version: version}
		}
		return verr
	}
	req.Body = body
	return nil
}

// MigrateResponse moves resp from head down to the client version. Converters
// not marked for HTTP errors are skipped once the status is 300 or above.
func (m *Migrator) MigrateResponse(ctx context.Context, version structure.Date, t Target, resp *structure.ResponseInfo) (err error) {
	closest, err := m.bundle.ClosestVersion(version)
	if err != nil {
		return err
	}
	ctx, span := m.startSpan(ctx, "rewind.migrate_response", closest, t)
	start := time.Now()
	p := m.plan(ctx, Response, closest, t)
	applied := 0
	defer func() { m.finish(ctx, span, Response, closest, start, applied, err) }()

	if resp.Headers == nil {
		resp.Headers = http.Header{}
	}
	for _, s := range p.steps {
		if resp.StatusCode >= 300 && !s.httpErrors {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.response(resp); err != nil {
			return err
		}
		applied++
	}
	return nil
}

// MigrateResponseBody migrates a head payload of headSchema to version and
// validates it against that version's projection of the same schema.
func (m *Migrator) MigrateResponseBody(ctx context.Context, headSchema schema.ID, body interface{}, version structure.Date) (map[string]interface{}, error) {
	normalized, err := Normalize(body)
	if err != nil {
		return nil, err
	}
	resp := &structure.ResponseInfo{Body: normalized, StatusCode: http.StatusOK, Headers: http.Header{}}
	t := Target{Path: bodyOnlyPath, Method: http.MethodGet, Schema: headSchema}
	if err := m.MigrateResponse(ctx, version, t, resp); err != nil {
		return nil, err
	}
	closest, err := m.bundle.ClosestVersion(version)
	if err != nil {
		return nil, err
	}
	schemas, ok := m.schemas.Version(closest)
	if !ok {
		return nil, structure.Errorf(structure.ErrRuntimeMigration, "version %s has no projected schemas", closest)
	}
	return schemas.Validate(headSchema, resp.Body)
}

func (m *Migrator) plan(ctx context.Context, d Direction, v structure.Date, t Target) *plan {
	key := planKey{direction: d, version: v, target: t}
	if m.plans != nil {
		if p, ok := m.plans.get(key); ok {
			m.recordLookup(ctx, d, true)
			return p
		}
		m.recordLookup(ctx, d, false)
	}

	var p *plan
	if d == Request {
		p = buildRequestPlan(m.bundle, v, t)
	} else {
		p = buildResponsePlan(m.bundle, v, t)
	}
	if m.plans != nil {
		m.plans.add(key, p)
	}
	m.logger(ctx).WithField("plan", key.String()).WithField("steps", len(p.steps)).Debug("Built migration plan")
	return p
}

func (m *Migrator) recordLookup(ctx context.Context, d Direction, hit bool) {
	if m.metrics != nil {
		if hit {
			m.metrics.PlanCacheHitsTotal.WithLabelValues(string(d)).Inc()
		} else {
			m.metrics.PlanCacheMissesTotal.WithLabelValues(string(d)).Inc()
		}
	}
	if m.otel != nil {
		m.otel.RecordPlanLookup(ctx, string(d), hit)
	}
}

func (m *Migrator) startSpan(ctx context.Context, name string, v structure.Date, t Target) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("rewind.api_version", v.String()),
		attribute.String("http.route", t.Path),
		attribute.String("http.method", t.Method),
		attribute.String("rewind.schema", string(t.Schema)),
	))
}

func (m *Migrator) finish(ctx context.Context, span trace.Span, d Direction, v structure.Date, start time.Time, applied int, err error) {
	duration := time.Since(start)
	span.SetAttributes(attribute.Int("rewind.converters", applied))
	status := "ok"
	if err != nil {
		status = "error"
		var hv *HeadRequestValidationError
		if errors.As(err, &hv) {
			status = "head_validation_failed"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if m.metrics != nil {
		m.metrics.MigrationsTotal.WithLabelValues(string(d), v.String(), status).Inc()
		m.metrics.MigrationDuration.WithLabelValues(string(d)).Observe(duration.Seconds())
		if applied > 0 {
			m.metrics.ConvertersAppliedTotal.WithLabelValues(string(d)).Add(float64(applied))
		}
	}
	if m.otel != nil {
		m.otel.RecordMigration(ctx, string(d), v.String(), duration, applied, err)
	}
}

// logger prefers the request logger, then the migrator logger
func (m *Migrator) logger(ctx context.Context) *observability.Logger {
	if _, ok := ctx.Value(contextkeys.LoggerKey).(*observability.Logger); !ok && m.log != nil {
		return m.log
	}
	return observability.FromContext(ctx)
}

// Normalize turns any JSON-encodable value into its generic JSON form
// (maps, slices, json.Number, string, bool, nil) so converters can edit it.
func Normalize(v interface{}) (interface{}, error) {
	switch v.(type) {
	case nil, string, bool, json.Number:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return httputil.UnmarshalJSON(raw)
}

// Encode serializes a migrated body compactly without HTML escaping and sets
// Content-Length on headers. A nil body encodes as an empty payload.
func Encode(body interface{}, headers http.Header) ([]byte, error) {
	var data []byte
	if body != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(body); err != nil {
			return nil, err
		}
		data = bytes.TrimRight(buf.Bytes(), "\n")
	}
	if headers != nil {
		headers.Set("Content-Length", strconv.Itoa(len(data)))
	}
	return data, nil
}
