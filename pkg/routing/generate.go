package routing

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rewind/pkg/migration"
	"github.com/platinummonkey/rewind/pkg/observability"
	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/schemagen"
	"github.com/platinummonkey/rewind/pkg/structure"
)

// Generator projects a head router onto every version of a bundle
type Generator struct {
	head     *Router
	bundle   *structure.VersionBundle
	schemas  *schemagen.Result
	migrator *migration.Migrator
	log      *logrus.Logger
	metrics  *observability.Metrics
}

// NewGenerator creates a route generator. The migrator must have been built
// over the same bundle and schemas.
func NewGenerator(head *Router, migrator *migration.Migrator, log *logrus.Logger) *Generator {
	if log == nil {
		log = logrus.New()
	}
	return &Generator{
		head:     head,
		bundle:   migrator.Bundle(),
		schemas:  migrator.Schemas(),
		migrator: migrator,
		log:      log,
	}
}

// WithMetrics reports route counts and generation time
func (g *Generator) WithMetrics(m *observability.Metrics) *Generator {
	g.metrics = m
	return g
}

// Generate builds one router per version, newest first. It fails without
// returning any router if a single instruction or converter is inconsistent.
func (g *Generator) Generate() (*Versioned, error) {
	start := time.Now()
	if len(g.head.errs) > 0 {
		return nil, structure.Errorf(structure.ErrGeneration, "invalid head router: %v", errors.Join(g.head.errs...))
	}
	if err := g.checkSchemaConverters(); err != nil {
		return nil, err
	}

	never := make(map[int]*Route)
	for _, r := range g.head.routes {
		if r.deleted {
			never[r.index] = r
		}
	}

	tables := make(map[structure.Date][]*Route)
	current := cloneRoutes(g.head.routes)
	for _, v := range g.bundle.Versions() {
		older := cloneRoutes(current)
		for _, vc := range v.Changes {
			for _, in := range vc.EndpointInstructions() {
				if err := g.apply(older, in, vc.Name(), v.Date, never); err != nil {
					return nil, err
				}
			}
		}
		if err := checkPathConverters(v, current, older); err != nil {
			return nil, err
		}
		tables[v.Date] = current
		current = older
	}

	if len(never) > 0 {
		var names []string
		for _, r := range never {
			names = append(names, r.String())
		}
		sort.Strings(names)
		return nil, structure.Errorf(structure.ErrGeneration,
			"every route marked as existing only in older versions must be restored by some version, but these never were: %s",
			strings.Join(names, ", "))
	}

	out := &Versioned{versions: make(map[structure.Date]*VersionRouter)}
	out.head = g.router(structure.Date{}, g.head.routes, g.schemas.Head())
	for _, v := range g.bundle.Versions() {
		schemas, ok := g.schemas.Version(v.Date)
		if !ok {
			return nil, structure.Errorf(structure.ErrGeneration, "version %s has no projected schemas", v.Date)
		}
		out.versions[v.Date] = g.router(v.Date, tables[v.Date], schemas)
		out.order = append(out.order, v.Date)
	}

	if g.metrics != nil {
		g.metrics.GenerationDuration.WithLabelValues("routes").Observe(time.Since(start).Seconds())
		g.metrics.VersionsTotal.Set(float64(len(out.order)))
		g.metrics.RoutesTotal.WithLabelValues("head").Set(float64(len(out.head.endpoints)))
		for _, d := range out.order {
			g.metrics.RoutesTotal.WithLabelValues(d.String()).Set(float64(len(out.versions[d].endpoints)))
		}
	}
	return out, nil
}

// router strips deleted routes and wraps the rest
func (g *Generator) router(d structure.Date, routes []*Route, schemas *schemagen.VersionSchemas) *VersionRouter {
	vr := &VersionRouter{version: d}
	for _, r := range routes {
		if r.deleted {
			continue
		}
		vr.endpoints = append(vr.endpoints, &Endpoint{
			route:    r,
			head:     g.head.routes[r.index],
			version:  d,
			schemas:  schemas,
			migrator: g.migrator,
		})
	}
	return vr
}

// checkSchemaConverters requires every by-schema converter to target a
// schema some head route takes as body or returns
func (g *Generator) checkSchemaConverters() error {
	requests := make(map[schema.ID]bool)
	responses := make(map[schema.ID]bool)
	for _, r := range g.head.routes {
		if r.RequestSchema != "" {
			requests[r.RequestSchema] = true
		}
		if r.ResponseSchema != "" {
			responses[r.ResponseSchema] = true
		}
	}
	for _, vc := range g.bundle.AllChanges() {
		for _, c := range vc.RequestSchemaConverters() {
			if !c.CheckUsage {
				continue
			}
			for _, id := range c.Schemas {
				if !requests[id] {
					return structure.Errorf(structure.ErrGeneration,
						"request converter for schema %q does not match any route request body", id).In(vc.Name())
				}
			}
		}
		for _, c := range vc.ResponseSchemaConverters() {
			if !c.CheckUsage {
				continue
			}
			for _, id := range c.Schemas {
				if !responses[id] {
					return structure.Errorf(structure.ErrGeneration,
						"response converter for schema %q does not match any route response", id).In(vc.Name())
				}
			}
		}
	}
	return nil
}

// checkPathConverters requires every by-path converter of v to name a path
// and methods served either in v or in the version right before it
func checkPathConverters(v *structure.Version, newer, older []*Route) error {
	for _, vc := range v.Changes {
		for path, converters := range vc.RequestPathConverters() {
			for _, c := range converters {
				if err := pathServed(path, c.Methods, newer, older); err != "" {
					return structure.Errorf(structure.ErrGeneration, "request converter: %s", err).In(vc.Name())
				}
			}
		}
		for path, converters := range vc.ResponsePathConverters() {
			for _, c := range converters {
				if err := pathServed(path, c.Methods, newer, older); err != "" {
					return structure.Errorf(structure.ErrGeneration, "response converter: %s", err).In(vc.Name())
				}
			}
		}
	}
	return nil
}

func pathServed(path string, methods []string, tables ...[]*Route) string {
	var missing []string
	for _, routes := range tables {
		covered := make(map[string]bool)
		for _, r := range routes {
			if !r.deleted && samePath(r.Path, path) {
				for _, m := range r.Methods {
					covered[m] = true
				}
			}
		}
		missing = missing[:0]
		for _, m := range methods {
			if !covered[m] {
				missing = append(missing, m)
			}
		}
		if len(missing) == 0 {
			return ""
		}
	}
	return fmt.Sprintf("path %q with methods %v is not served by any route", path, missing)
}

func (g *Generator) apply(routes []*Route, in structure.Instruction, change string, d structure.Date, never map[int]*Route) error {
	switch in := in.(type) {
	case *structure.EndpointDidntExist:
		if deleted := matchRoutes(routes, in.EndpointMatch, true); len(deleted) > 0 {
			return structure.Errorf(structure.ErrGeneration,
				"endpoint %s you tried to delete was already deleted in a newer version. "+
					"If you really have two routes with the same paths and methods, use Named() to distinguish between them", in.EndpointMatch).In(change)
		}
		active := matchRoutes(routes, in.EndpointMatch, false)
		if err := methodsCovered(in.EndpointMatch, active, "doesn't exist in a newer version"); err != nil {
			return err.In(change)
		}
		for _, r := range active {
			r.deleted = true
			g.logRoute(r, change, d, "Route deleted")
		}

	case *structure.EndpointExisted:
		if active := matchRoutes(routes, in.EndpointMatch, false); len(active) > 0 {
			return structure.Errorf(structure.ErrGeneration,
				"endpoint %s you tried to restore already existed in a newer version. "+
					"If you really have two routes with the same paths and methods, use Named() to distinguish between them", in.EndpointMatch).In(change)
		}
		deleted := matchRoutes(routes, in.EndpointMatch, true)
		seen := make(map[string]*Route)
		for _, r := range deleted {
			key := strings.TrimRight(r.Path, "/") + " " + strings.Join(sortedCopy(r.Methods), ",")
			if other, ok := seen[key]; ok {
				return structure.Errorf(structure.ErrInvalidInstruction,
					"endpoint %s matches several deleted routes (%s and %s), use Named() to pick one", in.EndpointMatch, other.Name, r.Name).In(change)
			}
			seen[key] = r
		}
		if err := methodsCovered(in.EndpointMatch, deleted, "wasn't among the deleted routes"); err != nil {
			return err.In(change)
		}
		for _, r := range deleted {
			r.deleted = false
			delete(never, r.index)
			g.logRoute(r, change, d, "Route restored")
		}

	case *structure.EndpointHad:
		active := matchRoutes(routes, in.EndpointMatch, false)
		if err := methodsCovered(in.EndpointMatch, active, "doesn't exist"); err != nil {
			return err.In(change)
		}
		for _, r := range active {
			if err := g.alter(r, in.Changes); err != nil {
				return err.In(change)
			}
			g.logRoute(r, change, d, "Route altered")
		}

	default:
		return structure.Errorf(structure.ErrGeneration, "unsupported endpoint instruction %T", in).In(change)
	}
	return nil
}

func (g *Generator) alter(r *Route, c structure.EndpointChanges) *structure.Error {
	noop := func(attr string, value interface{}) *structure.Error {
		return structure.Errorf(structure.ErrInvalidInstruction,
			"endpoint %s already has %s %v in the newer version", r, attr, value)
	}
	if c.Path != nil {
		if *c.Path == r.Path {
			return noop("path", *c.Path)
		}
		before, after := pathParams(r.Path), pathParams(*c.Path)
		if strings.Join(before, ",") != strings.Join(after, ",") {
			return structure.Errorf(structure.ErrRouterPathParamsModified,
				"when altering the path of %s you tried to change its path params from %v to %v; "+
					"versioning cannot change the parameters a handler receives", r, before, after)
		}
		r.Path = *c.Path
	}
	if c.Methods != nil {
		if strings.Join(sortedCopy(c.Methods), ",") == strings.Join(sortedCopy(r.Methods), ",") {
			return noop("methods", c.Methods)
		}
		r.Methods = append([]string{}, c.Methods...)
	}
	if c.StatusCode != nil {
		if *c.StatusCode == r.StatusCode {
			return noop("status code", *c.StatusCode)
		}
		r.StatusCode = *c.StatusCode
	}
	if c.Tags != nil {
		if strings.Join(c.Tags, "\x00") == strings.Join(r.Tags, "\x00") {
			return noop("tags", c.Tags)
		}
		r.Tags = append([]string{}, c.Tags...)
	}
	if c.Summary != nil {
		if *c.Summary == r.Summary {
			return noop("summary", *c.Summary)
		}
		r.Summary = *c.Summary
	}
	if c.Description != nil {
		if *c.Description == r.Description {
			return noop("description", *c.Description)
		}
		r.Description = *c.Description
	}
	if c.Deprecated != nil {
		if *c.Deprecated == r.Deprecated {
			return noop("deprecated", *c.Deprecated)
		}
		r.Deprecated = *c.Deprecated
	}
	if c.IncludeInSchema != nil {
		if *c.IncludeInSchema == r.IncludeInSchema {
			return noop("include_in_schema", *c.IncludeInSchema)
		}
		r.IncludeInSchema = *c.IncludeInSchema
	}
	if c.OperationID != nil {
		if *c.OperationID == r.OperationID {
			return noop("operation id", *c.OperationID)
		}
		r.OperationID = *c.OperationID
	}
	if c.ResponseSchema != nil {
		if *c.ResponseSchema == r.ResponseSchema {
			return noop("response schema", *c.ResponseSchema)
		}
		if _, ok := g.schemas.Head().Model(*c.ResponseSchema); !ok {
			return structure.Errorf(structure.ErrGeneration, "endpoint %s: response schema %q is not registered", r, *c.ResponseSchema)
		}
		r.ResponseSchema = *c.ResponseSchema
	}
	return nil
}

func (g *Generator) logRoute(r *Route, change string, d structure.Date, msg string) {
	g.log.WithFields(logrus.Fields{
		"version": d.String(),
		"change":  change,
		"route":   r.String(),
	}).Debug(msg)
}

// matchRoutes returns routes at m.Path whose methods are all among m.Methods
func matchRoutes(routes []*Route, m structure.EndpointMatch, deleted bool) []*Route {
	var out []*Route
	for _, r := range routes {
		if r.deleted != deleted || !samePath(r.Path, m.Path) {
			continue
		}
		if m.FuncName != "" && r.Name != m.FuncName {
			continue
		}
		subset := true
		for _, method := range r.Methods {
			if !containsString(m.Methods, method) {
				subset = false
				break
			}
		}
		if subset {
			out = append(out, r)
		}
	}
	return out
}

func methodsCovered(m structure.EndpointMatch, matched []*Route, problem string) *structure.Error {
	covered := make(map[string]bool)
	for _, r := range matched {
		for _, method := range r.Methods {
			covered[method] = true
		}
	}
	var missing []string
	for _, method := range m.Methods {
		if !covered[method] {
			missing = append(missing, method)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return structure.Errorf(structure.ErrGeneration, "endpoint %q with methods %v %s", m.Path, missing, problem)
}

func cloneRoutes(routes []*Route) []*Route {
	out := make([]*Route, len(routes))
	for i, r := range routes {
		out[i] = r.clone()
	}
	return out
}

func sortedCopy(list []string) []string {
	out := append([]string{}, list...)
	sort.Strings(out)
	return out
}

// Versioned holds the head router and one router per declared version
type Versioned struct {
	head     *VersionRouter
	versions map[structure.Date]*VersionRouter
	order    []structure.Date
}

// Head returns the router serving requests without a version
func (v *Versioned) Head() *VersionRouter {
	return v.head
}

// Version returns the router of a declared version
func (v *Versioned) Version(d structure.Date) (*VersionRouter, bool) {
	r, ok := v.versions[d]
	return r, ok
}

// Dates returns the declared versions newest first
func (v *Versioned) Dates() []structure.Date {
	return v.order
}

// VersionRouter is the route table of one version
type VersionRouter struct {
	version   structure.Date
	endpoints []*Endpoint
}

// Version returns the version date, zero for head
func (vr *VersionRouter) Version() structure.Date {
	return vr.version
}

// Endpoints returns the served endpoints in head registration order
func (vr *VersionRouter) Endpoints() []*Endpoint {
	return vr.endpoints
}

// Routes returns the route definitions as served in this version
func (vr *VersionRouter) Routes() []*Route {
	out := make([]*Route, len(vr.endpoints))
	for i, e := range vr.endpoints {
		out[i] = e.route
	}
	return out
}

// Lookup returns the endpoint serving method at the exact path template
func (vr *VersionRouter) Lookup(method, path string) (*Endpoint, bool) {
	for _, e := range vr.endpoints {
		if samePath(e.route.Path, path) && containsString(e.route.Methods, method) {
			return e, true
		}
	}
	return nil, false
}

// Mount registers every endpoint on r
func (vr *VersionRouter) Mount(r *mux.Router) {
	for _, e := range vr.endpoints {
		r.Handle(e.route.Path, e).Methods(e.route.Methods...)
	}
}

// Handler returns a gorilla/mux router serving only this version
func (vr *VersionRouter) Handler() *mux.Router {
	r := mux.NewRouter()
	vr.Mount(r)
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	return r
}
