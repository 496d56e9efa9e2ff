package routing

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/rewind/pkg/httputil"
	"github.com/platinummonkey/rewind/pkg/migration"
	"github.com/platinummonkey/rewind/pkg/observability"
	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/schemagen"
	"github.com/platinummonkey/rewind/pkg/structure"
)

// Endpoint serves one route of one version. It validates the request
// against the version's schemas, migrates it to head, calls the head handler
// and migrates the answer back.
type Endpoint struct {
	route    *Route
	head     *Route
	version  structure.Date
	schemas  *schemagen.VersionSchemas
	migrator *migration.Migrator
}

// Route returns the route as served in this version
func (e *Endpoint) Route() *Route {
	return e.route
}

// HeadRoute returns the head route whose handler serves this endpoint
func (e *Endpoint) HeadRoute() *Route {
	return e.head
}

// ServeHTTP implements http.Handler
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"route":  e.route.Path,
		"method": r.Method,
	})

	version, ok := structure.APIVersionFromContext(ctx)
	if !ok {
		version = e.version
	}
	migrate := !version.IsZero() && !e.version.IsZero()

	var body interface{}
	if e.route.RequestSchema != "" {
		raw, err := httputil.DecodeJSON(r)
		if err != nil {
			httputil.WriteUnprocessable(w, []schema.FieldError{{
				Loc:  []string{"body"},
				Msg:  err.Error(),
				Type: "value_error.jsondecode",
			}})
			return
		}
		validated, err := e.schemas.Validate(e.route.RequestSchema, raw)
		if err != nil {
			writeValidationError(w, err, log)
			return
		}
		body = validated
	}

	info := &structure.RequestInfo{
		Body:        body,
		Headers:     r.Header.Clone(),
		Cookies:     httputil.Cookies(r),
		QueryParams: r.URL.Query(),
	}
	target := migration.Target{Path: e.route.Path, Method: r.Method, Schema: e.head.RequestSchema}
	if migrate {
		if err := e.migrator.MigrateRequest(ctx, version, target, info); err != nil {
			var hv *migration.HeadRequestValidationError
			if errors.As(err, &hv) {
				log.WithField("errors", hv.Errors).Error("Migrated request failed head validation")
			} else {
				log.WithError(err).Error("Request migration failed")
			}
			httputil.WriteInternalError(w)
			return
		}
		r.Header = info.Headers
		r.URL.RawQuery = info.QueryParams.Encode()
	}

	result, herr := e.head.Handler(ctx, &Request{
		Body:       info.Body,
		PathParams: httputil.PathVars(r),
		Query:      info.QueryParams,
		Headers:    info.Headers,
		Cookies:    info.Cookies,
		HTTP:       r,
	})

	resp := &structure.ResponseInfo{StatusCode: e.route.StatusCode, Headers: http.Header{}}
	var httpErr *HTTPError
	switch {
	case errors.As(herr, &httpErr):
		resp.StatusCode = httpErr.StatusCode
		if httpErr.Headers != nil {
			resp.Headers = httpErr.Headers.Clone()
		}
		resp.Body = map[string]interface{}{"detail": httpErr.Detail}
	case herr != nil:
		log.WithError(herr).Error("Handler failed")
		httputil.WriteInternalError(w)
		return
	default:
		if out, ok := result.(*Response); ok {
			if out.StatusCode != 0 {
				resp.StatusCode = out.StatusCode
			}
			if out.Headers != nil {
				resp.Headers = out.Headers.Clone()
			}
			result = out.Body
		}
		resp.Body = result
	}

	normalized, err := migration.Normalize(resp.Body)
	if err != nil {
		log.WithError(err).Error("Response body is not JSON encodable")
		httputil.WriteInternalError(w)
		return
	}
	resp.Body = normalized

	if migrate {
		target.Schema = e.head.ResponseSchema
		if err := e.migrator.MigrateResponse(ctx, version, target, resp); err != nil {
			log.WithError(err).Error("Response migration failed")
			httputil.WriteInternalError(w)
			return
		}
	}

	if httpErr != nil {
		if m, ok := resp.Body.(map[string]interface{}); ok {
			if detail, ok := m["detail"]; ok {
				resp.Body = map[string]interface{}{"detail": detail}
			}
		} else {
			resp.Body = map[string]interface{}{"detail": resp.Body}
		}
	} else if resp.StatusCode < 300 && e.route.ResponseSchema != "" {
		filtered, err := e.filterResponse(resp.Body)
		if err != nil {
			log.WithError(err).Error("Response failed validation")
			httputil.WriteInternalError(w)
			return
		}
		resp.Body = filtered
	}

	data, err := migration.Encode(resp.Body, resp.Headers)
	if err != nil {
		log.WithError(err).Error("Failed to encode response")
		httputil.WriteInternalError(w)
		return
	}
	for _, c := range resp.Cookies() {
		http.SetCookie(w, c)
	}
	if err := httputil.WriteBody(w, resp.StatusCode, resp.Headers, data); err != nil {
		log.WithError(err).Debug("Failed to write response")
	}
}

// filterResponse validates a success body against the version's response
// schema, dropping fields the version does not know. Lists are validated
// item by item.
func (e *Endpoint) filterResponse(body interface{}) (interface{}, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		out := make([]interface{}, len(b))
		for i, item := range b {
			v, err := e.schemas.Validate(e.route.ResponseSchema, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return e.schemas.Validate(e.route.ResponseSchema, body)
	}
}

func writeValidationError(w http.ResponseWriter, err error, log *observability.Logger) {
	var ve *schema.ValidationError
	if !errors.As(err, &ve) {
		log.WithError(err).Error("Request validation failed")
		httputil.WriteInternalError(w)
		return
	}
	out := make([]schema.FieldError, len(ve.Errors))
	for i, fe := range ve.Errors {
		fe.Loc = append([]string{"body"}, fe.Loc...)
		out[i] = fe
	}
	httputil.WriteUnprocessable(w, out)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteNotFound(w)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteMethodNotAllowed(w)
}
