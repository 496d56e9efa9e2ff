package structure

import (
	"net/http"
	"net/url"

	"github.com/platinummonkey/rewind/pkg/schema"
)

// RequestInfo is the mutable view of a request handed to request converters.
// Converters mutate it in place.
type RequestInfo struct {
	Body        interface{}
	Headers     http.Header
	Cookies     map[string]string
	QueryParams url.Values
}

// ResponseInfo is the mutable view of a response handed to response converters.
type ResponseInfo struct {
	Body       interface{}
	Headers    http.Header
	StatusCode int

	cookies []*http.Cookie
}

// SetCookie adds a Set-Cookie to the migrated response
func (r *ResponseInfo) SetCookie(c *http.Cookie) {
	r.cookies = append(r.cookies, c)
}

// DeleteCookie expires the named cookie on the client
func (r *ResponseInfo) DeleteCookie(name string) {
	r.cookies = append(r.cookies, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
}

// Cookies returns the cookies set by converters, in the order they were set
func (r *ResponseInfo) Cookies() []*http.Cookie {
	return r.cookies
}

// RequestTransformer migrates a request one version forward
type RequestTransformer func(*RequestInfo) error

// ResponseTransformer migrates a response one version back
type ResponseTransformer func(*ResponseInfo) error

// AlterRequestBySchema migrates request bodies of the given schemas.
type AlterRequestBySchema struct {
	meta
	Schemas     []schema.ID
	Transformer RequestTransformer
	CheckUsage  bool
}

// AlterRequestByPath migrates requests sent to path with one of methods.
type AlterRequestByPath struct {
	meta
	Path        string
	Methods     []string
	Transformer RequestTransformer
}

// AlterResponseBySchema migrates response bodies of the given schemas.
type AlterResponseBySchema struct {
	meta
	Schemas           []schema.ID
	Transformer       ResponseTransformer
	MigrateHTTPErrors bool
	CheckUsage        bool
}

// AlterResponseByPath migrates responses of path for one of methods.
type AlterResponseByPath struct {
	meta
	Path              string
	Methods           []string
	Transformer       ResponseTransformer
	MigrateHTTPErrors bool
}

// ConvertRequestToNextVersionFor registers fn for request bodies of schemas
func ConvertRequestToNextVersionFor(fn RequestTransformer, schemas ...schema.ID) *AlterRequestBySchema {
	in := &AlterRequestBySchema{Schemas: schemas, Transformer: fn, CheckUsage: true}
	if len(schemas) == 0 {
		in.fail("request converter requires at least one schema")
	}
	if fn == nil {
		in.fail("request converter requires a transformer")
	}
	return in
}

// ConvertRequestToNextVersionForPath registers fn for requests to path
func ConvertRequestToNextVersionForPath(path string, methods []string, fn RequestTransformer) *AlterRequestByPath {
	in := &AlterRequestByPath{Path: path, Transformer: fn}
	normalized, err := normalizeMethods(methods)
	if err != "" {
		in.fail("request converter for %q: %s", path, err)
	}
	in.Methods = normalized
	if fn == nil {
		in.fail("request converter for %q requires a transformer", path)
	}
	return in
}

// ConvertResponseToPreviousVersionFor registers fn for response bodies of schemas
func ConvertResponseToPreviousVersionFor(fn ResponseTransformer, schemas ...schema.ID) *AlterResponseBySchema {
	in := &AlterResponseBySchema{Schemas: schemas, Transformer: fn, CheckUsage: true}
	if len(schemas) == 0 {
		in.fail("response converter requires at least one schema")
	}
	if fn == nil {
		in.fail("response converter requires a transformer")
	}
	return in
}

// ConvertResponseToPreviousVersionForPath registers fn for responses of path
func ConvertResponseToPreviousVersionForPath(path string, methods []string, fn ResponseTransformer) *AlterResponseByPath {
	in := &AlterResponseByPath{Path: path, Transformer: fn}
	normalized, err := normalizeMethods(methods)
	if err != "" {
		in.fail("response converter for %q: %s", path, err)
	}
	in.Methods = normalized
	if fn == nil {
		in.fail("response converter for %q requires a transformer", path)
	}
	return in
}

// WithHTTPErrors makes the converter also apply to responses with status >= 300
func (a *AlterResponseBySchema) WithHTTPErrors() *AlterResponseBySchema {
	a.MigrateHTTPErrors = true
	return a
}

// WithoutUsageCheck allows the converter's schemas to be unused by any route
func (a *AlterResponseBySchema) WithoutUsageCheck() *AlterResponseBySchema {
	a.CheckUsage = false
	return a
}

// WithoutUsageCheck allows the converter's schemas to be unused by any route
func (a *AlterRequestBySchema) WithoutUsageCheck() *AlterRequestBySchema {
	a.CheckUsage = false
	return a
}

// WithHTTPErrors makes the converter also apply to responses with status >= 300
func (a *AlterResponseByPath) WithHTTPErrors() *AlterResponseByPath {
	a.MigrateHTTPErrors = true
	return a
}

// Applies reports whether the converter runs for a response with status
func (a *AlterResponseBySchema) Applies(status int) bool {
	return status < 300 || a.MigrateHTTPErrors
}

// Applies reports whether the converter runs for a response with status
func (a *AlterResponseByPath) Applies(status int) bool {
	return status < 300 || a.MigrateHTTPErrors
}

// HasMethod reports whether the converter is registered for method
func (a *AlterRequestByPath) HasMethod(method string) bool {
	return containsString(a.Methods, method)
}

// HasMethod reports whether the converter is registered for method
func (a *AlterResponseByPath) HasMethod(method string) bool {
	return containsString(a.Methods, method)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
