package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/platinummonkey/rewind/pkg/schema"
)

// HandlerFunc is a head handler. It receives the request already migrated to
// head and returns a head-shaped body, a *Response or an error. Returning
// *HTTPError produces an error response that is still migrated back.
type HandlerFunc func(ctx context.Context, req *Request) (interface{}, error)

// Request is the head view of an incoming request
type Request struct {
	// Body is the validated head payload, nil when the route takes no body
	Body       interface{}
	PathParams map[string]string
	Query      url.Values
	Headers    http.Header
	Cookies    map[string]string
	HTTP       *http.Request
}

// Decode re-encodes the body into v
func (r *Request) Decode(v interface{}) error {
	raw, err := json.Marshal(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Response lets a handler choose the status code and headers
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       interface{}
}

// HTTPError is an expected failure with a client facing detail
type HTTPError struct {
	StatusCode int
	Detail     interface{}
	Headers    http.Header
}

// NewHTTPError creates an HTTPError
func NewHTTPError(status int, detail interface{}) *HTTPError {
	return &HTTPError{StatusCode: status, Detail: detail}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %v", e.StatusCode, http.StatusText(e.StatusCode), e.Detail)
}

// Route is one endpoint definition. A head router holds the head routes;
// every versioned router holds its own copies.
type Route struct {
	Path            string
	Methods         []string
	Name            string
	Handler         HandlerFunc
	RequestSchema   schema.ID
	ResponseSchema  schema.ID
	StatusCode      int
	Tags            []string
	Summary         string
	Description     string
	Deprecated      bool
	IncludeInSchema bool
	OperationID     string

	index   int
	deleted bool
}

// RouteOption configures a route
type RouteOption func(*Route)

// WithRequestSchema sets the head schema of the request body
func WithRequestSchema(id schema.ID) RouteOption {
	return func(r *Route) { r.RequestSchema = id }
}

// WithResponseSchema sets the head schema of the response body; list bodies
// are validated item by item
func WithResponseSchema(id schema.ID) RouteOption {
	return func(r *Route) { r.ResponseSchema = id }
}

// WithStatusCode sets the default success status
func WithStatusCode(code int) RouteOption {
	return func(r *Route) { r.StatusCode = code }
}

// WithTags sets the route tags
func WithTags(tags ...string) RouteOption {
	return func(r *Route) { r.Tags = tags }
}

// WithSummary sets the route summary
func WithSummary(s string) RouteOption {
	return func(r *Route) { r.Summary = s }
}

// WithDescription sets the route description
func WithDescription(s string) RouteOption {
	return func(r *Route) { r.Description = s }
}

// WithOperationID sets the route operation ID
func WithOperationID(s string) RouteOption {
	return func(r *Route) { r.OperationID = s }
}

// Deprecated marks the route deprecated
func Deprecated() RouteOption {
	return func(r *Route) { r.Deprecated = true }
}

// ExcludeFromSchema hides the route from generated API descriptions
func ExcludeFromSchema() RouteOption {
	return func(r *Route) { r.IncludeInSchema = false }
}

func (r *Route) clone() *Route {
	c := *r
	c.Methods = append([]string{}, r.Methods...)
	if r.Tags != nil {
		c.Tags = append([]string{}, r.Tags...)
	}
	return &c
}

func (r *Route) hasMethods(methods []string) bool {
	for _, m := range methods {
		if !containsString(r.Methods, m) {
			return false
		}
	}
	return true
}

func (r *Route) String() string {
	return fmt.Sprintf("%s %s (%s)", strings.Join(r.Methods, ","), r.Path, r.Name)
}

// Router collects head routes in registration order
type Router struct {
	routes []*Route
	errs   []error
}

// NewRouter creates an empty head router
func NewRouter() *Router {
	return &Router{}
}

// Handle registers a route. Invalid definitions are reported by Generate.
func (r *Router) Handle(path string, methods []string, name string, h HandlerFunc, opts ...RouteOption) *Route {
	route := &Route{
		Path:            path,
		Name:            name,
		Handler:         h,
		StatusCode:      http.StatusOK,
		IncludeInSchema: true,
		index:           len(r.routes),
	}
	for _, m := range methods {
		m = strings.ToUpper(m)
		if !containsString(route.Methods, m) {
			route.Methods = append(route.Methods, m)
		}
	}
	for _, opt := range opts {
		opt(route)
	}
	switch {
	case path == "" || !strings.HasPrefix(path, "/"):
		r.errs = append(r.errs, fmt.Errorf("route %q: path must start with '/'", path))
	case len(route.Methods) == 0:
		r.errs = append(r.errs, fmt.Errorf("route %s: at least one method is required", path))
	case h == nil:
		r.errs = append(r.errs, fmt.Errorf("route %s: handler is required", route))
	}
	r.routes = append(r.routes, route)
	return route
}

// Get registers a GET route
func (r *Router) Get(path, name string, h HandlerFunc, opts ...RouteOption) *Route {
	return r.Handle(path, []string{http.MethodGet}, name, h, opts...)
}

// Post registers a POST route
func (r *Router) Post(path, name string, h HandlerFunc, opts ...RouteOption) *Route {
	return r.Handle(path, []string{http.MethodPost}, name, h, opts...)
}

// Put registers a PUT route
func (r *Router) Put(path, name string, h HandlerFunc, opts ...RouteOption) *Route {
	return r.Handle(path, []string{http.MethodPut}, name, h, opts...)
}

// Patch registers a PATCH route
func (r *Router) Patch(path, name string, h HandlerFunc, opts ...RouteOption) *Route {
	return r.Handle(path, []string{http.MethodPatch}, name, h, opts...)
}

// Delete registers a DELETE route
func (r *Router) Delete(path, name string, h HandlerFunc, opts ...RouteOption) *Route {
	return r.Handle(path, []string{http.MethodDelete}, name, h, opts...)
}

// OnlyExistsInOlderVersions removes the named routes from head and the
// latest versions. Some older version must restore them with
// Endpoint(...).Existed().
func (r *Router) OnlyExistsInOlderVersions(name string) error {
	found := false
	for _, route := range r.routes {
		if route.Name != name {
			continue
		}
		found = true
		if route.deleted {
			return fmt.Errorf("route %s is already marked as existing only in older versions", route)
		}
		route.deleted = true
	}
	if !found {
		return fmt.Errorf("no route named %q", name)
	}
	return nil
}

// Routes returns the registered routes, including those that only exist in older versions
func (r *Router) Routes() []*Route {
	return r.routes
}

var pathParam = regexp.MustCompile(`\{([^{}:]+)(?::[^{}]*)?\}`)

// pathParams returns the sorted parameter names of a mux path template
func pathParams(path string) []string {
	var names []string
	for _, m := range pathParam.FindAllStringSubmatch(path, -1) {
		names = append(names, strings.TrimSpace(m[1]))
	}
	sort.Strings(names)
	return names
}

func samePath(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
