package swagger

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/platinummonkey/rewind/pkg/routing"
	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/schemagen"
)

// OpenAPIVersion is the OpenAPI release the documents follow
const OpenAPIVersion = "3.0.3"

// Document is an OpenAPI document describing one API version
type Document struct {
	OpenAPI    string              `json:"openapi" yaml:"openapi"`
	Info       Info                `json:"info" yaml:"info"`
	Paths      map[string]PathItem `json:"paths" yaml:"paths"`
	Components Components          `json:"components" yaml:"components"`
}

// Info is the document metadata
type Info struct {
	Title       string `json:"title" yaml:"title"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// PathItem maps lower-case HTTP methods to operations
type PathItem map[string]*Operation

// Operation describes one method of one path
type Operation struct {
	OperationID string              `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Summary     string              `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string            `json:"tags,omitempty" yaml:"tags,omitempty"`
	Deprecated  bool                `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses" yaml:"responses"`
}

// Parameter is a path parameter
type Parameter struct {
	Name     string  `json:"name" yaml:"name"`
	In       string  `json:"in" yaml:"in"`
	Required bool    `json:"required" yaml:"required"`
	Schema   *Schema `json:"schema" yaml:"schema"`
}

// RequestBody describes the JSON body an operation accepts
type RequestBody struct {
	Required bool                 `json:"required" yaml:"required"`
	Content  map[string]MediaType `json:"content" yaml:"content"`
}

// Response describes one response status
type Response struct {
	Description string               `json:"description" yaml:"description"`
	Content     map[string]MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// MediaType holds the schema of one content type
type MediaType struct {
	Schema *Schema `json:"schema" yaml:"schema"`
}

// Components holds the named schemas referenced by operations
type Components struct {
	Schemas map[string]*Schema `json:"schemas" yaml:"schemas"`
}

// Schema is the subset of the OpenAPI schema object the projection needs
type Schema struct {
	Ref                  string             `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Type                 string             `json:"type,omitempty" yaml:"type,omitempty"`
	Title                string             `json:"title,omitempty" yaml:"title,omitempty"`
	Description          string             `json:"description,omitempty" yaml:"description,omitempty"`
	Nullable             bool               `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Deprecated           bool               `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Default              interface{}        `json:"default,omitempty" yaml:"default,omitempty"`
	Enum                 []interface{}      `json:"enum,omitempty" yaml:"enum,omitempty"`
	Items                *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required             []string           `json:"required,omitempty" yaml:"required,omitempty"`
	AllOf                []*Schema          `json:"allOf,omitempty" yaml:"allOf,omitempty"`
}

var pathParam = regexp.MustCompile(`\{([^}:]+)(?::[^}]*)?\}`)

const jsonContent = "application/json"

// Generate describes the routes of vr with the schemas of the same version.
// Routes excluded from the schema are left out.
func Generate(vr *routing.VersionRouter, vs *schemagen.VersionSchemas, info Info) (*Document, error) {
	g := &builder{vs: vs, components: make(map[string]*Schema), seen: make(map[schema.ID]bool)}
	doc := &Document{OpenAPI: OpenAPIVersion, Info: info, Paths: make(map[string]PathItem)}

	for _, r := range vr.Routes() {
		if !r.IncludeInSchema {
			continue
		}
		path := pathParam.ReplaceAllString(r.Path, "{$1}")
		item, ok := doc.Paths[path]
		if !ok {
			item = make(PathItem)
			doc.Paths[path] = item
		}
		for _, method := range r.Methods {
			op, err := g.operation(r)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", method, r.Path, err)
			}
			item[strings.ToLower(method)] = op
		}
	}
	doc.Components.Schemas = g.components
	return doc, nil
}

type builder struct {
	vs         *schemagen.VersionSchemas
	components map[string]*Schema
	seen       map[schema.ID]bool
}

func (g *builder) operation(r *routing.Route) (*Operation, error) {
	op := &Operation{
		OperationID: r.OperationID,
		Summary:     r.Summary,
		Description: r.Description,
		Tags:        r.Tags,
		Deprecated:  r.Deprecated,
		Responses:   make(map[string]Response),
	}
	if op.OperationID == "" {
		op.OperationID = r.Name
	}
	for _, m := range pathParam.FindAllStringSubmatch(r.Path, -1) {
		op.Parameters = append(op.Parameters, Parameter{Name: m[1], In: "path", Required: true, Schema: &Schema{Type: "string"}})
	}

	if r.RequestSchema != "" {
		ref, err := g.ref(r.RequestSchema)
		if err != nil {
			return nil, err
		}
		op.RequestBody = &RequestBody{Required: true, Content: map[string]MediaType{jsonContent: {Schema: ref}}}
		op.Responses[strconv.Itoa(http.StatusUnprocessableEntity)] = Response{Description: "Validation Error"}
	}

	success := Response{Description: http.StatusText(r.StatusCode)}
	if r.ResponseSchema != "" {
		ref, err := g.ref(r.ResponseSchema)
		if err != nil {
			return nil, err
		}
		success.Content = map[string]MediaType{jsonContent: {Schema: ref}}
	}
	op.Responses[strconv.Itoa(r.StatusCode)] = success
	return op, nil
}

// ref returns a reference to the component for id, adding it and everything
// it references on first use
func (g *builder) ref(id schema.ID) (*Schema, error) {
	if e, ok := g.vs.Enum(id); ok {
		if !g.seen[id] {
			g.seen[id] = true
			g.components[e.Name] = enumSchema(e)
		}
		return &Schema{Ref: "#/components/schemas/" + e.Name}, nil
	}

	model, ok := g.vs.Model(id)
	if !ok {
		return nil, fmt.Errorf("schema %q does not exist in version %s", id, g.vs.Version())
	}
	if g.seen[id] {
		return &Schema{Ref: "#/components/schemas/" + model.Name}, nil
	}
	g.seen[id] = true

	obj := &Schema{Type: "object", Title: model.Name, Properties: make(map[string]*Schema)}
	g.components[model.Name] = obj
	for _, f := range model.Fields {
		prop, err := g.typeSchema(f.Type)
		if err != nil {
			return nil, err
		}
		if desc, ok := f.Get(schema.AttrDescription); ok {
			prop.Description = fmt.Sprint(desc)
		}
		if title, ok := f.Get(schema.AttrTitle); ok {
			prop.Title = fmt.Sprint(title)
		}
		if dep, ok := f.Get(schema.AttrDeprecated); ok && dep == true {
			prop.Deprecated = true
		}
		if def, ok := f.Get(schema.AttrDefault); ok {
			prop.Default = def
		}
		obj.Properties[f.JSONName()] = prop
		if f.Required() {
			obj.Required = append(obj.Required, f.JSONName())
		}
	}
	sort.Strings(obj.Required)
	return &Schema{Ref: "#/components/schemas/" + model.Name}, nil
}

func (g *builder) typeSchema(t schema.Type) (*Schema, error) {
	var s *Schema
	switch t.Kind {
	case schema.KindAny:
		s = &Schema{}
	case schema.KindString:
		s = &Schema{Type: "string"}
	case schema.KindInt:
		s = &Schema{Type: "integer"}
	case schema.KindFloat:
		s = &Schema{Type: "number"}
	case schema.KindBool:
		s = &Schema{Type: "boolean"}
	case schema.KindList, schema.KindMap:
		elem, err := g.typeSchema(*t.Elem)
		if err != nil {
			return nil, err
		}
		if t.Kind == schema.KindList {
			s = &Schema{Type: "array", Items: elem}
		} else {
			s = &Schema{Type: "object", AdditionalProperties: elem}
		}
	case schema.KindSchema, schema.KindEnum:
		ref, err := g.ref(t.Ref)
		if err != nil {
			return nil, err
		}
		if !t.Nullable {
			return ref, nil
		}
		// siblings of $ref are ignored, so a nullable reference needs a wrapper
		return &Schema{Nullable: true, AllOf: []*Schema{ref}}, nil
	default:
		return nil, fmt.Errorf("unsupported field type %s", t)
	}
	s.Nullable = t.Nullable
	return s, nil
}

func enumSchema(e *schema.Enum) *Schema {
	s := &Schema{Title: e.Name, Type: "string"}
	for _, m := range e.Members {
		s.Enum = append(s.Enum, m.Value)
		switch m.Value.(type) {
		case int, int32, int64:
			s.Type = "integer"
		}
	}
	return s
}
