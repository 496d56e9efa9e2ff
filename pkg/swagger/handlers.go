package swagger

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/rewind/pkg/httputil"
	"github.com/platinummonkey/rewind/pkg/routing"
	"github.com/platinummonkey/rewind/pkg/schemagen"
	"github.com/platinummonkey/rewind/pkg/structure"
)

// HeadVersion selects the head document
const HeadVersion = "head"

// Handlers serves one OpenAPI document per API version
type Handlers struct {
	docs     map[string]*Document
	versions []string
	title    string
}

// NewHandlers generates the documents of head and every version of versioned
func NewHandlers(versioned *routing.Versioned, schemas *schemagen.Result, info Info) (*Handlers, error) {
	h := &Handlers{docs: make(map[string]*Document), title: info.Title}

	headInfo := info
	headInfo.Version = HeadVersion
	doc, err := Generate(versioned.Head(), schemas.Head(), headInfo)
	if err != nil {
		return nil, err
	}
	h.docs[HeadVersion] = doc
	h.versions = append(h.versions, HeadVersion)

	for _, d := range versioned.Dates() {
		vr, _ := versioned.Version(d)
		vs, ok := schemas.Version(d)
		if !ok {
			return nil, structure.Errorf(structure.ErrGeneration, "version %s has no projected schemas", d)
		}
		vinfo := info
		vinfo.Version = d.String()
		doc, err := Generate(vr, vs, vinfo)
		if err != nil {
			return nil, err
		}
		h.docs[d.String()] = doc
		h.versions = append(h.versions, d.String())
	}
	return h, nil
}

// Document returns the document of version, "head" or a YYYY-MM-DD date
func (h *Handlers) Document(version string) (*Document, bool) {
	doc, ok := h.docs[version]
	return doc, ok
}

// RegisterRoutes registers the document and UI routes with the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/openapi.json", h.serveOpenAPISpecJSON).Methods(http.MethodGet)
	router.HandleFunc("/openapi.yaml", h.serveOpenAPISpec).Methods(http.MethodGet)
	router.HandleFunc("/docs", h.serveSwaggerUI).Methods(http.MethodGet)
}

func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*Document, bool) {
	version := httputil.ParseQueryString(r, "version", HeadVersion)
	doc, ok := h.docs[version]
	if !ok {
		httputil.WriteDetail(w, http.StatusNotFound, "no API version "+version)
	}
	return doc, ok
}

// serveOpenAPISpecJSON serves ?version= as JSON
func (h *Handlers) serveOpenAPISpecJSON(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, doc)
}

// serveOpenAPISpec serves ?version= as YAML
func (h *Handlers) serveOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if err := enc.Close(); err != nil {
		httputil.WriteInternalError(w)
		return
	}
	_ = httputil.WriteBody(w, http.StatusOK, http.Header{"Content-Type": []string{"application/yaml"}}, buf.Bytes())
}

type uiData struct {
	Title string
	URLs  []uiURL
}

type uiURL struct {
	URL  string
	Name string
}

var uiTemplate = template.Must(template.New("swagger").Parse(swaggerUITemplate))

// serveSwaggerUI serves a Swagger UI page with one entry per version, paths
// relative to the page
func (h *Handlers) serveSwaggerUI(w http.ResponseWriter, r *http.Request) {
	data := uiData{Title: h.title}
	for i := len(h.versions) - 1; i >= 0; i-- {
		v := h.versions[i]
		data.URLs = append(data.URLs, uiURL{URL: "openapi.json?version=" + v, Name: v})
	}

	var buf bytes.Buffer
	if err := uiTemplate.Execute(&buf, data); err != nil {
		httputil.WriteInternalError(w)
		return
	}
	_ = httputil.WriteBody(w, http.StatusOK, http.Header{"Content-Type": []string{"text/html; charset=utf-8"}}, buf.Bytes())
}

const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{ .Title }} - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui.css" />
  <style>
    html { box-sizing: border-box; overflow-y: scroll; }
    *, *:before, *:after { box-sizing: inherit; }
    body { margin: 0; padding: 0; }
  </style>
</head>
<body>
<div id="swagger-ui"></div>

<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-bundle.js" charset="UTF-8"></script>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-standalone-preset.js" charset="UTF-8"></script>
<script>
window.onload = function() {
  window.ui = SwaggerUIBundle({
    urls: [
      {{- range $i, $u := .URLs }}{{ if $i }},{{ end }}
      { url: {{ $u.URL }}, name: {{ $u.Name }} }
      {{- end }}
    ],
    dom_id: '#swagger-ui',
    deepLinking: true,
    presets: [
      SwaggerUIBundle.presets.apis,
      SwaggerUIStandalonePreset
    ],
    layout: "StandaloneLayout"
  });
};
</script>
</body>
</html>`
