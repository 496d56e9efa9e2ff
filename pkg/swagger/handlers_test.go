package swagger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) *mux.Router {
	t.Helper()
	versioned, schemas := fixture(t)
	h, err := NewHandlers(versioned, schemas, Info{Title: "Users API"})
	require.NoError(t, err)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func TestNewHandlers_Documents(t *testing.T) {
	versioned, schemas := fixture(t)
	h, err := NewHandlers(versioned, schemas, Info{Title: "Users API"})
	require.NoError(t, err)

	for _, v := range []string{HeadVersion, "2001-01-01", "2000-01-01"} {
		doc, ok := h.Document(v)
		require.True(t, ok, v)
		assert.Equal(t, v, doc.Info.Version)
		assert.Equal(t, "Users API", doc.Info.Title)
	}
	_, ok := h.Document("1999-01-01")
	assert.False(t, ok)
}

func TestRegisterRoutes(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		contentType    string
		contains       string
	}{
		{
			name:           "head JSON",
			path:           "/openapi.json",
			expectedStatus: http.StatusOK,
			contentType:    "application/json",
			contains:       `"version":"head"`,
		},
		{
			name:           "version JSON",
			path:           "/openapi.json?version=2000-01-01",
			expectedStatus: http.StatusOK,
			contentType:    "application/json",
			contains:       `"Person"`,
		},
		{
			name:           "YAML",
			path:           "/openapi.yaml?version=2001-01-01",
			expectedStatus: http.StatusOK,
			contentType:    "application/yaml",
			contains:       "openapi: 3.0.3",
		},
		{
			name:           "unknown version",
			path:           "/openapi.json?version=1999-01-01",
			expectedStatus: http.StatusNotFound,
			contentType:    "application/json",
			contains:       "no API version 1999-01-01",
		},
		{
			name:           "Swagger UI",
			path:           "/docs",
			expectedStatus: http.StatusOK,
			contentType:    "text/html; charset=utf-8",
			contains:       "2000-01-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestServeOpenAPISpecJSON_Decodes(t *testing.T) {
	router := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/openapi.json?version=2001-01-01", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc.Paths["/users/{id}"], "delete")
	assert.Contains(t, doc.Components.Schemas, "User")
}
