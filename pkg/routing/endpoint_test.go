package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rewind/pkg/structure"
)

func renameKey(body interface{}, from, to string) {
	switch b := body.(type) {
	case map[string]interface{}:
		if v, ok := b[from]; ok {
			b[to] = v
			delete(b, from)
		}
	case []interface{}:
		for _, item := range b {
			renameKey(item, from, to)
		}
	}
}

func renameVersions(t *testing.T) *Versioned {
	t.Helper()
	change := vc(t, "rename name to full_name",
		structure.Schema(user).Field("name").Had(structure.FieldChanges{NewName: "full_name"}),
		structure.Schema(userCreate).Field("name").Had(structure.FieldChanges{NewName: "full_name"}),
		structure.ConvertRequestToNextVersionFor(func(r *structure.RequestInfo) error {
			renameKey(r.Body, "full_name", "name")
			return nil
		}, userCreate),
		structure.ConvertResponseToPreviousVersionFor(func(r *structure.ResponseInfo) error {
			renameKey(r.Body, "name", "full_name")
			return nil
		}, user),
		structure.ConvertResponseToPreviousVersionForPath("/users/{id}", []string{"GET"}, func(r *structure.ResponseInfo) error {
			if r.StatusCode == http.StatusNotFound {
				r.Body.(map[string]interface{})["detail"] = "no such user"
				r.Headers.Set("X-Legacy", "1")
				r.SetCookie(&http.Cookie{Name: "legacy", Value: "1"})
			}
			return nil
		}).WithHTTPErrors(),
	)
	res, err := generate(t, headRouter(), structure.NewVersion(v2001, change), structure.NewVersion(v2000))
	require.NoError(t, err)
	return res
}

func serve(t *testing.T, vr *VersionRouter, version structure.Date, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if !version.IsZero() {
		req = req.WithContext(structure.WithAPIVersion(req.Context(), version))
	}
	rec := httptest.NewRecorder()
	vr.Handler().ServeHTTP(rec, req)
	return rec
}

func TestEndpoint_MigratesBothWays(t *testing.T) {
	res := renameVersions(t)
	tests := []struct {
		name    string
		version structure.Date
		router  func() *VersionRouter
		body    string
		want    string
	}{
		{
			name:    "old client",
			version: v2000,
			router:  func() *VersionRouter { vr, _ := res.Version(v2000); return vr },
			body:    `{"full_name":"Ada"}`,
			want:    `{"full_name":"Ada","id":1}`,
		},
		{
			name:    "latest client",
			version: v2001,
			router:  func() *VersionRouter { vr, _ := res.Version(v2001); return vr },
			body:    `{"name":"Ada"}`,
			want:    `{"id":1,"name":"Ada"}`,
		},
		{
			name:   "head",
			router: res.Head,
			body:   `{"name":"Ada"}`,
			want:   `{"id":1,"name":"Ada"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.router(), tt.version, http.MethodPost, "/users", tt.body)
			assert.Equal(t, http.StatusCreated, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
			assert.Equal(t, strconv.Itoa(len(tt.want)), rec.Header().Get("Content-Length"))
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestEndpoint_ValidatesAgainstVersionSchema(t *testing.T) {
	res := renameVersions(t)
	old, _ := res.Version(v2000)

	rec := serve(t, old, v2000, http.MethodPost, "/users", `{"name":"Ada"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var out struct {
		Detail []struct {
			Loc  []string `json:"loc"`
			Type string   `json:"type"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Detail, 1)
	assert.Equal(t, []string{"body", "full_name"}, out.Detail[0].Loc)
	assert.Equal(t, "value_error.missing", out.Detail[0].Type)
}

func TestEndpoint_InvalidJSON(t *testing.T) {
	res := renameVersions(t)
	rec := serve(t, res.Head(), structure.Date{}, http.MethodPost, "/users", `{"name":`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "value_error.jsondecode")
}

func TestEndpoint_HandlerError(t *testing.T) {
	res := renameVersions(t)
	old, _ := res.Version(v2000)
	rec := serve(t, old, v2000, http.MethodPost, "/users", `{"full_name":"fail"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal Server Error"}`, rec.Body.String())
}

func TestEndpoint_HTTPErrorMigration(t *testing.T) {
	res := renameVersions(t)
	old, _ := res.Version(v2000)
	latest, _ := res.Version(v2001)

	rec := serve(t, old, v2000, http.MethodGet, "/users/7", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, `{"detail":"no such user"}`, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-Legacy"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "legacy", cookies[0].Name)

	rec = serve(t, latest, v2001, http.MethodGet, "/users/7", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, `{"detail":"user not found"}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Legacy"))
}

func TestEndpoint_FiltersListResponses(t *testing.T) {
	res := renameVersions(t)
	old, _ := res.Version(v2000)

	rec := serve(t, old, v2000, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `[{"full_name":"Ada","id":1},{"full_name":"Grace","id":2}]`, rec.Body.String())
}

func TestEndpoint_CustomResponse(t *testing.T) {
	router := NewRouter()
	router.Get("/ping", "ping", func(_ context.Context, _ *Request) (interface{}, error) {
		return &Response{
			StatusCode: http.StatusAccepted,
			Headers:    http.Header{"X-Pong": []string{"yes"}},
			Body:       map[string]interface{}{"pong": "<ok>"},
		}, nil
	})
	res, err := generate(t, router, structure.NewVersion(v2000))
	require.NoError(t, err)
	vr, _ := res.Version(v2000)

	rec := serve(t, vr, v2000, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Pong"))
	assert.Equal(t, `{"pong":"<ok>"}`, rec.Body.String())
}

func TestEndpoint_NotFoundAndMethodNotAllowed(t *testing.T) {
	res := renameVersions(t)
	rec := serve(t, res.Head(), structure.Date{}, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, res.Head(), structure.Date{}, http.MethodDelete, "/users", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
