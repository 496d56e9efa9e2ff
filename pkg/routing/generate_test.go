package routing

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rewind/pkg/migration"
	"github.com/platinummonkey/rewind/pkg/observability"
	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/schemagen"
	"github.com/platinummonkey/rewind/pkg/structure"
)

func TestGenerate_DeleteInOlderVersion(t *testing.T) {
	res, err := generate(t, headRouter(),
		structure.NewVersion(v2001, vc(t, "drop listing", structure.Endpoint("/users", "GET").DidntExist())),
		structure.NewVersion(v2000),
	)
	require.NoError(t, err)

	latest, _ := res.Version(v2001)
	_, ok := latest.Lookup(http.MethodGet, "/users")
	assert.True(t, ok)

	old, _ := res.Version(v2000)
	_, ok = old.Lookup(http.MethodGet, "/users")
	assert.False(t, ok)
	_, ok = old.Lookup(http.MethodPost, "/users")
	assert.True(t, ok, "POST /users is untouched")
	assert.Len(t, res.Head().Endpoints(), 3)
}

func TestGenerate_DeleteTwice(t *testing.T) {
	_, err := generate(t, headRouter(),
		structure.NewVersion(v2001, vc(t, "first", structure.Endpoint("/users", "GET").DidntExist())),
		structure.NewVersion(v2000, vc(t, "second", structure.Endpoint("/users", "GET").DidntExist())),
		structure.NewVersion(v1999),
	)
	require.ErrorIs(t, err, structure.ErrGeneration)
	assert.Contains(t, err.Error(), "already deleted in a newer version")

	var serr *structure.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "second", serr.VersionChange)
}

func TestGenerate_OnlyExistsInOlderVersions(t *testing.T) {
	router := headRouter()
	router.Get("/legacy", "legacy", listUsers)
	require.NoError(t, router.OnlyExistsInOlderVersions("legacy"))

	res, err := generate(t, router,
		structure.NewVersion(v2001, vc(t, "restore legacy", structure.Endpoint("/legacy", "GET").Existed())),
		structure.NewVersion(v2000),
	)
	require.NoError(t, err)

	_, ok := res.Head().Lookup(http.MethodGet, "/legacy")
	assert.False(t, ok)
	latest, _ := res.Version(v2001)
	_, ok = latest.Lookup(http.MethodGet, "/legacy")
	assert.False(t, ok)
	old, _ := res.Version(v2000)
	_, ok = old.Lookup(http.MethodGet, "/legacy")
	assert.True(t, ok)
}

func TestGenerate_NeverRestored(t *testing.T) {
	router := headRouter()
	router.Get("/legacy", "legacy", listUsers)
	require.NoError(t, router.OnlyExistsInOlderVersions("legacy"))

	_, err := generate(t, router, structure.NewVersion(v2001), structure.NewVersion(v2000))
	require.ErrorIs(t, err, structure.ErrGeneration)
	assert.Contains(t, err.Error(), "GET /legacy (legacy)")
}

func TestRouter_OnlyExistsInOlderVersionsErrors(t *testing.T) {
	router := headRouter()
	assert.Error(t, router.OnlyExistsInOlderVersions("missing"))
	require.NoError(t, router.OnlyExistsInOlderVersions("get_user"))
	assert.Error(t, router.OnlyExistsInOlderVersions("get_user"))
}

func TestGenerate_AmbiguousRestore(t *testing.T) {
	newRouter := func() *Router {
		router := NewRouter()
		router.Get("/things", "things_a", listUsers)
		router.Get("/things", "things_b", listUsers)
		require.NoError(t, router.OnlyExistsInOlderVersions("things_a"))
		require.NoError(t, router.OnlyExistsInOlderVersions("things_b"))
		return router
	}

	_, err := generate(t, newRouter(),
		structure.NewVersion(v2001, vc(t, "restore", structure.Endpoint("/things", "GET").Existed())),
		structure.NewVersion(v2000),
	)
	require.ErrorIs(t, err, structure.ErrInvalidInstruction)

	res, err := generate(t, newRouter(),
		structure.NewVersion(v2001, vc(t, "restore a", structure.Endpoint("/things", "GET").Named("things_a").Existed())),
		structure.NewVersion(v2000, vc(t, "restore b", structure.Endpoint("/things", "GET").Named("things_b").Existed())),
		structure.NewVersion(v1999),
	)
	require.NoError(t, err)
	old, _ := res.Version(v2000)
	assert.Equal(t, []string{"GET /things (things_a)"}, routeKeys(old))
	oldest, _ := res.Version(v1999)
	assert.Len(t, oldest.Endpoints(), 2)
}

func TestGenerate_PathChange(t *testing.T) {
	res, err := generate(t, headRouter(),
		structure.NewVersion(v2001, vc(t, "rename path",
			structure.Endpoint("/users/{id}", "GET").Had(structure.EndpointChanges{
				Path:       structure.Ptr("/people/{id}"),
				StatusCode: structure.Ptr(202),
			}),
		)),
		structure.NewVersion(v2000),
	)
	require.NoError(t, err)
	old, _ := res.Version(v2000)
	e, ok := old.Lookup(http.MethodGet, "/people/{id}")
	require.True(t, ok)
	assert.Equal(t, 202, e.Route().StatusCode)
	assert.Equal(t, "/users/{id}", e.HeadRoute().Path)

	latest, _ := res.Version(v2001)
	_, ok = latest.Lookup(http.MethodGet, "/users/{id}")
	assert.True(t, ok)
}

func TestGenerate_InvalidEndpointInstructions(t *testing.T) {
	tests := []struct {
		name        string
		instruction structure.Instruction
		kind        error
		message     string
	}{
		{
			name:        "path params changed",
			instruction: structure.Endpoint("/users/{id}", "GET").Had(structure.EndpointChanges{Path: structure.Ptr("/users/{user_id}")}),
			kind:        structure.ErrRouterPathParamsModified,
			message:     "path params",
		},
		{
			name:        "no-op path",
			instruction: structure.Endpoint("/users/{id}", "GET").Had(structure.EndpointChanges{Path: structure.Ptr("/users/{id}")}),
			kind:        structure.ErrInvalidInstruction,
			message:     "already has path",
		},
		{
			name:        "no-op status code",
			instruction: structure.Endpoint("/users", "POST").Had(structure.EndpointChanges{StatusCode: structure.Ptr(201)}),
			kind:        structure.ErrInvalidInstruction,
			message:     "already has status code",
		},
		{
			name:        "had on missing route",
			instruction: structure.Endpoint("/nope", "GET").Had(structure.EndpointChanges{Summary: structure.Ptr("x")}),
			kind:        structure.ErrGeneration,
			message:     "doesn't exist",
		},
		{
			name:        "delete uncovered method",
			instruction: structure.Endpoint("/users/{id}", "GET", "DELETE").DidntExist(),
			kind:        structure.ErrGeneration,
			message:     "[DELETE] doesn't exist in a newer version",
		},
		{
			name:        "restore active route",
			instruction: structure.Endpoint("/users", "GET").Existed(),
			kind:        structure.ErrGeneration,
			message:     "already existed in a newer version",
		},
		{
			name:        "restore unknown route",
			instruction: structure.Endpoint("/nope", "GET").Existed(),
			kind:        structure.ErrGeneration,
			message:     "wasn't among the deleted routes",
		},
		{
			name:        "unknown response schema",
			instruction: structure.Endpoint("/users", "GET").Had(structure.EndpointChanges{ResponseSchema: structure.Ptr(schema.ID("users.Nope"))}),
			kind:        structure.ErrGeneration,
			message:     "not registered",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generate(t, headRouter(),
				structure.NewVersion(v2001, vc(t, tt.name, tt.instruction)),
				structure.NewVersion(v2000),
			)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestGenerate_ConverterUsage(t *testing.T) {
	noopReq := func(*structure.RequestInfo) error { return nil }
	noopResp := func(*structure.ResponseInfo) error { return nil }
	tests := []struct {
		name      string
		converter structure.Instruction
		wantErr   bool
	}{
		{"response schema never returned", structure.ConvertResponseToPreviousVersionFor(noopResp, userCreate), true},
		{"request schema never sent", structure.ConvertRequestToNextVersionFor(noopReq, user), true},
		{"unchecked converter", structure.ConvertResponseToPreviousVersionFor(noopResp, userCreate).WithoutUsageCheck(), false},
		{"used response schema", structure.ConvertResponseToPreviousVersionFor(noopResp, user), false},
		{"unknown path", structure.ConvertRequestToNextVersionForPath("/nope", []string{"GET"}, noopReq), true},
		{"uncovered method", structure.ConvertResponseToPreviousVersionForPath("/users/{id}", []string{"PUT"}, noopResp), true},
		{"served path", structure.ConvertResponseToPreviousVersionForPath("/users/", []string{"GET", "POST"}, noopResp), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generate(t, headRouter(),
				structure.NewVersion(v2001, vc(t, tt.name, tt.converter)),
				structure.NewVersion(v2000),
			)
			if tt.wantErr {
				assert.ErrorIs(t, err, structure.ErrGeneration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerate_PathConverterMatchesOlderRoute(t *testing.T) {
	noop := func(*structure.RequestInfo) error { return nil }
	_, err := generate(t, headRouter(),
		structure.NewVersion(v2001, vc(t, "rename",
			structure.Endpoint("/users/{id}", "GET").Had(structure.EndpointChanges{Path: structure.Ptr("/people/{id}")}),
			structure.ConvertRequestToNextVersionForPath("/people/{id}", []string{"GET"}, noop),
		)),
		structure.NewVersion(v2000),
	)
	assert.NoError(t, err)
}

func TestGenerate_InvalidHeadRouter(t *testing.T) {
	router := NewRouter()
	router.Get("users", "bad_path", listUsers)
	router.Get("/users", "no_handler", nil)
	_, err := generate(t, router, structure.NewVersion(v2000))
	require.ErrorIs(t, err, structure.ErrGeneration)
	assert.Contains(t, err.Error(), "must start with '/'")
	assert.Contains(t, err.Error(), "handler is required")
}

func TestGenerate_Metrics(t *testing.T) {
	bundle := structure.MustVersionBundle(nil,
		structure.NewVersion(v2001, vc(t, "drop listing", structure.Endpoint("/users", "GET").DidntExist())),
		structure.NewVersion(v2000),
	)
	schemas, err := schemagen.NewGenerator(usersRegistry(), bundle, nil).Generate()
	require.NoError(t, err)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	_, err = NewGenerator(headRouter(), migration.NewMigrator(bundle, schemas), nil).WithMetrics(metrics).Generate()
	require.NoError(t, err)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.VersionsTotal))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.RoutesTotal.WithLabelValues("2001-01-01")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.RoutesTotal.WithLabelValues("2000-01-01")))
}

func TestPathParams(t *testing.T) {
	assert.Equal(t, []string{"id", "org"}, pathParams("/orgs/{org}/users/{id:[0-9]+}"))
	assert.Nil(t, pathParams("/users"))
}

func TestRequest_Decode(t *testing.T) {
	req := &Request{Body: map[string]interface{}{"name": "Ada"}}
	var out struct{ Name string }
	require.NoError(t, req.Decode(&out))
	assert.Equal(t, "Ada", out.Name)

	assert.Error(t, (&Request{Body: []interface{}{1}}).Decode(&out))
}
