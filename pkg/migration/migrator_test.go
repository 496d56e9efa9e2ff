package migration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rewind/pkg/observability"
	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/schemagen"
	"github.com/platinummonkey/rewind/pkg/structure"
)

var (
	v2000 = structure.MustParseDate("2000-01-01")
	v2001 = structure.MustParseDate("2001-01-01")
	v2002 = structure.MustParseDate("2002-01-01")
)

const company schema.ID = "companies.Company"

func companyRegistry() *schema.Registry {
	reg := schema.NewRegistry()
	reg.MustRegister(&schema.Schema{
		ID:   company,
		Name: "Company",
		Fields: []*schema.Field{
			schema.NewField("name", schema.String()),
			schema.NewField("vat_ids", schema.ListOf(schema.String()), schema.Default([]interface{}{})),
		},
	})
	return reg
}

func newMigrator(t *testing.T, reg *schema.Registry, opts []Option, versions ...*structure.Version) *Migrator {
	t.Helper()
	bundle, err := structure.NewVersionBundle(nil, versions...)
	require.NoError(t, err)
	res, err := schemagen.NewGenerator(reg, bundle, nil).Generate()
	require.NoError(t, err)
	return NewMigrator(bundle, res, opts...)
}

func vc(t *testing.T, name string, instructions ...structure.Instruction) *structure.VersionChange {
	t.Helper()
	c, err := structure.NewVersionChange(name, "test change "+name, instructions...)
	require.NoError(t, err)
	return c
}

func bodyMap(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	m, ok := v.(map[string]interface{})
	require.True(t, ok, "body is %T", v)
	return m
}

// orderedMigrator records every converter call as "<change>:<kind>"
func orderedMigrator(t *testing.T, calls *[]string, opts ...Option) *Migrator {
	record := func(name string) (structure.RequestTransformer, structure.ResponseTransformer) {
		return func(*structure.RequestInfo) error { *calls = append(*calls, name); return nil },
			func(*structure.ResponseInfo) error { *calls = append(*calls, name); return nil }
	}
	change := func(name string) *structure.VersionChange {
		// path converters are declared first; schema converters must still run first
		reqPath, respPath := record(name + ":path")
		reqSchema, respSchema := record(name + ":schema")
		return vc(t, name,
			structure.ConvertRequestToNextVersionForPath("/companies", []string{"POST"}, reqPath),
			structure.ConvertResponseToPreviousVersionForPath("/companies", []string{"POST"}, respPath),
			structure.ConvertRequestToNextVersionFor(reqSchema, company),
			structure.ConvertResponseToPreviousVersionFor(respSchema, company),
		)
	}
	return newMigrator(t, companyRegistry(), opts,
		structure.NewVersion(v2002, change("A")),
		structure.NewVersion(v2001, change("B")),
		structure.NewVersion(v2000),
	)
}

func TestMigrator_WalkOrder(t *testing.T) {
	target := Target{Path: "/companies", Method: http.MethodPost, Schema: company}
	tests := []struct {
		name     string
		version  structure.Date
		request  []string
		response []string
	}{
		{"oldest", v2000, []string{"B:schema", "B:path", "A:schema", "A:path"}, []string{"A:schema", "A:path", "B:schema", "B:path"}},
		{"middle", v2001, []string{"A:schema", "A:path"}, []string{"A:schema", "A:path"}},
		{"between versions", structure.MustParseDate("2001-06-30"), []string{"A:schema", "A:path"}, []string{"A:schema", "A:path"}},
		{"latest", v2002, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			m := orderedMigrator(t, &calls)

			req := &structure.RequestInfo{Body: map[string]interface{}{"name": "HeliCorp"}}
			require.NoError(t, m.MigrateRequest(context.Background(), tt.version, target, req))
			assert.Equal(t, tt.request, calls)

			calls = nil
			resp := &structure.ResponseInfo{Body: map[string]interface{}{}, StatusCode: http.StatusOK}
			require.NoError(t, m.MigrateResponse(context.Background(), tt.version, target, resp))
			assert.Equal(t, tt.response, calls)
		})
	}
}

func TestMigrator_PathConvertersMatchMethod(t *testing.T) {
	var calls []string
	m := orderedMigrator(t, &calls)
	req := &structure.RequestInfo{Body: map[string]interface{}{"name": "x"}}
	require.NoError(t, m.MigrateRequest(context.Background(), v2001, Target{Path: "/companies", Method: http.MethodGet, Schema: company}, req))
	assert.Equal(t, []string{"A:schema"}, calls)
}

func TestMigrator_ResponseConverterExample(t *testing.T) {
	flatten := func(r *structure.ResponseInfo) error {
		body := r.Body.(map[string]interface{})
		var ids []interface{}
		for _, x := range body["_prefetched_vat_ids"].([]interface{}) {
			ids = append(ids, x.(map[string]interface{})["value"])
		}
		delete(body, "_prefetched_vat_ids")
		body["vat_ids"] = ids
		return nil
	}
	m := newMigrator(t, companyRegistry(), nil,
		structure.NewVersion(v2001, vc(t, "flatten vat ids", structure.ConvertResponseToPreviousVersionFor(flatten, company))),
		structure.NewVersion(v2000),
	)

	body, err := Normalize(map[string]interface{}{
		"name":                "HeliCorp",
		"_prefetched_vat_ids": []map[string]string{{"value": "Foo"}, {"value": "Bar"}},
	})
	require.NoError(t, err)
	resp := &structure.ResponseInfo{Body: body, StatusCode: http.StatusOK}
	require.NoError(t, m.MigrateResponse(context.Background(), v2000, Target{Path: "/companies", Method: http.MethodGet, Schema: company}, resp))

	assert.Equal(t, map[string]interface{}{"name": "HeliCorp", "vat_ids": []interface{}{"Foo", "Bar"}}, resp.Body)
}

func TestMigrator_HTTPErrorsSkipUnlessMarked(t *testing.T) {
	var calls []string
	plain := func(*structure.ResponseInfo) error { calls = append(calls, "plain"); return nil }
	errs := func(r *structure.ResponseInfo) error {
		calls = append(calls, "errors")
		r.StatusCode = http.StatusBadRequest
		return nil
	}
	m := newMigrator(t, companyRegistry(), nil,
		structure.NewVersion(v2001, vc(t, "errors",
			structure.ConvertResponseToPreviousVersionFor(plain, company),
			structure.ConvertResponseToPreviousVersionForPath("/companies", []string{"POST"}, errs).WithHTTPErrors(),
		)),
		structure.NewVersion(v2000),
	)

	resp := &structure.ResponseInfo{Body: map[string]interface{}{"detail": "conflict"}, StatusCode: http.StatusConflict}
	require.NoError(t, m.MigrateResponse(context.Background(), v2000, Target{Path: "/companies", Method: http.MethodPost, Schema: company}, resp))
	assert.Equal(t, []string{"errors"}, calls)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMigrator_RequestNormalizedAgainstHead(t *testing.T) {
	rename := func(r *structure.RequestInfo) error {
		body := r.Body.(map[string]interface{})
		body["name"] = body["title"]
		delete(body, "title")
		r.Headers.Set("X-Migrated", "yes")
		return nil
	}
	m := newMigrator(t, companyRegistry(), nil,
		structure.NewVersion(v2001, vc(t, "rename", structure.ConvertRequestToNextVersionFor(rename, company))),
		structure.NewVersion(v2000),
	)

	req := &structure.RequestInfo{Body: map[string]interface{}{"title": "HeliCorp"}}
	require.NoError(t, m.MigrateRequest(context.Background(), v2000, Target{Schema: company}, req))
	assert.Equal(t, map[string]interface{}{"name": "HeliCorp", "vat_ids": []interface{}{}}, bodyMap(t, req.Body))
	assert.Equal(t, "yes", req.Headers.Get("X-Migrated"))
}

func TestMigrator_HeadValidationFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	broken := func(r *structure.RequestInfo) error {
		delete(r.Body.(map[string]interface{}), "name")
		return nil
	}
	m := newMigrator(t, companyRegistry(), []Option{WithMetrics(metrics)},
		structure.NewVersion(v2001, vc(t, "broken", structure.ConvertRequestToNextVersionFor(broken, company))),
		structure.NewVersion(v2000),
	)

	requested := structure.MustParseDate("2000-05-05")
	req := &structure.RequestInfo{Body: map[string]interface{}{"name": "x"}}
	err := m.MigrateRequest(context.Background(), requested, Target{Schema: company}, req)

	var hv *HeadRequestValidationError
	require.ErrorAs(t, err, &hv)
	assert.ErrorIs(t, err, ErrHeadValidation)
	assert.ErrorIs(t, err, structure.ErrRuntimeMigration)
	assert.Equal(t, requested, hv.Version)
	require.Len(t, hv.Errors, 1)
	assert.Equal(t, []string{"name"}, hv.Errors[0].Loc)
	assert.Equal(t, "value_error.missing", hv.Errors[0].Type)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HeadValidationFailuresTotal.WithLabelValues("2000-01-01")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MigrationsTotal.WithLabelValues("request", "2000-01-01", "head_validation_failed")))
}

func TestMigrator_ConverterErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	m := newMigrator(t, companyRegistry(), nil,
		structure.NewVersion(v2001, vc(t, "boom",
			structure.ConvertRequestToNextVersionFor(func(*structure.RequestInfo) error { return boom }, company),
			structure.ConvertResponseToPreviousVersionFor(func(*structure.ResponseInfo) error { return boom }, company),
		)),
		structure.NewVersion(v2000),
	)

	target := Target{Schema: company}
	assert.Same(t, boom, m.MigrateRequest(context.Background(), v2000, target, &structure.RequestInfo{}))
	assert.Same(t, boom, m.MigrateResponse(context.Background(), v2000, target, &structure.ResponseInfo{StatusCode: 200}))
}

func TestMigrator_VersionBeforeOldest(t *testing.T) {
	m := newMigrator(t, companyRegistry(), nil,
		structure.NewVersion(v2001),
		structure.NewVersion(v2000),
	)
	err := m.MigrateRequest(context.Background(), structure.MustParseDate("1999-12-31"), Target{}, &structure.RequestInfo{})
	assert.ErrorIs(t, err, structure.ErrRuntimeMigration)
}

func TestMigrator_CancelledContext(t *testing.T) {
	var calls []string
	m := orderedMigrator(t, &calls)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.MigrateRequest(ctx, v2000, Target{Path: "/companies", Method: http.MethodPost, Schema: company}, &structure.RequestInfo{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}

func TestMigrator_PlanCache(t *testing.T) {
	var calls []string
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	m := orderedMigrator(t, &calls, WithMetrics(metrics))
	target := Target{Path: "/companies", Method: http.MethodPost, Schema: company}

	for i := 0; i < 2; i++ {
		require.NoError(t, m.MigrateResponse(context.Background(), v2000, target, &structure.ResponseInfo{StatusCode: 200}))
	}
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1, Len: 1}, m.CacheStats())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PlanCacheHitsTotal.WithLabelValues("response")))
	assert.Equal(t, float64(8), testutil.ToFloat64(metrics.ConvertersAppliedTotal.WithLabelValues("response")))

	uncached := orderedMigrator(t, &calls, WithConfig(Config{}))
	require.NoError(t, uncached.MigrateResponse(context.Background(), v2000, target, &structure.ResponseInfo{StatusCode: 200}))
	assert.Equal(t, CacheStats{}, uncached.CacheStats())
}

func TestMigrator_MigrateResponseBody(t *testing.T) {
	firstVat := func(r *structure.ResponseInfo) error {
		body := r.Body.(map[string]interface{})
		if ids, _ := body["vat_ids"].([]interface{}); len(ids) > 0 {
			body["vat_id"] = ids[0]
		}
		delete(body, "vat_ids")
		return nil
	}
	m := newMigrator(t, companyRegistry(), nil,
		structure.NewVersion(v2001, vc(t, "single vat id",
			structure.Schema(company).Field("vat_ids").DidntExist(),
			structure.Schema(company).Field("vat_id").ExistedAs(schema.Optional(schema.String()), schema.Default(nil)),
			structure.ConvertResponseToPreviousVersionFor(firstVat, company),
		)),
		structure.NewVersion(v2000),
	)

	type payload struct {
		Name   string   `json:"name"`
		VatIDs []string `json:"vat_ids"`
	}
	got, err := m.MigrateResponseBody(context.Background(), company, payload{Name: "HeliCorp", VatIDs: []string{"Foo"}}, v2000)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "HeliCorp", "vat_id": "Foo"}, got)

	got, err = m.MigrateResponseBody(context.Background(), company, payload{Name: "HeliCorp", VatIDs: []string{"Foo"}}, v2001)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "HeliCorp", "vat_ids": []interface{}{"Foo"}}, got)
}

func TestEncode(t *testing.T) {
	headers := http.Header{}
	data, err := Encode(map[string]interface{}{"a": "<b>", "n": 1}, headers)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<b>","n":1}`, string(data))
	assert.Equal(t, "17", headers.Get("Content-Length"))

	data, err = Encode(nil, headers)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Equal(t, "0", headers.Get("Content-Length"))
}

func TestNormalize(t *testing.T) {
	type item struct {
		ID uint64 `json:"id"`
	}
	got, err := Normalize([]item{{ID: 1}, {ID: 9007199254740993}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"id": json.Number("1")},
		map[string]interface{}{"id": json.Number("9007199254740993")},
	}, got)

	data, err := Encode(got, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1},{"id":9007199254740993}]`, string(data))

	_, err = Normalize(func() {})
	assert.Error(t, err)
}
