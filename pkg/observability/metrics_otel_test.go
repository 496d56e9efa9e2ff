package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestOTelMetrics_RecordMigration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewOTelMetricsWithMeter(provider.Meter(TracerName))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordMigration(ctx, "request", "2024-01-01", 2*time.Millisecond, 3, nil)
	m.RecordMigration(ctx, "response", "2024-01-01", time.Millisecond, 0, assert.AnError)
	m.RecordPlanLookup(ctx, "request", true)

	got := collect(t, reader)
	require.Contains(t, got, "rewind.migrations")
	require.Contains(t, got, "rewind.migration.duration")
	require.Contains(t, got, "rewind.plan_cache.lookups")

	converters, ok := got["rewind.converters.applied"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, converters.DataPoints, 1)
	assert.Equal(t, int64(3), converters.DataPoints[0].Value)

	migrations, ok := got["rewind.migrations"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, migrations.DataPoints, 2)
}

func TestNewOTelMetrics_GlobalMeter(t *testing.T) {
	m, err := NewOTelMetrics()
	require.NoError(t, err)
	m.RecordMigration(context.Background(), "request", "head", 0, 1, nil)
}
