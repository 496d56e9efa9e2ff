package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments for the migration pipeline
type OTelMetrics struct {
	migrationsTotal   metric.Int64Counter
	migrationDuration metric.Float64Histogram
	convertersApplied metric.Int64Counter
	planCacheLookups  metric.Int64Counter
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsWithMeter(otel.Meter("github.com/platinummonkey/rewind"))
}

// NewOTelMetricsWithMeter creates the instruments on meter
func NewOTelMetricsWithMeter(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.migrationsTotal, err = meter.Int64Counter(
		"rewind.migrations",
		metric.WithDescription("Total number of payload migrations"),
		metric.WithUnit("{migration}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations counter: %w", err)
	}

	m.migrationDuration, err = meter.Float64Histogram(
		"rewind.migration.duration",
		metric.WithDescription("Payload migration duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration duration histogram: %w", err)
	}

	m.convertersApplied, err = meter.Int64Counter(
		"rewind.converters.applied",
		metric.WithDescription("Total number of converter invocations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create converters counter: %w", err)
	}

	m.planCacheLookups, err = meter.Int64Counter(
		"rewind.plan_cache.lookups",
		metric.WithDescription("Migration plan cache lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan cache counter: %w", err)
	}

	return m, nil
}

// RecordMigration records one request or response migration
func (m *OTelMetrics) RecordMigration(ctx context.Context, direction, version string, duration time.Duration, converters int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("rewind.direction", direction),
		attribute.String("rewind.api_version", version),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error", "true"))
	} else {
		attrs = append(attrs, attribute.String("error", "false"))
	}

	m.migrationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.migrationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if converters > 0 {
		m.convertersApplied.Add(ctx, int64(converters), metric.WithAttributes(attrs[0]))
	}
}

// RecordPlanLookup records a plan cache hit or miss
func (m *OTelMetrics) RecordPlanLookup(ctx context.Context, direction string, hit bool) {
	m.planCacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rewind.direction", direction),
		attribute.Bool("hit", hit),
	))
}
