// Package telemetry provides OpenTelemetry instrumentation for ingestion.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// ProviderMetricsMeterName is the name used for the provider metrics meter
	ProviderMetricsMeterName = "github.com/florasync/florasync/provider"

	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/florasync/florasync/sync"
)

// ProviderMetrics holds the OpenTelemetry instruments for provider client metrics
type ProviderMetrics struct {
	healthScore  metric.Int64Gauge
	circuitTrips metric.Int64Counter
}

// NewProviderMetrics creates a new ProviderMetrics instance with the given meter
// provider. If provider is nil, it returns nil (no-op metrics).
func NewProviderMetrics(provider metric.MeterProvider) (*ProviderMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ProviderMetricsMeterName)

	healthScore, err := meter.Int64Gauge(
		"florasync_provider_health_score",
		metric.WithDescription("Derived health score per provider"),
		metric.WithUnit("{score}"),
	)
	if err != nil {
		return nil, err
	}

	circuitTrips, err := meter.Int64Counter(
		"florasync_provider_circuit_trips_total",
		metric.WithDescription("Circuit breaker trips per provider"),
		metric.WithUnit("{trip}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		healthScore:  healthScore,
		circuitTrips: circuitTrips,
	}, nil
}

// RecordHealthScore records the current health score for a provider
func (m *ProviderMetrics) RecordHealthScore(ctx context.Context, providerName string, score int64) {
	if m == nil || m.healthScore == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("provider", providerName),
	}

	m.healthScore.Record(ctx, score, metric.WithAttributes(attrs...))
}

// RecordCircuitTrips records newly observed circuit breaker trips for
// a provider. Count is the delta since the last observation, not the
// lifetime total.
func (m *ProviderMetrics) RecordCircuitTrips(ctx context.Context, providerName string, count int64) {
	if m == nil || m.circuitTrips == nil || count <= 0 {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("provider", providerName),
	}

	m.circuitTrips.Add(ctx, count, metric.WithAttributes(attrs...))
}

// SyncMetrics holds the OpenTelemetry instruments for sync run metrics
type SyncMetrics struct {
	runDuration  metric.Float64Histogram
	itemsCreated metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter
// provider. If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	runDuration, err := meter.Float64Histogram(
		"florasync_sync_run_duration_seconds",
		metric.WithDescription("Duration of sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	itemsCreated, err := meter.Int64Counter(
		"florasync_sync_items_created_total",
		metric.WithDescription("Draft records created by import runs"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		runDuration:  runDuration,
		itemsCreated: itemsCreated,
	}, nil
}

// RecordRunDuration records the duration of one sync run for a provider
func (m *SyncMetrics) RecordRunDuration(ctx context.Context, providerName, mode string, duration time.Duration, success bool) {
	if m == nil || m.runDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("provider", providerName),
		attribute.String("mode", mode),
		attribute.Bool("success", success),
	}

	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordItemsCreated records drafts created by an import run
func (m *SyncMetrics) RecordItemsCreated(ctx context.Context, providerName string, count int64) {
	if m == nil || m.itemsCreated == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("provider", providerName),
	}

	m.itemsCreated.Add(ctx, count, metric.WithAttributes(attrs...))
}
