// Package observe provides application-wide observability primitives
// for emendo: OpenTelemetry metrics, tracing helpers, and structured
// logging glue.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A
// Prometheus exporter bridge is available via [InitProvider] so that
// metrics can be scraped via the standard /metrics endpoint. A
// package-level default [Metrics] instance ([DefaultMetrics]) is
// provided for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all emendo metrics.
const meterName = "github.com/emendo-dev/emendo"

// Metrics holds all OpenTelemetry metric instruments for the
// application. All fields are safe for concurrent use; the underlying
// OTel types handle their own synchronisation.
type Metrics struct {
	// StageDuration tracks per-paragraph latency of a correction stage.
	// Use with attribute.String("stage", ...).
	StageDuration metric.Float64Histogram

	// CorrectionsAccepted counts applied corrections. Use with
	// attribute.String("stage", ...).
	CorrectionsAccepted metric.Int64Counter

	// CorrectionsRolledBack counts rejected corrections. Use with
	// attributes: attribute.String("stage", ...), attribute.String("reason", ...)
	CorrectionsRolledBack metric.Int64Counter

	// CacheHits counts cache hits. Use with
	// attribute.String("kind", "exact"|"similar").
	CacheHits metric.Int64Counter

	// CacheMisses counts cache misses.
	CacheMisses metric.Int64Counter

	// StageDegradations counts stage-level outages the pipeline
	// continued through. Use with attribute.String("stage", ...).
	StageDegradations metric.Int64Counter

	// ActiveChunks tracks the number of chunks currently in flight.
	ActiveChunks metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds).
// Local fixes complete in microseconds while LLM batches can take tens
// of seconds, hence the wide spread.
var latencyBuckets = []float64{
	0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the
// given [metric.MeterProvider]. Returns an error if any instrument
// creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("emendo.stage.duration",
		metric.WithDescription("Per-paragraph latency of a correction stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CorrectionsAccepted, err = m.Int64Counter("emendo.corrections.accepted",
		metric.WithDescription("Total corrections applied, by stage."),
	); err != nil {
		return nil, err
	}
	if met.CorrectionsRolledBack, err = m.Int64Counter("emendo.corrections.rolled_back",
		metric.WithDescription("Total corrections rejected, by stage and reason."),
	); err != nil {
		return nil, err
	}
	if met.CacheHits, err = m.Int64Counter("emendo.cache.hits",
		metric.WithDescription("Total correction cache hits, by kind (exact or similar)."),
	); err != nil {
		return nil, err
	}
	if met.CacheMisses, err = m.Int64Counter("emendo.cache.misses",
		metric.WithDescription("Total correction cache misses."),
	); err != nil {
		return nil, err
	}
	if met.StageDegradations, err = m.Int64Counter("emendo.stage.degradations",
		metric.WithDescription("Stage-level outages the pipeline continued through."),
	); err != nil {
		return nil, err
	}
	if met.ActiveChunks, err = m.Int64UpDownCounter("emendo.active_chunks",
		metric.WithDescription("Number of correction chunks currently in flight."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating
// it on first call using [otel.GetMeterProvider]. Subsequent calls
// return the same pointer. Panics if instrument creation fails (should
// not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce
// verbosity at call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAccepted records an applied correction for stage.
func (m *Metrics) RecordAccepted(ctx context.Context, stage string) {
	m.CorrectionsAccepted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordRolledBack records a rejected correction for stage with the
// given rollback reason.
func (m *Metrics) RecordRolledBack(ctx context.Context, stage, reason string) {
	m.CorrectionsRolledBack.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("reason", reason),
		),
	)
}

// RecordCacheHit records a cache hit of the given kind ("exact" or
// "similar").
func (m *Metrics) RecordCacheHit(ctx context.Context, kind string) {
	m.CacheHits.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordDegradation records a stage outage the pipeline survived.
func (m *Metrics) RecordDegradation(ctx context.Context, stage string) {
	m.StageDegradations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}
