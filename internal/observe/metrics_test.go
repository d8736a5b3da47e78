package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader
// for programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestStageDurationObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.StageDuration.Record(ctx, 0.005)
	m.StageDuration.Record(ctx, 1.2)

	rm := collect(t, reader)
	met := findMetric(rm, "emendo.stage.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestCorrectionCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAccepted(ctx, "local")
	m.RecordAccepted(ctx, "local")
	m.RecordRolledBack(ctx, "llm", "quality below threshold")
	m.RecordCacheHit(ctx, "exact")
	m.RecordDegradation(ctx, "grammar")

	rm := collect(t, reader)

	for _, name := range []string{
		"emendo.corrections.accepted",
		"emendo.corrections.rolled_back",
		"emendo.cache.hits",
		"emendo.stage.degradations",
	} {
		met := findMetric(rm, name)
		if met == nil {
			t.Errorf("metric %q not found", name)
			continue
		}
		sum, ok := met.Data.(metricdata.Sum[int64])
		if !ok {
			t.Errorf("metric %q is not a sum", name)
			continue
		}
		if len(sum.DataPoints) == 0 {
			t.Errorf("metric %q has no data points", name)
		}
	}

	accepted := findMetric(rm, "emendo.corrections.accepted")
	sum := accepted.Data.(metricdata.Sum[int64])
	if got := sum.DataPoints[0].Value; got != 2 {
		t.Errorf("accepted count = %d, want 2", got)
	}
}

func TestActiveChunksGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveChunks.Add(ctx, 1)
	m.ActiveChunks.Add(ctx, 1)
	m.ActiveChunks.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "emendo.active_chunks")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("gauge value = %d, want 1", got)
	}
}
