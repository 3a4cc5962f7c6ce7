package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
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

// counterValue returns the value of the data point whose attribute key/value
// pair matches, or -1 when no such point exists.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	return -1
}

// gaugeValue returns the value of a gauge's first data point.
func gaugeValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	g, ok := met.Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("metric %q is not a gauge", name)
	}
	if len(g.DataPoints) == 0 {
		t.Fatalf("metric %q has no data points", name)
	}
	return g.DataPoints[0].Value
}

// histogramCount returns the sample count of a histogram's first data point.
func histogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric %q is not a histogram", name)
	}
	if len(hist.DataPoints) == 0 {
		t.Fatalf("metric %q has no data points", name)
	}
	return hist.DataPoints[0].Count
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordFlushBatch(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFlushBatch(ctx, "ok", 0.120)
	m.RecordFlushBatch(ctx, "ok", 0.340)
	m.RecordFlushBatch(ctx, "failed", 1.5)

	rm := collect(t, reader)
	if got := counterValue(t, rm, "narravox.flush.batches", "status", "ok"); got != 2 {
		t.Errorf("ok batches = %d, want 2", got)
	}
	if got := counterValue(t, rm, "narravox.flush.batches", "status", "failed"); got != 1 {
		t.Errorf("failed batches = %d, want 1", got)
	}
	if got := histogramCount(t, rm, "narravox.flush.duration"); got != 3 {
		t.Errorf("duration samples = %d, want 3", got)
	}
}

func TestRecordOverrideSave(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordOverrideSave(ctx, "ok")
	m.RecordOverrideSave(ctx, "ok")
	m.RecordOverrideSave(ctx, "error")

	rm := collect(t, reader)
	if got := counterValue(t, rm, "narravox.override.saves", "status", "ok"); got != 2 {
		t.Errorf("ok saves = %d, want 2", got)
	}
	if got := counterValue(t, rm, "narravox.override.saves", "status", "error"); got != 1 {
		t.Errorf("error saves = %d, want 1", got)
	}
}

func TestRecordPreview(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPreview(ctx, "speaker", "ok", 0.8)
	m.RecordPreview(ctx, "profile", "superseded", 0.1)

	rm := collect(t, reader)
	if got := counterValue(t, rm, "narravox.preview.requests", "kind", "profile"); got != 1 {
		t.Errorf("profile previews = %d, want 1", got)
	}
	if got := counterValue(t, rm, "narravox.preview.requests", "status", "superseded"); got != 1 {
		t.Errorf("superseded previews = %d, want 1", got)
	}
	if got := histogramCount(t, rm, "narravox.preview.duration"); got != 2 {
		t.Errorf("duration samples = %d, want 2", got)
	}
}

func TestRecordEvent(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEvent(ctx, "ping")
	m.RecordEvent(ctx, "ping")
	m.RecordEvent(ctx, "entities_updated")

	rm := collect(t, reader)
	if got := counterValue(t, rm, "narravox.events.received", "type", "ping"); got != 2 {
		t.Errorf("ping frames = %d, want 2", got)
	}
}

func TestRegisterDirtyGauge(t *testing.T) {
	m, reader := newTestMetrics(t)

	dirty := int64(3)
	unregister, err := m.RegisterDirtyGauge(func() int64 { return dirty })
	if err != nil {
		t.Fatalf("RegisterDirtyGauge: %v", err)
	}

	rm := collect(t, reader)
	if got := gaugeValue(t, rm, "narravox.overrides.dirty"); got != 3 {
		t.Errorf("dirty = %d, want 3", got)
	}

	// The callback is resampled on every collection.
	dirty = 0
	rm = collect(t, reader)
	if got := gaugeValue(t, rm, "narravox.overrides.dirty"); got != 0 {
		t.Errorf("dirty after flush = %d, want 0", got)
	}

	if err := unregister(); err != nil {
		t.Fatalf("unregister: %v", err)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.HTTPRequestDuration.Record(context.Background(), 0.05,
		metric.WithAttributes(Attr("method", "GET"), Attr("path", "/api/entities")),
	)

	rm := collect(t, reader)
	if got := histogramCount(t, rm, "narravox.http.request.duration"); got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
