// Package observe provides application-wide observability primitives for
// Narravox: OpenTelemetry metrics, tracing helpers, structured logging, and
// an instrumented HTTP transport for the narration-server client.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so metrics can be scraped
// from a local /metrics endpoint. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with their own [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Narravox metrics.
const meterName = "github.com/narravoxlabs/narravox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// The underlying OTel types handle their own synchronisation, so a single
// instance is shared freely across goroutines.
type Metrics struct {
	// meter is kept for observable instruments registered after
	// construction, see [Metrics.RegisterDirtyGauge].
	meter metric.Meter

	// FlushDuration tracks wall time of one flush batch in the network
	// layer, from first request to last settlement.
	FlushDuration metric.Float64Histogram

	// FlushBatches counts settled flush batches. Use with attribute:
	//   attribute.String("status", "ok"|"failed")
	FlushBatches metric.Int64Counter

	// OverrideSaves counts individual override upserts. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	OverrideSaves metric.Int64Counter

	// PreviewDuration tracks audio preview render latency.
	PreviewDuration metric.Float64Histogram

	// PreviewRequests counts preview requests. Use with attributes:
	//   attribute.String("kind", "speaker"|"profile"),
	//   attribute.String("status", "ok"|"error"|"superseded")
	PreviewRequests metric.Int64Counter

	// EventsReceived counts frames from the server event stream by type.
	EventsReceived metric.Int64Counter

	// HTTPRequestDuration tracks outgoing HTTP request latency by method
	// and path. Recorded by [Transport].
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The tail
// is stretched to 30s because profile previews render audio server-side.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	if met.FlushDuration, err = m.Float64Histogram("narravox.flush.duration",
		metric.WithDescription("Wall time of one override flush batch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FlushBatches, err = m.Int64Counter("narravox.flush.batches",
		metric.WithDescription("Settled flush batches by status."),
	); err != nil {
		return nil, err
	}
	if met.OverrideSaves, err = m.Int64Counter("narravox.override.saves",
		metric.WithDescription("Individual override upserts by status."),
	); err != nil {
		return nil, err
	}
	if met.PreviewDuration, err = m.Float64Histogram("narravox.preview.duration",
		metric.WithDescription("Audio preview render latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PreviewRequests, err = m.Int64Counter("narravox.preview.requests",
		metric.WithDescription("Preview requests by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.EventsReceived, err = m.Int64Counter("narravox.events.received",
		metric.WithDescription("Server event stream frames by type."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("narravox.http.request.duration",
		metric.WithDescription("Outgoing HTTP request latency by method and path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Before [InitProvider] runs,
// the global provider is a no-op, so recording is safe and free. Panics if
// instrument creation fails (should not happen with the global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFlushBatch records one settled flush batch: counter by status plus
// the duration histogram.
func (m *Metrics) RecordFlushBatch(ctx context.Context, status string, seconds float64) {
	m.FlushBatches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.FlushDuration.Record(ctx, seconds)
}

// RecordOverrideSave records one override upsert outcome.
func (m *Metrics) RecordOverrideSave(ctx context.Context, status string) {
	m.OverrideSaves.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordPreview records one preview request: counter by kind and status
// plus the render-latency histogram.
func (m *Metrics) RecordPreview(ctx context.Context, kind, status string, seconds float64) {
	m.PreviewRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
	m.PreviewDuration.Record(ctx, seconds)
}

// RecordEvent records one received event-stream frame.
func (m *Metrics) RecordEvent(ctx context.Context, eventType string) {
	m.EventsReceived.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", eventType)),
	)
}

// RegisterDirtyGauge registers narravox.overrides.dirty, an observable gauge
// sampled via f on every metrics collection. The session registers its
// dirty-set size here at construction. The returned function unregisters the
// callback; it must run before f's receiver is torn down.
func (m *Metrics) RegisterDirtyGauge(f func() int64) (func() error, error) {
	g, err := m.meter.Int64ObservableGauge("narravox.overrides.dirty",
		metric.WithDescription("Overrides with unsaved edits awaiting flush."),
	)
	if err != nil {
		return nil, err
	}
	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(g, f())
		return nil
	}, g)
	if err != nil {
		return nil, err
	}
	return reg.Unregister, nil
}
