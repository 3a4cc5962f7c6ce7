package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Transport is an [http.RoundTripper] that instruments outgoing requests to
// the narration server:
//
//  1. Starts a client span per request.
//  2. Injects W3C Trace Context into the outgoing headers and sets
//     X-Correlation-ID from the trace ID, so server logs line up with ours.
//  3. Records request duration to [Metrics.HTTPRequestDuration].
//  4. Logs request completion with status, duration, and trace info.
//
// The zero value is usable; it wraps [http.DefaultTransport] and records to
// [DefaultMetrics].
type Transport struct {
	// Base performs the actual round trip. Nil means
	// [http.DefaultTransport].
	Base http.RoundTripper

	// Metrics receives the duration samples. Nil means [DefaultMetrics].
	Metrics *Metrics
}

// NewTransport wraps base with instrumentation. Either argument may be nil.
func NewTransport(base http.RoundTripper, m *Metrics) *Transport {
	return &Transport{Base: base, Metrics: m}
}

var _ http.RoundTripper = (*Transport)(nil)

// RoundTrip implements [http.RoundTripper]. The original request is never
// mutated; headers are added to a clone, as the RoundTripper contract
// requires.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	ctx, span := StartSpan(req.Context(), "HTTP "+req.Method+" "+req.URL.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLPath(req.URL.Path),
		),
	)
	defer span.End()

	req = req.Clone(ctx)
	prop := propagation.TraceContext{}
	prop.Inject(ctx, propagation.HeaderCarrier(req.Header))
	cid := CorrelationID(ctx)
	if cid != "" {
		req.Header.Set("X-Correlation-ID", cid)
	}

	resp, err := t.base().RoundTrip(req)
	duration := time.Since(start)

	t.metrics().HTTPRequestDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("method", req.Method),
			attribute.String("path", req.URL.Path),
		),
	)

	if err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "request failed",
			slog.String("trace_id", cid),
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Duration("duration", duration),
			slog.Any("err", err),
		)
		return nil, err
	}

	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	slog.LogAttrs(ctx, slog.LevelDebug, "request completed",
		slog.String("trace_id", cid),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
	)
	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) metrics() *Metrics {
	if t.Metrics != nil {
		return t.Metrics
	}
	return DefaultMetrics()
}
