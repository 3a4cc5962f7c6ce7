package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTransportPropagatesTraceHeaders(t *testing.T) {
	tp, _ := newTestTracerProvider(t)
	useTracerProvider(t, tp)

	var gotTraceparent, gotCorrelation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTraceparent = r.Header.Get("traceparent")
		gotCorrelation = r.Header.Get("X-Correlation-ID")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	m, _ := newTestMetrics(t)
	hc := &http.Client{Transport: NewTransport(nil, m)}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/api/entities", nil)
	if err != nil {
		t.Fatalf("NewRequestWithContext: %v", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if gotTraceparent == "" {
		t.Error("traceparent header was not injected")
	}
	if gotCorrelation == "" {
		t.Error("X-Correlation-ID header was not set")
	}
}

func TestTransportRecordsSpanAndLatency(t *testing.T) {
	tp, exp := newTestTracerProvider(t)
	useTracerProvider(t, tp)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	t.Cleanup(srv.Close)

	m, reader := newTestMetrics(t)
	hc := &http.Client{Transport: NewTransport(nil, m)}

	resp, err := hc.Get(srv.URL + "/api/overrides")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if want := "HTTP GET /api/overrides"; spans[0].Name != want {
		t.Errorf("span name = %q, want %q", spans[0].Name, want)
	}
	statusSeen := false
	for _, attr := range spans[0].Attributes {
		if string(attr.Key) == "http.response.status_code" && attr.Value.AsInt64() == http.StatusTeapot {
			statusSeen = true
		}
	}
	if !statusSeen {
		t.Error("span is missing the response status code attribute")
	}

	rm := collect(t, reader)
	if got := histogramCount(t, rm, "narravox.http.request.duration"); got != 1 {
		t.Errorf("latency samples = %d, want 1", got)
	}
}

func TestTransportZeroValueUsable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	hc := &http.Client{Transport: &Transport{}}
	resp, err := hc.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("Get with zero-value transport: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestTransportReportsNetworkError(t *testing.T) {
	m, reader := newTestMetrics(t)
	hc := &http.Client{Transport: NewTransport(nil, m)}

	// A closed server makes the dial fail.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	if _, err := hc.Get(srv.URL + "/api/entities"); err == nil {
		t.Fatal("expected a transport error against a closed server")
	}

	rm := collect(t, reader)
	if got := histogramCount(t, rm, "narravox.http.request.duration"); got != 1 {
		t.Errorf("latency samples = %d, want 1 (failures are measured too)", got)
	}
}
