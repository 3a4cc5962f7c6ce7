// Package health provides the liveness and readiness handlers served on the
// Narravox metrics listener.
//
//   - /healthz — liveness; always 200 while the process can serve HTTP.
//   - /readyz  — readiness; 200 only when every registered [Check] passes,
//     typically one probe for the narration server and one for the local
//     snapshot cache.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map with the result of each named probe.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Check is a named readiness probe. Probe must return nil when the dependency
// is usable and respect context cancellation.
type Check struct {
	// Name labels the probe in the JSON response, e.g. "server" or "cache".
	Name string

	// Probe tests the dependency.
	Probe func(ctx context.Context) error
}

// result is the JSON response body for both endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The probe list is fixed at
// construction time, so it is safe for concurrent use.
type Handler struct {
	timeout time.Duration
	checks  []Check
}

// Option configures a [Handler].
type Option func(*Handler)

// WithTimeout bounds each individual probe. The default is 2 seconds, which
// is generous for a tool probing localhost dependencies.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// New creates a [Handler] that evaluates the given probes, in order, on each
// /readyz request.
func New(checks []Check, opts ...Option) *Handler {
	h := &Handler{
		timeout: 2 * time.Second,
		checks:  make([]Check, len(checks)),
	}
	copy(h.checks, checks)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs every probe with a per-probe deadline derived from the request
// context and reports 503 if any of them fail.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checks))
	allOK := true

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := c.Probe(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON with the given status code. On encoding failure
// it falls back to a plain 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
