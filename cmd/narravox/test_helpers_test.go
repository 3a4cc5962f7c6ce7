package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/narravoxlabs/narravox/pkg/override"
)

// runCLI executes a fresh root command with captured output streams.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// missingConfig returns a path with no file behind it, so the command runs
// on built-in defaults instead of whatever lives in the developer's
// ~/.config.
func missingConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func fixturePayload() override.Payload {
	return override.Payload{
		Summary: override.Summary{Entities: 12, People: 4, Heteronyms: 2, Chapters: 9},
		ManualOverrides: []override.Override{
			{ID: "ov-1", Token: "Brightmoor", Normalized: "brightmoor", Pronunciation: "BRYT-moor", Source: override.SourceManual},
			{ID: "ov-2", Token: "Seraphiel", Normalized: "seraphiel", Voice: "af_heart*0.70+af_sky*0.30", Source: override.SourceManual},
		},
		PronunciationOverrides: []override.Override{
			{ID: "hist-1", Token: "Vael", Normalized: "vael", Pronunciation: "VAYL", Source: override.SourceHistory},
		},
		CacheKey: "ck-cli",
	}
}

func writePayload(t *testing.T, w http.ResponseWriter, p override.Payload) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(p); err != nil {
		t.Errorf("encode payload: %v", err)
	}
}

// newAPIServer runs an httptest server with the given handler and tears it
// down with the test.
func newAPIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}
