package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/narravoxlabs/narravox/internal/config"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  base_url: "https://narrate.example.com"
  timeout_ms: 20000

preview:
  text: "Seventeen slim sylphs sang softly."
  language: b
  speed: 1.2
  max_seconds: 8

voice:
  default_formula: "bf_emma*0.70+af_heart*0.30"

studio:
  flush_debounce_ms: 250
  settle_timeout_ms: 10000

cache:
  path: /tmp/narravox-test/snapshots.db

metrics:
  enabled: true
  listen: "127.0.0.1:9901"

log:
  level: debug
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.BaseURL != "https://narrate.example.com" {
		t.Errorf("server.base_url: got %q", cfg.Server.BaseURL)
	}
	if cfg.Server.TimeoutMS != 20000 {
		t.Errorf("server.timeout_ms: got %d, want 20000", cfg.Server.TimeoutMS)
	}
	if cfg.Preview.Language != "b" {
		t.Errorf("preview.language: got %q, want %q", cfg.Preview.Language, "b")
	}
	if cfg.Preview.Speed != 1.2 {
		t.Errorf("preview.speed: got %.2f, want 1.2", cfg.Preview.Speed)
	}
	if cfg.Voice.DefaultFormula != "bf_emma*0.70+af_heart*0.30" {
		t.Errorf("voice.default_formula: got %q", cfg.Voice.DefaultFormula)
	}
	if cfg.Studio.FlushDebounceMS != 250 {
		t.Errorf("studio.flush_debounce_ms: got %d, want 250", cfg.Studio.FlushDebounceMS)
	}
	if cfg.Cache.Path != "/tmp/narravox-test/snapshots.db" {
		t.Errorf("cache.path: got %q", cfg.Cache.Path)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics.enabled: got false, want true")
	}
	if cfg.Log.Level != config.LogDebug {
		t.Errorf("log.level: got %q, want %q", cfg.Log.Level, config.LogDebug)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	// An empty mapping should succeed and keep every default.
	cfg, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
	if cfg.Server.BaseURL != "http://127.0.0.1:7851" {
		t.Errorf("server.base_url default: got %q", cfg.Server.BaseURL)
	}
}

func TestLoadFromReader_EmptyInput(t *testing.T) {
	// A zero-byte file decodes to the defaults rather than erroring.
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error for empty input: %v", err)
	}
	if cfg.Log.Level != config.LogInfo {
		t.Errorf("log.level default: got %q, want %q", cfg.Log.Level, config.LogInfo)
	}
}

func TestLoadFromReader_PartialKeepsDefaults(t *testing.T) {
	yaml := `
server:
  base_url: "http://10.0.0.5:7851"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.BaseURL != "http://10.0.0.5:7851" {
		t.Errorf("server.base_url: got %q", cfg.Server.BaseURL)
	}
	// Untouched sections keep the defaults.
	if cfg.Server.TimeoutMS != 15000 {
		t.Errorf("server.timeout_ms default: got %d, want 15000", cfg.Server.TimeoutMS)
	}
	if cfg.Preview.MaxSeconds != 10 {
		t.Errorf("preview.max_seconds default: got %d, want 10", cfg.Preview.MaxSeconds)
	}
	if cfg.Studio.FlushDebounceMS != 400 {
		t.Errorf("studio.flush_debounce_ms default: got %d, want 400", cfg.Studio.FlushDebounceMS)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	yaml := `
server:
  base_url: "http://127.0.0.1:7851"
  timeout: 15s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("error should name the unknown field, got: %v", err)
	}
}

// ── Defaults ──────────────────────────────────────────────────────────────────

func TestDefault_IsValid(t *testing.T) {
	if err := config.Validate(config.Default()); err != nil {
		t.Fatalf("defaults should validate cleanly: %v", err)
	}
}

func TestDefault_Durations(t *testing.T) {
	cfg := config.Default()
	if got := cfg.Server.Timeout(); got != 15*time.Second {
		t.Errorf("Timeout(): got %v, want 15s", got)
	}
	if got := cfg.Studio.FlushDebounce(); got != 400*time.Millisecond {
		t.Errorf("FlushDebounce(): got %v, want 400ms", got)
	}
	if got := cfg.Studio.SettleTimeout(); got != 30*time.Second {
		t.Errorf("SettleTimeout(): got %v, want 30s", got)
	}
}

// ── File loading ──────────────────────────────────────────────────────────────

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Server.BaseURL != "http://127.0.0.1:7851" {
		t.Errorf("expected defaults, got base_url %q", cfg.Server.BaseURL)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != config.LogWarn {
		t.Errorf("log.level: got %q, want %q", cfg.Log.Level, config.LogWarn)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for invalid file, got nil")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error should include the file path, got: %v", err)
	}
}
