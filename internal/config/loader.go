package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"

	"github.com/narravoxlabs/narravox/pkg/voicemix"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. A missing file is not an error; the defaults are returned so the
// tools work out of the box.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Decoding starts from [Default], so the file only needs the fields it
// wants to change. Useful in tests where configs are string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.BaseURL == "" {
		errs = append(errs, errors.New("server.base_url is required"))
	} else if u, err := url.Parse(cfg.Server.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.base_url %q is not a valid http(s) URL", cfg.Server.BaseURL))
	}
	if cfg.Server.TimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("server.timeout_ms %d must be positive", cfg.Server.TimeoutMS))
	} else if cfg.Server.TimeoutMS < 1000 {
		slog.Warn("server.timeout_ms is under one second; previews may time out",
			"timeout_ms", cfg.Server.TimeoutMS,
		)
	}

	// Preview
	if cfg.Preview.Speed <= 0 || cfg.Preview.Speed > 3.0 {
		errs = append(errs, fmt.Errorf("preview.speed %.2f is out of range (0, 3]", cfg.Preview.Speed))
	}
	if cfg.Preview.MaxSeconds <= 0 {
		errs = append(errs, fmt.Errorf("preview.max_seconds %d must be positive", cfg.Preview.MaxSeconds))
	}

	// Voice
	if f := cfg.Voice.DefaultFormula; f != "" {
		if len(voicemix.Parse(f)) == 0 {
			errs = append(errs, fmt.Errorf("voice.default_formula %q is not a valid voice mix", f))
		}
	}

	// Studio
	if cfg.Studio.FlushDebounceMS < 0 {
		errs = append(errs, fmt.Errorf("studio.flush_debounce_ms %d must not be negative", cfg.Studio.FlushDebounceMS))
	}
	if cfg.Studio.SettleTimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("studio.settle_timeout_ms %d must be positive", cfg.Studio.SettleTimeoutMS))
	}
	if cfg.Studio.FlushDebounceMS > 0 && cfg.Studio.SettleTimeoutMS > 0 &&
		cfg.Studio.FlushDebounceMS >= cfg.Studio.SettleTimeoutMS {
		slog.Warn("studio.flush_debounce_ms is at least the settle window; pending edits may be dropped on exit",
			"flush_debounce_ms", cfg.Studio.FlushDebounceMS,
			"settle_timeout_ms", cfg.Studio.SettleTimeoutMS,
		)
	}

	// Metrics
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		errs = append(errs, errors.New("metrics.listen is required when metrics.enabled is true"))
	}

	// Log
	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	return errors.Join(errs...)
}
