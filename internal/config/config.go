// Package config defines the YAML configuration schema and loading rules
// for the Narravox studio tools.
package config

import "time"

// LogLevel controls log verbosity for the Narravox tools.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration for Narravox. All sections are optional
// in the YAML file; missing sections keep the values from [Default].
type Config struct {
	// Server configures the connection to the narration server.
	Server ServerConfig `yaml:"server"`

	// Preview sets the defaults used when auditioning a voice.
	Preview PreviewConfig `yaml:"preview"`

	// Voice holds voice-mix defaults applied to new overrides.
	Voice VoiceConfig `yaml:"voice"`

	// Studio tunes the override editing session.
	Studio StudioConfig `yaml:"studio"`

	// Cache configures the local snapshot store.
	Cache CacheConfig `yaml:"cache"`

	// Metrics configures the optional Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`
}

// ServerConfig holds the connection settings for the narration server.
// Durations are integer milliseconds so the file stays plain YAML.
type ServerConfig struct {
	// BaseURL is the root URL of the narration server API.
	BaseURL string `yaml:"base_url"`

	// TimeoutMS bounds a single API request, in milliseconds.
	TimeoutMS int `yaml:"timeout_ms"`
}

// Timeout returns the request timeout as a [time.Duration].
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// PreviewConfig sets the defaults for voice preview requests.
type PreviewConfig struct {
	// Text is the sample sentence rendered when no text is given.
	Text string `yaml:"text"`

	// Language is the language code passed to the synthesizer.
	Language string `yaml:"language"`

	// Speed is the playback speed factor. Must be within (0, 3].
	Speed float64 `yaml:"speed"`

	// MaxSeconds caps the rendered clip length.
	MaxSeconds int `yaml:"max_seconds"`
}

// VoiceConfig holds voice-mix defaults.
type VoiceConfig struct {
	// DefaultFormula is the voice mix assigned to overrides that have none,
	// e.g. "af_bella*0.60+af_sky*0.40". Empty disables the default.
	DefaultFormula string `yaml:"default_formula"`
}

// StudioConfig tunes the interactive editing session.
type StudioConfig struct {
	// FlushDebounceMS is the idle delay before staged edits are saved
	// automatically, in milliseconds. Zero disables automatic saving.
	FlushDebounceMS int `yaml:"flush_debounce_ms"`

	// SettleTimeoutMS bounds how long shutdown waits for in-flight saves,
	// in milliseconds.
	SettleTimeoutMS int `yaml:"settle_timeout_ms"`
}

// FlushDebounce returns the debounce delay as a [time.Duration].
func (s StudioConfig) FlushDebounce() time.Duration {
	return time.Duration(s.FlushDebounceMS) * time.Millisecond
}

// SettleTimeout returns the shutdown settle window as a [time.Duration].
func (s StudioConfig) SettleTimeout() time.Duration {
	return time.Duration(s.SettleTimeoutMS) * time.Millisecond
}

// CacheConfig configures the local snapshot store.
type CacheConfig struct {
	// Path is the SQLite database file. Empty means
	// ~/.cache/narravox/snapshots.db.
	Path string `yaml:"path"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	// Enabled turns the endpoint on.
	Enabled bool `yaml:"enabled"`

	// Listen is the address the endpoint binds to.
	Listen string `yaml:"listen"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level controls verbosity.
	Level LogLevel `yaml:"level"`
}

// Default returns the configuration used when no file is present. A loaded
// file overrides these values field by field.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:   "http://127.0.0.1:7851",
			TimeoutMS: 15000,
		},
		Preview: PreviewConfig{
			Text:       "The quick brown fox jumps over the lazy dog.",
			Language:   "a",
			Speed:      1.0,
			MaxSeconds: 10,
		},
		Voice: VoiceConfig{
			DefaultFormula: "af_bella*0.60+af_sky*0.40",
		},
		Studio: StudioConfig{
			FlushDebounceMS: 400,
			SettleTimeoutMS: 30000,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Log: LogConfig{
			Level: LogInfo,
		},
	}
}
