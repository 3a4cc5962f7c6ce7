package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/narravoxlabs/narravox/internal/config"
	"github.com/narravoxlabs/narravox/internal/observe"
	"github.com/narravoxlabs/narravox/pkg/client"
)

// commandContext carries the lazily-loaded configuration and the pieces
// every subcommand shares: the logger (with a hot-swappable level) and the
// instrumented server client.
type commandContext struct {
	configFlag  *string
	serverFlag  *string
	verboseFlag *bool

	once     sync.Once
	cfg      *config.Config
	cfgPath  string
	cfgErr   error
	logLevel *slog.LevelVar
}

func newCommandContext(configFlag, serverFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		serverFlag:  serverFlag,
		verboseFlag: verboseFlag,
		logLevel:    new(slog.LevelVar),
	}
}

// setup loads configuration once, applies flag overrides, and installs the
// process logger. A missing config file is not an error; defaults apply.
func (c *commandContext) setup() error {
	c.once.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			path = defaultConfigPath()
		}
		c.cfgPath = path

		cfg, err := config.Load(path)
		if err != nil {
			c.cfgErr = err
			return
		}

		if server := strings.TrimSpace(*c.serverFlag); server != "" {
			cfg.Server.BaseURL = server
			if err := config.Validate(cfg); err != nil {
				c.cfgErr = fmt.Errorf("--server: %w", err)
				return
			}
		}
		c.cfg = cfg

		c.logLevel.Set(slogLevel(cfg.Log.Level))
		if *c.verboseFlag {
			c.logLevel.Set(slog.LevelDebug)
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.logLevel}))
		slog.SetDefault(logger)
	})
	return c.cfgErr
}

func (c *commandContext) configValue() *config.Config {
	_ = c.setup()
	return c.cfg
}

// configPath returns the resolved config file location, whether or not the
// file exists. The edit session watches it for reloads.
func (c *commandContext) configPath() string {
	_ = c.setup()
	return c.cfgPath
}

// levelVar exposes the process log level for hot reloads.
func (c *commandContext) levelVar() *slog.LevelVar {
	return c.logLevel
}

// client builds a server client with the instrumented transport installed,
// so every request lands in the http.request.duration histogram.
func (c *commandContext) client() (*client.Client, error) {
	cfg := c.configValue()
	if cfg == nil {
		return nil, c.cfgErr
	}
	hc := &http.Client{
		Timeout:   cfg.Server.Timeout(),
		Transport: observe.NewTransport(nil, observe.DefaultMetrics()),
	}
	return client.New(cfg.Server.BaseURL,
		client.WithHTTPClient(hc),
		client.WithUserAgent("narravox/"+version),
	)
}

// settleContext bounds a wait for in-flight saves by the configured settle
// timeout.
func (c *commandContext) settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.configValue().Studio.SettleTimeout())
}

// cachePath resolves the snapshot database location: config value when set,
// otherwise ~/.cache/narravox/snapshots.db.
func (c *commandContext) cachePath() string {
	if cfg := c.configValue(); cfg != nil && cfg.Cache.Path != "" {
		return cfg.Cache.Path
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "narravox", "snapshots.db")
}

// workspaceScope identifies the book project this invocation works on. The
// current directory is the project root; snapshots are keyed by it.
func workspaceScope() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return filepath.Clean(wd), nil
}

func defaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(base, "narravox", "config.yaml")
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
