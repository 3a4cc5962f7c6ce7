package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/narravoxlabs/narravox/internal/config"
	"github.com/narravoxlabs/narravox/pkg/client"
)

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// previewDefaults builds the preview request template from configuration.
// The default formula rides in the Profile field; per-override voices
// replace it at request time.
func previewDefaults(cfg *config.Config) client.PreviewRequest {
	return client.PreviewRequest{
		Text:       cfg.Preview.Text,
		Profile:    cfg.Voice.DefaultFormula,
		Language:   cfg.Preview.Language,
		Speed:      cfg.Preview.Speed,
		MaxSeconds: cfg.Preview.MaxSeconds,
	}
}

// startConfigWatcher hot-reloads the log level while a long-running session
// is up and announces changes that need a restart. Returns nil when the
// config file does not exist; defaults cannot change under us.
func startConfigWatcher(cc *commandContext) *config.Watcher {
	path := cc.configPath()
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			cc.levelVar().Set(slogLevel(d.NewLogLevel))
			slog.Info("log level reloaded", "level", d.NewLogLevel)
		}
		if d.PreviewChanged || d.VoiceChanged {
			slog.Info("preview defaults changed; applies to the next session")
		}
		if len(d.RestartNeeded) > 0 {
			slog.Warn("config changes need a restart",
				"sections", strings.Join(d.RestartNeeded, ", "))
		}
	})
	if err != nil {
		slog.Debug("config watcher not started", "err", err)
		return nil
	}
	return w
}
