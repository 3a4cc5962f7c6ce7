package config

// ConfigDiff describes what changed between two configs. Preview, voice, and
// log-level changes can be applied to a running session; everything else is
// reported under RestartNeeded.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PreviewChanged is true if any preview default changed.
	PreviewChanged bool

	// VoiceChanged is true if voice.default_formula changed.
	VoiceChanged bool

	// RestartNeeded lists dotted field paths that changed but only take
	// effect on restart.
	RestartNeeded []string
}

// HasChanges reports whether the diff contains any change at all.
func (d ConfigDiff) HasChanges() bool {
	return d.LogLevelChanged || d.PreviewChanged || d.VoiceChanged || len(d.RestartNeeded) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Log.Level != new.Log.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Log.Level
	}

	if old.Preview != new.Preview {
		d.PreviewChanged = true
	}

	if old.Voice.DefaultFormula != new.Voice.DefaultFormula {
		d.VoiceChanged = true
	}

	// Fields the running session cannot pick up.
	if old.Server != new.Server {
		d.RestartNeeded = append(d.RestartNeeded, "server")
	}
	if old.Studio != new.Studio {
		d.RestartNeeded = append(d.RestartNeeded, "studio")
	}
	if old.Cache != new.Cache {
		d.RestartNeeded = append(d.RestartNeeded, "cache")
	}
	if old.Metrics != new.Metrics {
		d.RestartNeeded = append(d.RestartNeeded, "metrics")
	}

	return d
}
