package config

import (
	"maps"
	"reflect"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// Hot-reloadable tuning.
	WeightsChanged  bool
	ProsodyChanged  bool
	AnalysisChanged bool
	VoiceChanged    bool
	AudioChanged    bool

	// RestartRequired lists sections that only take effect after a restart.
	RestartRequired []string
}

// Reloadable reports whether d touches anything the running pipeline can
// pick up without a restart.
func (d ConfigDiff) Reloadable() bool {
	return d.LogLevelChanged || d.WeightsChanged || d.ProsodyChanged || d.AnalysisChanged || d.VoiceChanged || d.AudioChanged
}

// PipelineChanged reports whether d touches settings the narration pipeline
// is built from.
func (d ConfigDiff) PipelineChanged() bool {
	return d.WeightsChanged || d.ProsodyChanged || d.AnalysisChanged || d.VoiceChanged || d.AudioChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.WeightsChanged = old.Fusion.Weights != new.Fusion.Weights
	d.ProsodyChanged = old.Prosody.EmphasisThreshold != new.Prosody.EmphasisThreshold ||
		!maps.Equal(old.Prosody.Emotions, new.Prosody.Emotions)
	d.AnalysisChanged = !reflect.DeepEqual(old.Analysis, new.Analysis)
	d.VoiceChanged = old.Voice != new.Voice
	d.AudioChanged = !reflect.DeepEqual(old.Audio, new.Audio)

	if old.Server.ListenAddr != new.Server.ListenAddr || !reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Text != new.Text || old.Resilience != new.Resilience {
		d.RestartRequired = append(d.RestartRequired, "text/resilience")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}
	return d
}
