package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/narrata/internal/config"
	"github.com/MrWong99/narrata/pkg/prosody"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mutate     func(*config.Config)
		check      func(config.ConfigDiff) bool
		reloadable bool
		restart    []string
	}{
		{
			name:   "identical",
			mutate: func(*config.Config) {},
			check:  func(d config.ConfigDiff) bool { return !d.Reloadable() },
		},
		{
			name:       "log level",
			mutate:     func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			check:      func(d config.ConfigDiff) bool { return d.LogLevelChanged && d.NewLogLevel == config.LogDebug && !d.PipelineChanged() },
			reloadable: true,
		},
		{
			name:       "weights",
			mutate:     func(c *config.Config) { c.Fusion.Weights.Lexical += 0.05; c.Fusion.Weights.Contextual -= 0.05 },
			check:      func(d config.ConfigDiff) bool { return d.WeightsChanged && d.PipelineChanged() },
			reloadable: true,
		},
		{
			name: "prosody table",
			mutate: func(c *config.Config) {
				c.Prosody.Emotions = prosody.Table{"awe": {Speed: 0.9, Energy: 1}}
			},
			check:      func(d config.ConfigDiff) bool { return d.ProsodyChanged },
			reloadable: true,
		},
		{
			name:       "emphasis threshold",
			mutate:     func(c *config.Config) { c.Prosody.EmphasisThreshold = 0.5 },
			check:      func(d config.ConfigDiff) bool { return d.ProsodyChanged },
			reloadable: true,
		},
		{
			name:       "abbreviations",
			mutate:     func(c *config.Config) { c.Analysis.Abbreviations = []string{"Capt"} },
			check:      func(d config.ConfigDiff) bool { return d.AnalysisChanged },
			reloadable: true,
		},
		{
			name: "normalize",
			mutate: func(c *config.Config) {
				off := false
				c.Audio.Normalize = &off
			},
			check:      func(d config.ConfigDiff) bool { return d.AudioChanged },
			reloadable: true,
		},
		{
			name:    "providers",
			mutate:  func(c *config.Config) { c.Providers.TTS.Name = "coqui" },
			check:   func(d config.ConfigDiff) bool { return !d.Reloadable() },
			restart: []string{"providers"},
		},
		{
			name:    "listen addr and store",
			mutate:  func(c *config.Config) { c.Server.ListenAddr = ":1"; c.Store.PostgresDSN = "postgres://x" },
			check:   func(d config.ConfigDiff) bool { return true },
			restart: []string{"server", "store"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old, updated := config.Default(), config.Default()
			tt.mutate(updated)

			d := config.Diff(old, updated)
			if !tt.check(d) {
				t.Errorf("diff = %+v", d)
			}
			if tt.reloadable && !d.Reloadable() {
				t.Error("expected a reloadable change")
			}
			if !slices.Equal(d.RestartRequired, tt.restart) {
				t.Errorf("restart = %v, want %v", d.RestartRequired, tt.restart)
			}
		})
	}
}
