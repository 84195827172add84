package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/narrata/internal/analysis/lexical"
	"github.com/MrWong99/narrata/internal/input"
	"github.com/MrWong99/narrata/pkg/audio"
	"github.com/MrWong99/narrata/pkg/emotion"
	"github.com/MrWong99/narrata/pkg/prosody"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultConcurrency     = 4
	DefaultContextWindow   = 2
	DefaultEncoding        = "utf-8"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts": {"elevenlabs", "coqui"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
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

// LoadFromReader decodes a YAML config from r, validates it and applies
// defaults. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field of cfg with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Fusion.Weights == (emotion.Weights{}) {
		cfg.Fusion.Weights = emotion.DefaultWeights()
	}
	if cfg.Prosody.EmphasisThreshold == 0 {
		cfg.Prosody.EmphasisThreshold = prosody.DefaultEmphasisThreshold
	}
	if cfg.Analysis.Concurrency <= 0 {
		cfg.Analysis.Concurrency = DefaultConcurrency
	}
	if cfg.Analysis.ContextWindow <= 0 {
		cfg.Analysis.ContextWindow = DefaultContextWindow
	}
	if cfg.Analysis.NegationWindow <= 0 {
		cfg.Analysis.NegationWindow = lexical.DefaultNegationWindow
	}
	if cfg.Analysis.FuzzyThreshold == 0 {
		cfg.Analysis.FuzzyThreshold = lexical.DefaultFuzzyThreshold
	}
	if cfg.Text.MaxFileSize <= 0 {
		cfg.Text.MaxFileSize = input.DefaultMaxFileSize
	}
	if cfg.Text.Encoding == "" {
		cfg.Text.Encoding = DefaultEncoding
	}
	if cfg.Server.MaxRequestBytes <= 0 {
		cfg.Server.MaxRequestBytes = cfg.Text.MaxFileSize
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = audio.DefaultSampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = audio.DefaultFormat.Channels
	}
	if cfg.Audio.CrossfadeMs == 0 {
		cfg.Audio.CrossfadeMs = int(audio.DefaultCrossfade / time.Millisecond)
	}
	if cfg.Audio.Normalize == nil {
		on := true
		cfg.Audio.Normalize = &on
	}
}

// Crossfade returns the configured crossfade as a duration. A negative
// crossfade_ms disables crossfading.
func (a AudioConfig) Crossfade() time.Duration {
	if a.CrossfadeMs < 0 {
		return 0
	}
	return time.Duration(a.CrossfadeMs) * time.Millisecond
}

// Validate checks that cfg contains a coherent set of values. Unset fields
// are accepted; they are filled by [ApplyDefaults].
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil && (cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if cfg.Server.MaxRequestBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_request_bytes %d must not be negative", cfg.Server.MaxRequestBytes))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for i, e := range cfg.Providers.LLMFallback {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallback[%d].name is required", i))
		}
		validateProviderName("llm", e.Name)
	}
	for i, e := range cfg.Providers.TTSFallback {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallback[%d].name is required", i))
		}
		validateProviderName("tts", e.Name)
	}
	if cfg.Providers.LLM.Name == "" && len(cfg.Providers.LLMFallback) > 0 {
		errs = append(errs, errors.New("providers.llm_fallback requires providers.llm"))
	}
	if cfg.Providers.TTS.Name == "" && len(cfg.Providers.TTSFallback) > 0 {
		errs = append(errs, errors.New("providers.tts_fallback requires providers.tts"))
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is not configured; only analysis will be available")
	}

	// Fusion
	if cfg.Fusion.Weights != (emotion.Weights{}) {
		if err := cfg.Fusion.Weights.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("fusion.weights: %w", err))
		}
	}

	// Prosody
	if th := cfg.Prosody.EmphasisThreshold; th < 0 || th > 1 || math.IsNaN(th) {
		errs = append(errs, fmt.Errorf("prosody.emphasis_threshold %g is out of range [0, 1]", th))
	}
	if err := cfg.Prosody.Emotions.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("prosody.emotions: %w", err))
	}

	// Analysis
	if cfg.Analysis.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("analysis.concurrency %d must not be negative", cfg.Analysis.Concurrency))
	}
	if cfg.Analysis.ContextWindow < 0 {
		errs = append(errs, fmt.Errorf("analysis.context_window %d must not be negative", cfg.Analysis.ContextWindow))
	}
	if cfg.Analysis.NegationWindow < 0 {
		errs = append(errs, fmt.Errorf("analysis.negation_window %d must not be negative", cfg.Analysis.NegationWindow))
	}
	if th := cfg.Analysis.FuzzyThreshold; th < 0 || math.IsNaN(th) {
		errs = append(errs, fmt.Errorf("analysis.fuzzy_threshold %g must not be negative", th))
	}

	// Text
	if cfg.Text.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("text.max_file_size %d must not be negative", cfg.Text.MaxFileSize))
	}
	if enc := cfg.Text.Encoding; enc != "" && !strings.EqualFold(enc, "utf-8") && !strings.EqualFold(enc, "utf8") {
		errs = append(errs, fmt.Errorf("text.encoding %q is not supported; only utf-8 is", enc))
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must not be negative", cfg.Audio.SampleRate))
	}
	if c := cfg.Audio.Channels; c != 0 && c != 1 && c != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1, 2", c))
	}

	// Resilience
	if cfg.Resilience.MaxFailures < 0 || cfg.Resilience.HalfOpenMax < 0 || cfg.Resilience.ResetTimeout < 0 {
		errs = append(errs, errors.New("resilience values must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
