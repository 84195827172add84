// Package config provides the configuration schema, loader, and provider
// registry for the narrata narration engine.
package config

import (
	"time"

	"github.com/MrWong99/narrata/pkg/emotion"
	"github.com/MrWong99/narrata/pkg/prosody"
)

// LogLevel controls log verbosity.
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

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Voice      VoiceConfig      `yaml:"voice"`
	Fusion     FusionConfig     `yaml:"fusion"`
	Prosody    ProsodyConfig    `yaml:"prosody"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Text       TextConfig       `yaml:"text"`
	Audio      AudioConfig      `yaml:"audio"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Store      StoreConfig      `yaml:"store"`
}

// ServerConfig holds network and logging settings for the HTTP API.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown. Default: 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxRequestBytes caps request bodies. Default: text.max_file_size.
	MaxRequestBytes int64 `yaml:"max_request_bytes"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig declares the provider implementations in use. Each entry
// selects a named factory registered in the [Registry]. Fallback entries are
// tried in order when the primary fails.
type ProvidersConfig struct {
	LLM         ProviderEntry   `yaml:"llm"`
	LLMFallback []ProviderEntry `yaml:"llm_fallback"`
	TTS         ProviderEntry   `yaml:"tts"`
	TTSFallback []ProviderEntry `yaml:"tts_fallback"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "coqui").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Timeout bounds a single provider call. Zero keeps the provider default.
	Timeout time.Duration `yaml:"timeout"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// VoiceConfig selects the narrator voice.
type VoiceConfig struct {
	// ID is the provider-specific voice identifier.
	ID string `yaml:"id"`

	// Name is a display label.
	Name string `yaml:"name"`
}

// FusionConfig tunes signal fusion.
type FusionConfig struct {
	// Weights of the four signals. All zero means [emotion.DefaultWeights].
	Weights emotion.Weights `yaml:"weights"`
}

// ProsodyConfig tunes the profile to prosody mapping.
type ProsodyConfig struct {
	// EmphasisThreshold is the attention weight a word must exceed to be
	// emphasized. Default: 0.7.
	EmphasisThreshold float64 `yaml:"emphasis_threshold"`

	// Emotions overrides or extends the per-emotion modifier table.
	Emotions prosody.Table `yaml:"emotions"`
}

// AnalysisConfig tunes the signal producers.
type AnalysisConfig struct {
	// Concurrency bounds how many segments are analysed at once. Default: 4.
	Concurrency int `yaml:"concurrency"`

	// ContextWindow is how many neighbouring segments on each side are handed
	// to the sarcasm detector. Default: 2.
	ContextWindow int `yaml:"context_window"`

	// NegationWindow is the lexical negation reach in tokens. Default: 3.
	NegationWindow int `yaml:"negation_window"`

	// FuzzyThreshold is the Jaro-Winkler cut-off for fuzzy lexicon lookup.
	// Default: 0.92.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// LexiconPath names a YAML lexicon merged over the built-in one.
	LexiconPath string `yaml:"lexicon_path"`

	// Abbreviations extends the segmenter's list of words whose trailing
	// period does not end a sentence.
	Abbreviations []string `yaml:"abbreviations"`
}

// TextConfig constrains input documents.
type TextConfig struct {
	// MaxFileSize in bytes. Default: 10 MB.
	MaxFileSize int64 `yaml:"max_file_size"`

	// Encoding of input files. Only "utf-8" is supported.
	Encoding string `yaml:"encoding"`
}

// AudioConfig controls assembly of the final track.
type AudioConfig struct {
	// SampleRate of the output. Default: 44100.
	SampleRate int `yaml:"sample_rate"`

	// Channels of the output, 1 or 2. Default: 1.
	Channels int `yaml:"channels"`

	// CrossfadeMs between sentences. Default: 100.
	CrossfadeMs int `yaml:"crossfade_ms"`

	// Normalize peak-normalizes the track. Default: true.
	Normalize *bool `yaml:"normalize"`
}

// ResilienceConfig tunes the circuit breakers around providers.
type ResilienceConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// StoreConfig selects where emotion profiles are persisted.
type StoreConfig struct {
	// PostgresDSN enables the PostgreSQL store. Empty keeps profiles in
	// memory.
	PostgresDSN string `yaml:"postgres_dsn"`
}
