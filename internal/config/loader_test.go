package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/narrata/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{"log level", "server:\n  log_level: loud\n", "server.log_level"},
		{"tls half", "server:\n  tls:\n    cert_file: c.pem\n", "key_file"},
		{"weights sum", "fusion:\n  weights:\n    lexical: 0.5\n    contextual: 0.5\n    sarcasm: 0.5\n    pragmatic: 0.5\n", "sum"},
		{"negative weight", "fusion:\n  weights:\n    lexical: -0.2\n    contextual: 0.6\n    sarcasm: 0.3\n    pragmatic: 0.3\n", "negative"},
		{"emphasis range", "prosody:\n  emphasis_threshold: 1.5\n", "emphasis_threshold"},
		{"modifier", "prosody:\n  emotions:\n    joy:\n      speed: 0\n      energy: 1\n", "speed"},
		{"encoding", "text:\n  encoding: latin-1\n", "encoding"},
		{"channels", "audio:\n  channels: 6\n", "audio.channels"},
		{"fallback without primary", "providers:\n  tts_fallback:\n    - name: coqui\n", "requires providers.tts"},
		{"fallback name", "providers:\n  llm:\n    name: openai\n  llm_fallback:\n    - model: x\n", "llm_fallback[0].name"},
		{"concurrency", "analysis:\n  concurrency: -1\n", "analysis.concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  log_level: loud
text:
  encoding: ascii
audio:
  channels: 3
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, sub := range []string{"log_level", "encoding", "channels"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("joined error is missing %q: %v", sub, err)
		}
	}
}

func TestValidate_UnknownProviderOnlyWarns(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("providers:\n  tts:\n    name: my-custom-tts\n"))
	if err != nil {
		t.Fatalf("unknown provider names must not fail validation: %v", err)
	}
}

func TestValidate_EncodingSpellings(t *testing.T) {
	t.Parallel()

	for _, enc := range []string{"utf-8", "UTF-8", "utf8"} {
		if _, err := config.LoadFromReader(strings.NewReader("text:\n  encoding: " + enc + "\n")); err != nil {
			t.Errorf("%s: %v", enc, err)
		}
	}
}
