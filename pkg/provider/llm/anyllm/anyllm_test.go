package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/narrata/pkg/provider/llm"
)

func newOllama(t *testing.T, model string) *Provider {
	t.Helper()
	p, err := New("ollama", model)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "m"); err == nil {
		t.Error("expected error for empty backend")
	}
	if _, err := New("ollama", ""); err == nil {
		t.Error("expected error for empty model")
	}
	_, err := New("fakecloud", "m", anyllmlib.WithAPIKey("dummy"))
	if err == nil {
		t.Fatal("expected error for unsupported backend")
	}
	if !strings.Contains(err.Error(), "llamafile") {
		t.Errorf("error should list supported backends: %v", err)
	}
}

func TestNew_WithAPIKey(t *testing.T) {
	for _, name := range []string{"openai", "anthropic"} {
		if _, err := New(name, "m", anyllmlib.WithAPIKey("sk-test")); err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
		}
	}
}

func TestBuildParams_Plain(t *testing.T) {
	p := newOllama(t, "llama3.2")

	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Be terse.",
		Messages:     []llm.Message{llm.UserMessage("hi")},
		MaxTokens:    64,
	})
	if params.Model != "llama3.2" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 || params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Fatalf("messages = %+v, want system + user", params.Messages)
	}
	if params.Messages[0].ContentString() != "Be terse." {
		t.Errorf("system content = %q", params.Messages[0].ContentString())
	}
	if params.Temperature != nil {
		t.Errorf("temperature = %v, want unset", *params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 64 {
		t.Errorf("max tokens = %v, want 64", params.MaxTokens)
	}
}

func TestBuildParams_SchemaInPrompt(t *testing.T) {
	p := newOllama(t, "llama3.2")

	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage("rate this")},
		Schema: &llm.ResponseSchema{
			Name:   "Verdict",
			Schema: map[string]any{"type": "object", "properties": map[string]any{"sentiment": map[string]any{"type": "number"}}},
		},
	})
	if len(params.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(params.Messages))
	}
	sys := params.Messages[0].ContentString()
	if !strings.Contains(sys, "JSON Schema") || !strings.Contains(sys, `"sentiment"`) {
		t.Errorf("system prompt does not carry the schema:\n%s", sys)
	}
	if params.Temperature == nil || *params.Temperature != schemaTemperature {
		t.Errorf("temperature = %v, want %v", params.Temperature, schemaTemperature)
	}
}

func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model  string
		window int
	}{
		{"gpt-4o-mini", 128_000},
		{"GPT-4", 8_192},
		{"claude-3-5-haiku-latest", 200_000},
		{"gemini-1.5-pro", 2_097_152},
		{"gemini-2.0-flash", 1_048_576},
		{"llama3.2", 32_768},
		{"unknown", 128_000},
	}
	for _, tt := range tests {
		caps := modelCapabilities(tt.model)
		if caps.ContextWindow != tt.window {
			t.Errorf("%s: context window = %d, want %d", tt.model, caps.ContextWindow, tt.window)
		}
		if caps.SupportsStructuredOutput {
			t.Errorf("%s: any-llm backends never enforce schemas natively", tt.model)
		}
	}
}
