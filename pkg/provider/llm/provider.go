// Package llm defines the Provider interface for the language model backends
// used by contextual sentiment analysis.
//
// A provider wraps a remote or local model API (OpenAI, Anthropic, a local
// Ollama instance, ...) and exposes a single request/response call. Requests
// may carry a JSON schema; providers with native structured output enforce it
// server-side, the rest receive it as part of the system prompt.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ResponseSchema asks the model to answer with a JSON document matching
// Schema. Build Schema with [SchemaFor].
type ResponseSchema struct {
	// Name identifies the schema to the backend (letters, digits, '_' and '-').
	Name string

	// Description is an optional hint shown to the model.
	Description string

	// Schema is the JSON Schema document as a generic map.
	Schema map[string]any
}

// CompletionRequest carries everything the model needs to produce a reply.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is usually from
	// the "user" role.
	Messages []Message

	// Temperature in [0.0, 2.0]. Zero requests the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means the provider default.
	MaxTokens int

	// SystemPrompt is an optional instruction placed before Messages.
	SystemPrompt string

	// Schema, when set, constrains the reply to a JSON document.
	Schema *ResponseSchema
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	// Content is the full text of the reply. With a Schema this is the JSON
	// document; decode it with [DecodeJSON].
	Content string

	Usage Usage
}

// Provider is the abstraction over any language model backend.
type Provider interface {
	// Complete sends req and waits for the full reply. It must return
	// promptly once ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the underlying model.
	Capabilities() ModelCapabilities
}
