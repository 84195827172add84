package llm

// Message is a single turn of a model conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	Content string
}

// UserMessage is shorthand for a user-role [Message].
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// ModelCapabilities describes what a model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input plus output.
	ContextWindow int

	// MaxOutputTokens is the most tokens the model generates in one reply.
	MaxOutputTokens int

	// SupportsStructuredOutput reports native JSON-schema enforcement. When
	// false, a request's Schema is only described to the model in the prompt.
	SupportsStructuredOutput bool
}
