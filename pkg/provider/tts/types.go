package tts

// VoiceProfile identifies a voice on a particular backend.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string `yaml:"id" json:"id"`

	// Name is the human-readable voice name.
	Name string `yaml:"name" json:"name"`

	// Provider names the backend the voice belongs to.
	Provider string `yaml:"provider" json:"provider"`

	// Metadata holds provider-specific attributes (model, type, accent...).
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}
