// Package tts defines the Provider interface for text-to-speech backends.
//
// A provider turns one sentence plus its prosody parameters into a complete
// PCM clip. Narration is assembled from those clips afterwards, so providers
// never stream partial audio to the caller.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/narrata/pkg/audio"
	"github.com/MrWong99/narrata/pkg/prosody"
)

// ErrEmptyText is returned by providers asked to voice blank text.
var ErrEmptyText = errors.New("tts: empty text")

// Request is a single synthesis job.
type Request struct {
	// SegmentID is copied onto the returned clip.
	SegmentID string

	Text  string
	Voice VoiceProfile

	// Prosody carries the speed, pitch, energy and emphasis chosen for the
	// segment. Providers apply what their backend supports and ignore the rest.
	Prosody prosody.Parameters
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize voices req.Text and returns the complete clip. The returned
	// clip's SegmentID equals req.SegmentID.
	Synthesize(ctx context.Context, req Request) (*audio.Clip, error)

	// ListVoices returns the voices the backend currently offers.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
