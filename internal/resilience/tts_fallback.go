package resilience

import (
	"context"

	"github.com/MrWong99/narrata/internal/observe"
	"github.com/MrWong99/narrata/pkg/audio"
	"github.com/MrWong99/narrata/pkg/provider/tts"
)

// ttsBackend pairs a provider with the voice to use on it. Voice IDs are
// rarely portable across backends.
type ttsBackend struct {
	provider tts.Provider
	voice    tts.VoiceProfile
}

// TTSFallback implements [tts.Provider] with failover across several
// backends, each behind its own circuit breaker. A sentence that fails on one
// backend is re-synthesized in full on the next.
type TTSFallback struct {
	group   *FallbackGroup[ttsBackend]
	primary string
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend. Requests reach the primary with their own voice.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group:   NewFallbackGroup(ttsBackend{provider: primary}, primaryName, cfg),
		primary: primaryName,
	}
}

// AddFallback registers an additional TTS provider. A non-empty voice
// replaces the request's voice on that provider.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider, voice tts.VoiceProfile) {
	f.group.AddFallback(name, ttsBackend{provider: provider, voice: voice})
}

// Status reports the breaker state of every backend.
func (f *TTSFallback) Status() []EntryStatus { return f.group.Status() }

// Synthesize voices the request on the first healthy provider.
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	clip, name, err := ExecuteWithResult(ctx, f.group, func(ctx context.Context, b ttsBackend) (*audio.Clip, error) {
		r := req
		if b.voice.ID != "" {
			r.Voice = b.voice
		}
		return b.provider.Synthesize(ctx, r)
	})
	if err == nil && name != f.primary {
		observe.Logger(ctx).Info("synthesis served by fallback", "provider", name, "segment", req.SegmentID)
	}
	return clip, err
}

// ListVoices returns voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	voices, _, err := ExecuteWithResult(ctx, f.group, func(ctx context.Context, b ttsBackend) ([]tts.VoiceProfile, error) {
		return b.provider.ListVoices(ctx)
	})
	return voices, err
}
