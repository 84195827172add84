package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"

	"github.com/MrWong99/narrata/pkg/audio"
	"github.com/MrWong99/narrata/pkg/prosody"
	"github.com/MrWong99/narrata/pkg/provider/tts"
)

// fakeStream is a WebSocket server speaking the stream-input protocol.
type fakeStream struct {
	mu       sync.Mutex
	path     string
	query    string
	received []textMessage

	// replies are sent after the closing empty text message.
	replies []string
}

func (f *fakeStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	f.mu.Lock()
	f.path, f.query = r.URL.Path, r.URL.RawQuery
	f.mu.Unlock()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var m textMessage
		_ = json.Unmarshal(data, &m)
		f.mu.Lock()
		f.received = append(f.received, m)
		f.mu.Unlock()
		if m.Text == "" {
			break
		}
	}
	for _, reply := range f.replies {
		if err := conn.Write(ctx, websocket.MessageText, []byte(reply)); err != nil {
			return
		}
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func audioMsg(pcm []byte, final bool) string {
	data, _ := json.Marshal(audioResponse{Audio: base64.StdEncoding.EncodeToString(pcm), IsFinal: final})
	return string(data)
}

func newStreamProvider(t *testing.T, f *fakeStream, opts ...Option) *Provider {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURLs(srv.URL, "ws"+strings.TrimPrefix(srv.URL, "http"))}, opts...)
	p, err := New("xi-test", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestSynthesize(t *testing.T) {
	f := &fakeStream{replies: []string{
		audioMsg([]byte{1, 0, 2, 0}, false),
		`{"audio":""}`,
		audioMsg([]byte{3, 0, 4}, true),
	}}
	p := newStreamProvider(t, f)

	clip, err := p.Synthesize(context.Background(), tts.Request{
		SegmentID: "p0_s2",
		Text:      "Oh great, another Monday.",
		Voice:     tts.VoiceProfile{ID: "voice 1"},
		Prosody:   prosody.NewParameters(1.5, 2, 1.25, []string{"great"}),
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if clip.SegmentID != "p0_s2" || clip.Format != (audio.Format{SampleRate: 16000, Channels: 1}) {
		t.Errorf("clip = %+v", clip)
	}
	// The trailing odd byte is dropped.
	if got := clip.PCM; len(got) != 6 || got[4] != 3 {
		t.Errorf("pcm = %v, want 6 bytes", got)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.path != "/v1/text-to-speech/voice%201/stream-input" && f.path != "/v1/text-to-speech/voice 1/stream-input" {
		t.Errorf("path = %q", f.path)
	}
	if !strings.Contains(f.query, "model_id=eleven_flash_v2_5") || !strings.Contains(f.query, "output_format=pcm_16000") {
		t.Errorf("query = %q", f.query)
	}
	if len(f.received) != 3 {
		t.Fatalf("received %d messages, want 3", len(f.received))
	}
	first := f.received[0]
	if first.Text != " " || first.XiAPIKey != "xi-test" || first.VoiceSettings == nil {
		t.Fatalf("first message = %+v", first)
	}
	if first.VoiceSettings.Speed != maxSpeed {
		t.Errorf("speed = %v, want clamped to %v", first.VoiceSettings.Speed, maxSpeed)
	}
	if math.Abs(first.VoiceSettings.Style-0.5) > 1e-9 {
		t.Errorf("style = %v, want 0.5", first.VoiceSettings.Style)
	}
	if got := f.received[1].Text; got != "Oh GREAT, another Monday. " {
		t.Errorf("text = %q", got)
	}
	if f.received[1].XiAPIKey != "" {
		t.Error("API key must only be sent once")
	}
}

func TestSynthesize_ServerError(t *testing.T) {
	f := &fakeStream{replies: []string{`{"error":"quota_exceeded","message":"out of credits"}`}}
	p := newStreamProvider(t, f)

	_, err := p.Synthesize(context.Background(), tts.Request{Text: "Hi.", Voice: tts.VoiceProfile{ID: "v"}})
	if err == nil || !strings.Contains(err.Error(), "quota_exceeded") {
		t.Errorf("err = %v, want quota error", err)
	}
}

func TestSynthesize_ClosedWithoutAudio(t *testing.T) {
	p := newStreamProvider(t, &fakeStream{})
	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "Hi.", Voice: tts.VoiceProfile{ID: "v"}}); err == nil {
		t.Error("expected error when the stream closes without audio")
	}
}

func TestSynthesize_Validation(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if _, err := p.Synthesize(ctx, tts.Request{Text: " ", Voice: tts.VoiceProfile{ID: "v"}}); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
	if _, err := p.Synthesize(ctx, tts.Request{Text: "Hi."}); err == nil {
		t.Error("expected error for empty voice ID")
	}
}

func TestSettingsFor(t *testing.T) {
	tests := []struct {
		name         string
		params       prosody.Parameters
		speed, style float64
	}{
		{"zero value is neutral", prosody.Parameters{}, 1, 1.0 / 3},
		{"neutral", prosody.Neutral(), 1, 1.0 / 3},
		{"slow and quiet", prosody.NewParameters(0.5, 0, 0.5, nil), minSpeed, 0},
		{"fast and loud", prosody.NewParameters(2, 0, 2, nil), maxSpeed, 1},
		{"in range", prosody.NewParameters(0.9, 0, 1.1, nil), 0.9, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := settingsFor(tt.params)
			if math.Abs(vs.Speed-tt.speed) > 1e-9 {
				t.Errorf("speed = %v, want %v", vs.Speed, tt.speed)
			}
			if math.Abs(vs.Style-tt.style) > 1e-9 {
				t.Errorf("style = %v, want %v", vs.Style, tt.style)
			}
			if vs.Stability != defaultStability || vs.SimilarityBoost != defaultSimilarity {
				t.Errorf("settings = %+v", vs)
			}
		})
	}
}

func TestEmphasize(t *testing.T) {
	p := prosody.NewParameters(1, 0, 1, []string{"never", "really"})
	got := emphasize("I never, Really said that. Nevermore.", p)
	if want := "I NEVER, REALLY said that. Nevermore."; got != want {
		t.Errorf("emphasize = %q, want %q", got, want)
	}
	if got := emphasize("plain", prosody.Neutral()); got != "plain" {
		t.Errorf("no emphasis words changed text to %q", got)
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != voicesPath || r.Header.Get("xi-api-key") != "xi-test" {
			http.Error(w, "nope", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"abc123","name":"Rachel","category":"premade","labels":{"accent":"american"}}]}`))
	}))
	defer srv.Close()

	p, err := New("xi-test", WithBaseURLs(srv.URL, ""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "abc123" || voices[0].Metadata["category"] != "premade" || voices[0].Metadata["accent"] != "american" {
		t.Errorf("voices = %+v", voices)
	}

	bad, _ := New("wrong", WithBaseURLs(srv.URL, ""))
	if _, err := bad.ListVoices(context.Background()); err == nil {
		t.Error("expected error for 401")
	}
}

func TestParseVoicesResponse_NoLabels(t *testing.T) {
	profiles, err := parseVoicesResponse([]byte(`{"voices":[{"voice_id":"x1","name":"Ghost","category":"","labels":null}]}`))
	if err != nil {
		t.Fatalf("parseVoicesResponse: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	if _, ok := profiles[0].Metadata["category"]; ok {
		t.Error("empty category should not appear in metadata")
	}
	if _, err := parseVoicesResponse([]byte(`{invalid`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New("key", WithOutputFormat("mp3_44100_128")); err == nil {
		t.Error("expected error for non-PCM output")
	}

	p, err := New("key", WithModel("eleven_multilingual_v2"), WithOutputFormat("pcm_24000"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != "eleven_multilingual_v2" || p.format.SampleRate != 24000 {
		t.Errorf("provider = %+v", p)
	}
	if !strings.HasPrefix(p.streamURL("v"), defaultWSBase) {
		t.Errorf("stream URL = %q", p.streamURL("v"))
	}
}
