package coqui

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/narrata/pkg/audio"
	"github.com/MrWong99/narrata/pkg/prosody"
	"github.com/MrWong99/narrata/pkg/provider/tts"
)

// testWAV encodes the given samples as 16 kHz mono WAV.
func testWAV(t *testing.T, samples ...int16) []byte {
	t.Helper()
	pcm := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
	}
	wav, err := audio.EncodeWAV(audio.Clip{PCM: pcm, Format: audio.Format{SampleRate: 16000, Channels: 1}})
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return wav
}

func mustNew(t *testing.T, serverURL string, opts ...Option) *Provider {
	t.Helper()
	p, err := New(serverURL, opts...)
	if err != nil {
		t.Fatalf("New(%q): %v", serverURL, err)
	}
	return p
}

// recorder captures the last request seen by a test server.
type recorder struct {
	mu    sync.Mutex
	query url.Values
	body  []byte
	path  string
}

func (r *recorder) record(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.query = req.URL.Query()
	r.body = body
	r.path = req.URL.Path
}

func (r *recorder) snapshot() (string, url.Values, []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path, r.query, r.body
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := mustNew(t, "http://localhost:5002/")
		if p.serverURL != "http://localhost:5002" {
			t.Errorf("serverURL = %q, want trailing slash stripped", p.serverURL)
		}
		if p.language != defaultLanguage || p.apiMode != APIModeStandard {
			t.Errorf("language = %q, mode = %q", p.language, p.apiMode)
		}
		if p.httpClient.Timeout != defaultTimeout {
			t.Errorf("timeout = %v, want %v", p.httpClient.Timeout, defaultTimeout)
		}
	})

	t.Run("options", func(t *testing.T) {
		p := mustNew(t, "http://x", WithLanguage("de"), WithTimeout(time.Second), WithAPIMode(APIModeXTTS), WithOutputSampleRate(44100))
		if p.language != "de" || p.httpClient.Timeout != time.Second || p.apiMode != APIModeXTTS || p.outputRate != 44100 {
			t.Errorf("provider = %+v", p)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := New(""); err == nil {
			t.Error("expected error for empty URL")
		}
		if _, err := New("http://x", WithAPIMode("grpc")); err == nil {
			t.Error("expected error for unknown mode")
		}
	})
}

func TestSynthesize_Standard(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(testWAV(t, 100, -100, 200))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL)
	clip, err := p.Synthesize(context.Background(), tts.Request{
		SegmentID: "p0_s0",
		Text:      "  What a lovely morning.  ",
		Voice:     tts.VoiceProfile{ID: "p225"},
		Prosody:   prosody.NewParameters(1.3, 4, 2, nil),
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	path, query, _ := rec.snapshot()
	if path != apiTTSEndpoint {
		t.Errorf("path = %q, want %q", path, apiTTSEndpoint)
	}
	if got := query.Get("text"); got != "What a lovely morning." {
		t.Errorf("text = %q", got)
	}
	if query.Get("speaker_id") != "p225" || query.Get("language_id") != "en" {
		t.Errorf("query = %v", query)
	}
	if got := query.Get("speed"); got != "1.3" {
		t.Errorf("speed = %q, want 1.3", got)
	}
	if query.Has("pitch") {
		t.Error("pitch must not be sent")
	}

	if clip.SegmentID != "p0_s0" {
		t.Errorf("SegmentID = %q", clip.SegmentID)
	}
	if clip.Format != (audio.Format{SampleRate: 16000, Channels: 1}) {
		t.Errorf("format = %v", clip.Format)
	}
	// Energy 2 doubles the samples.
	want := []int16{200, -200, 400}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(clip.PCM[2*i:])); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestSynthesize_XTTS(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		_, _ = w.Write(testWAV(t, 1, 2, 3, 4))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS), WithLanguage("fr"), WithOutputSampleRate(32000))
	clip, err := p.Synthesize(context.Background(), tts.Request{
		Text:  "Bonjour.",
		Voice: tts.VoiceProfile{ID: "Ana Florence"},
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	path, _, raw := rec.snapshot()
	if path != ttsEndpoint {
		t.Errorf("path = %q, want %q", path, ttsEndpoint)
	}
	var body ttsRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	want := ttsRequest{Text: "Bonjour.", SpeakerWav: "Ana Florence", Language: "fr", Speed: 1}
	if body != want {
		t.Errorf("body = %+v, want %+v", body, want)
	}
	if clip.Format.SampleRate != 32000 || clip.Frames() != 8 {
		t.Errorf("clip = %v with %d frames, want 32000 Hz with 8 frames", clip.Format, clip.Frames())
	}
}

func TestSynthesize_Errors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte("not a wav"))
	}))
	defer srv.Close()

	ctx := context.Background()
	p := mustNew(t, srv.URL)

	if _, err := p.Synthesize(ctx, tts.Request{Text: "   "}); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("blank text: err = %v, want ErrEmptyText", err)
	}
	if _, err := p.Synthesize(ctx, tts.Request{Text: "Hi."}); !errors.Is(err, audio.ErrNotWAV) {
		t.Errorf("bad body: err = %v, want ErrNotWAV", err)
	}

	status.Store(http.StatusInternalServerError)
	if _, err := p.Synthesize(ctx, tts.Request{Text: "Hi."}); err == nil {
		t.Error("expected error for HTTP 500")
	}

	x := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS))
	if _, err := x.Synthesize(ctx, tts.Request{Text: "Hi."}); err == nil {
		t.Error("expected error for XTTS without voice")
	}
}

func TestSynthesize_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := mustNew(t, srv.URL)
	if _, err := p.Synthesize(ctx, tts.Request{Text: "Hi."}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestListVoices_Standard(t *testing.T) {
	tests := []struct {
		name    string
		details string
		wantIDs []string
		kind    string
	}{
		{"multi speaker", `{"model_name":"vctk","speakers":["p326","p225"]}`, []string{"p225", "p326"}, "speaker"},
		{"single speaker", `{"model_name":"ljspeech"}`, []string{"ljspeech"}, "single-speaker"},
		{"unnamed model", `{}`, []string{"default"}, "single-speaker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != detailsEndpoint {
					http.NotFound(w, r)
					return
				}
				_, _ = io.WriteString(w, tt.details)
			}))
			defer srv.Close()

			voices, err := mustNew(t, srv.URL).ListVoices(context.Background())
			if err != nil {
				t.Fatalf("ListVoices: %v", err)
			}
			if len(voices) != len(tt.wantIDs) {
				t.Fatalf("voices = %+v, want ids %v", voices, tt.wantIDs)
			}
			for i, v := range voices {
				if v.ID != tt.wantIDs[i] || v.Provider != "coqui" || v.Metadata["type"] != tt.kind {
					t.Errorf("voice %d = %+v", i, v)
				}
			}
		})
	}
}

func TestListVoices_XTTS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != studioSpeakersEndpoint {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"Claribel Dervla":{},"Ana Florence":{}}`)
	}))
	defer srv.Close()

	voices, err := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS)).ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 || voices[0].ID != "Ana Florence" || voices[1].ID != "Claribel Dervla" {
		t.Errorf("voices = %+v, want sorted studio speakers", voices)
	}
}

func TestListVoices_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}))
	defer srv.Close()

	if _, err := mustNew(t, srv.URL).ListVoices(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}
