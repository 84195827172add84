package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/narrata/internal/health"
	"github.com/MrWong99/narrata/internal/narrate"
	"github.com/MrWong99/narrata/internal/observe"
	"github.com/MrWong99/narrata/pkg/audio"
	"github.com/MrWong99/narrata/pkg/provider/tts"
	ttsmock "github.com/MrWong99/narrata/pkg/provider/tts/mock"
)

const story = "What a wonderful morning. The sun was bright, and the birds sang.\n\nThen the storm came! Everything was terrible."

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func testPipeline(t *testing.T, m *observe.Metrics, synth tts.Provider) *narrate.Pipeline {
	t.Helper()
	opts := []narrate.Option{narrate.WithMetrics(m)}
	if synth != nil {
		opts = append(opts, narrate.WithSynthesizer(synth, tts.VoiceProfile{ID: "narrator"}))
	}
	p, err := narrate.New(narrate.NewSuite(nil, nil, m), opts...)
	if err != nil {
		t.Fatalf("narrate.New: %v", err)
	}
	return p
}

func newTestServer(t *testing.T, synth tts.Provider, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	m := testMetrics(t)
	opts = append([]Option{WithMetrics(m), WithGatherer(prometheus.NewRegistry())}, opts...)
	s, err := New(testPipeline(t, m, synth), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, url, contentType, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func jsonText(text string) string {
	b, _ := json.Marshal(Request{Text: text})
	return string(b)
}

func TestNew_NilPipeline(t *testing.T) {
	t.Parallel()
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil pipeline")
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, nil)

	for _, tc := range []struct {
		name, contentType, body string
	}{
		{"json", "application/json", jsonText(story)},
		{"plain text", "text/plain; charset=utf-8", story},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/v1/analyze", tc.contentType, tc.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			var a narrate.Analysis
			if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(a.Segments) != 8 {
				t.Errorf("segments = %d, want 8", len(a.Segments))
			}
			if a.DocumentID != narrate.DocumentID(story) {
				t.Errorf("document id = %q", a.DocumentID)
			}
			if a.Segments[1].Prosody.Speed == 0 {
				t.Error("prosody missing from response")
			}
		})
	}
}

func TestAnalyze_BadRequests(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, nil, WithMaxRequestBytes(64))

	tests := []struct {
		name        string
		contentType string
		body        string
		want        int
	}{
		{"malformed json", "application/json", `{"text":`, http.StatusBadRequest},
		{"unknown field", "application/json", `{"txt":"hi"}`, http.StatusBadRequest},
		{"empty text", "application/json", `{"text":"   "}`, http.StatusUnprocessableEntity},
		{"only symbols", "application/json", `{"text":"***"}`, http.StatusUnprocessableEntity},
		{"invalid utf-8", "text/plain", "\xff\xfe", http.StatusUnprocessableEntity},
		{"too large json", "application/json", jsonText(strings.Repeat("word ", 40)), http.StatusRequestEntityTooLarge},
		{"too large text", "text/plain", strings.Repeat("word ", 40), http.StatusRequestEntityTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/v1/analyze", tc.contentType, tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
			var body errorBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
				t.Errorf("error body = %+v, %v", body, err)
			}
		})
	}
}

func TestAnalyze_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/v1/analyze")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestNarrate(t *testing.T) {
	t.Parallel()
	synth := &ttsmock.Provider{}
	_, ts := newTestServer(t, synth)

	resp := post(t, ts.URL+"/v1/narrate", "application/json", jsonText(story))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := resp.Header.Get(HeaderSentences); got != "4" {
		t.Errorf("%s = %q, want 4", HeaderSentences, got)
	}
	if got := resp.Header.Get(HeaderDocumentID); got != narrate.DocumentID(story) {
		t.Errorf("%s = %q", HeaderDocumentID, got)
	}

	var buf strings.Builder
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	clip, err := audio.ParseWAV([]byte(buf.String()))
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if clip.Format != audio.DefaultFormat || clip.Duration() <= 0 {
		t.Errorf("clip = %v, %v", clip.Format, clip.Duration())
	}
	if n := len(synth.Calls()); n != 4 {
		t.Errorf("synthesize calls = %d, want 4", n)
	}
}

func TestNarrate_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no synthesizer", func(t *testing.T) {
		t.Parallel()
		_, ts := newTestServer(t, nil)
		if resp := post(t, ts.URL+"/v1/narrate", "application/json", jsonText(story)); resp.StatusCode != http.StatusNotImplemented {
			t.Errorf("status = %d, want 501", resp.StatusCode)
		}
	})
	t.Run("provider failure", func(t *testing.T) {
		t.Parallel()
		_, ts := newTestServer(t, &ttsmock.Provider{SynthesizeErr: errors.New("quota exceeded")})
		if resp := post(t, ts.URL+"/v1/narrate", "application/json", jsonText(story)); resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", resp.StatusCode)
		}
	})
}

func TestSetPipeline(t *testing.T) {
	t.Parallel()
	s, ts := newTestServer(t, nil)

	if resp := post(t, ts.URL+"/v1/narrate", "application/json", jsonText(story)); resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("before swap: status = %d", resp.StatusCode)
	}
	s.SetPipeline(testPipeline(t, testMetrics(t), &ttsmock.Provider{}))
	s.SetPipeline(nil)
	if resp := post(t, ts.URL+"/v1/narrate", "application/json", jsonText(story)); resp.StatusCode != http.StatusOK {
		t.Fatalf("after swap: status = %d", resp.StatusCode)
	}
}

func TestProbesAndMetrics(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, nil, WithCheckers(health.Checker{
		Name:  "store",
		Check: func(context.Context) error { return errors.New("connection refused") },
	}))

	for path, want := range map[string]int{
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusServiceUnavailable,
		"/metrics": http.StatusOK,
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("%s: status = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want int
	}{
		{narrate.ErrTextProcessing, http.StatusUnprocessableEntity},
		{narrate.ErrNoSynthesizer, http.StatusNotImplemented},
		{narrate.ErrAnalysis, http.StatusBadGateway},
		{narrate.ErrSynthesis, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
