// Package server exposes the narration pipeline over HTTP.
//
// Routes:
//
//	POST /v1/analyze  text in, per-segment emotion profiles and prosody out (JSON)
//	POST /v1/narrate  text in, narrated track out (audio/wav)
//	GET  /healthz     liveness
//	GET  /readyz      readiness
//	GET  /metrics     Prometheus exposition
//
// Text is accepted either as {"text": "..."} with a JSON content type or as
// a raw text/plain body.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrWong99/narrata/internal/health"
	"github.com/MrWong99/narrata/internal/input"
	"github.com/MrWong99/narrata/internal/narrate"
	"github.com/MrWong99/narrata/internal/observe"
	"github.com/MrWong99/narrata/pkg/audio"
)

// Response headers set by /v1/narrate.
const (
	HeaderDocumentID = "X-Document-ID"
	HeaderSentences  = "X-Narrated-Sentences"
)

// Request is the JSON body accepted by both pipeline endpoints.
type Request struct {
	Text string `json:"text"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics sets the instruments used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer sets the registry served on /metrics. Default:
// prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithCheckers adds readiness checks to /readyz.
func WithCheckers(c ...health.Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, c...) }
}

// WithMaxRequestBytes caps request bodies. Default: [input.DefaultMaxFileSize].
func WithMaxRequestBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// Server routes HTTP requests to the current pipeline. The pipeline can be
// swapped at runtime with [Server.SetPipeline]; in-flight requests finish on
// the pipeline they started with.
type Server struct {
	pipeline atomic.Pointer[narrate.Pipeline]
	metrics  *observe.Metrics
	gatherer prometheus.Gatherer
	checkers []health.Checker
	maxBytes int64
	handler  http.Handler
}

// New creates a Server serving p.
func New(p *narrate.Pipeline, opts ...Option) (*Server, error) {
	if p == nil {
		return nil, errors.New("server: pipeline must not be nil")
	}
	s := &Server{maxBytes: input.DefaultMaxFileSize}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.pipeline.Store(p)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /v1/narrate", s.handleNarrate)
	mux.Handle("GET /metrics", observe.MetricsHandler(s.gatherer))
	health.New(s.checkers...).Register(mux)
	s.handler = observe.Middleware(s.metrics)(mux)
	return s, nil
}

// SetPipeline replaces the pipeline used by subsequent requests.
func (s *Server) SetPipeline(p *narrate.Pipeline) {
	if p != nil {
		s.pipeline.Store(p)
	}
}

// Handler returns the root handler including the observability middleware.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	text, ok := s.readText(w, r)
	if !ok {
		return
	}
	a, err := s.pipeline.Load().Analyze(r.Context(), text)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleNarrate(w http.ResponseWriter, r *http.Request) {
	p := s.pipeline.Load()
	if !p.CanSynthesize() {
		s.writeError(r.Context(), w, narrate.ErrNoSynthesizer)
		return
	}
	text, ok := s.readText(w, r)
	if !ok {
		return
	}
	res, err := p.Process(r.Context(), text)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	wav, err := audio.EncodeWAV(res.Audio)
	if err != nil {
		s.writeError(r.Context(), w, fmt.Errorf("%w: encode: %w", narrate.ErrSynthesis, err))
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.Header().Set(HeaderDocumentID, res.DocumentID)
	w.Header().Set(HeaderSentences, strconv.Itoa(res.Stats.SentencesVoiced))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

// readText extracts the document from r, writing an error response and
// returning false when that fails.
func (s *Server) readText(w http.ResponseWriter, r *http.Request) (string, bool) {
	body := http.MaxBytesReader(w, r.Body, s.maxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		text, err := input.ReadText(body, s.maxBytes)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return "", false
		}
		return text, true
	}

	var req Request
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(r.Context(), w, err)
			return "", false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return "", false
	}
	return req.Text, true
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	log := observe.Logger(ctx)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "err", err)
	} else {
		log.Debug("request rejected", "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, input.ErrValidation), errors.Is(err, narrate.ErrTextProcessing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, narrate.ErrNoSynthesizer):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled):
		// The client is gone; the code is only seen in logs and metrics.
		return 499
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, narrate.ErrAnalysis), errors.Is(err, narrate.ErrSynthesis):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
