// Package app wires the narrata subsystems into a running application.
//
// App owns their lifetimes: New builds the profile store and the narration
// pipeline from config and the providers created by main, Serve runs the
// HTTP API, Reload swaps in a pipeline built from a new config, and Shutdown
// tears everything down in order.
//
// Tests inject doubles with functional options (WithStore, WithMetrics).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrWong99/narrata/internal/analysis"
	"github.com/MrWong99/narrata/internal/analysis/contextual"
	"github.com/MrWong99/narrata/internal/analysis/lexical"
	"github.com/MrWong99/narrata/internal/config"
	"github.com/MrWong99/narrata/internal/health"
	"github.com/MrWong99/narrata/internal/narrate"
	"github.com/MrWong99/narrata/internal/observe"
	"github.com/MrWong99/narrata/internal/profilestore"
	"github.com/MrWong99/narrata/internal/profilestore/postgres"
	"github.com/MrWong99/narrata/internal/resilience"
	"github.com/MrWong99/narrata/internal/segment"
	"github.com/MrWong99/narrata/internal/server"
	"github.com/MrWong99/narrata/pkg/audio"
	"github.com/MrWong99/narrata/pkg/emotion"
	"github.com/MrWong99/narrata/pkg/provider/llm"
	"github.com/MrWong99/narrata/pkg/provider/tts"
	"github.com/MrWong99/narrata/pkg/prosody"
)

// Providers holds one interface value per provider slot. Populated by main
// via the config registry, usually wrapped in resilience fallbacks.
type Providers struct {
	// LLM drives contextual analysis. Nil means the offline heuristic only.
	LLM llm.Provider

	// TTS voices sentences. Nil means analysis only.
	TTS tts.Provider

	// LLMStatus and TTSStatus report breaker states for /readyz. Optional.
	LLMStatus func() []resilience.EntryStatus
	TTSStatus func() []resilience.EntryStatus
}

// App owns all subsystem lifetimes.
type App struct {
	providers *Providers
	metrics   *observe.Metrics
	gatherer  prometheus.Gatherer

	mu  sync.Mutex
	cfg *config.Config

	store    profilestore.Store
	pinger   health.Pinger
	pipeline atomic.Pointer[narrate.Pipeline]
	server   *server.Server

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithStore injects a profile store instead of creating one from config.
func WithStore(s profilestore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics sets the metric instruments. Default: observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *App) { a.gatherer = g }
}

// New creates an App from cfg. providers may be nil.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	p, err := BuildPipeline(cfg, a.providers, a.store, a.metrics)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("app: build pipeline: %w", err)
	}
	a.pipeline.Store(p)

	srv, err := server.New(p,
		server.WithMetrics(a.metrics),
		server.WithGatherer(a.gatherer),
		server.WithMaxRequestBytes(cfg.Server.MaxRequestBytes),
		server.WithCheckers(a.checkers()...),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("app: %w", err)
	}
	a.server = srv
	return a, nil
}

// initStore connects the PostgreSQL store when a DSN is configured and
// falls back to memory otherwise.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		a.store = profilestore.NewMemStore()
		return nil
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = store
	a.pinger = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	slog.Info("profile store connected", "backend", "postgres")
	return nil
}

func (a *App) checkers() []health.Checker {
	var cs []health.Checker
	if a.pinger != nil {
		cs = append(cs, health.Ping("store", a.pinger))
	}
	if a.providers.LLMStatus != nil {
		cs = append(cs, health.Providers("llm", a.providers.LLMStatus))
	}
	if a.providers.TTSStatus != nil {
		cs = append(cs, health.Providers("tts", a.providers.TTSStatus))
	}
	return cs
}

// Pipeline returns the current pipeline.
func (a *App) Pipeline() *narrate.Pipeline { return a.pipeline.Load() }

// Store returns the profile store.
func (a *App) Store() profilestore.Store { return a.store }

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Config returns the config the current pipeline was built from.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Reload rebuilds the pipeline from cfg with the existing providers and
// store. Settings that need new connections (see [config.ConfigDiff]) are
// left untouched. On error the running pipeline stays in place.
func (a *App) Reload(cfg *config.Config) error {
	p, err := BuildPipeline(cfg, a.providers, a.store, a.metrics)
	if err != nil {
		return fmt.Errorf("app: reload: %w", err)
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()

	a.pipeline.Store(p)
	a.server.SetPipeline(p)
	slog.Info("pipeline reloaded")
	return nil
}

// Serve runs the HTTP API on cfg.Server.ListenAddr until ctx is done, then
// drains in-flight requests for at most cfg.Server.ShutdownTimeout.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config().Server
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: a.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLS != nil {
			slog.Info("https server listening", "addr", cfg.ListenAddr)
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			slog.Info("http server listening", "addr", cfg.ListenAddr)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: drain http server: %w", err)
	}
	return <-errCh
}

// Shutdown tears down all subsystems in order. If ctx expires before all
// closers finish, the remaining ones are skipped and ctx's error returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// close runs closers after a failed New.
func (a *App) close() {
	for _, c := range a.closers {
		_ = c()
	}
}

// BuildPipeline assembles a narration pipeline from cfg.
func BuildPipeline(cfg *config.Config, providers *Providers, store profilestore.Store, m *observe.Metrics) (*narrate.Pipeline, error) {
	lex, err := loadLexicon(cfg.Analysis.LexiconPath)
	if err != nil {
		return nil, err
	}
	lexAnalyzer := lexical.New(
		lexical.WithLexicon(lex),
		lexical.WithNegationWindow(cfg.Analysis.NegationWindow),
		lexical.WithFuzzyThreshold(cfg.Analysis.FuzzyThreshold),
	)

	var ctxAnalyzer analysis.ContextualAnalyzer
	if providers != nil && providers.LLM != nil {
		name := cfg.Providers.LLM.Name
		if name == "" {
			name = "llm"
		}
		ca, err := contextual.New(providers.LLM, contextual.WithProviderName(name), contextual.WithMetrics(m))
		if err != nil {
			return nil, err
		}
		ctxAnalyzer = ca
	}

	combiner, err := emotion.NewCombiner(emotion.WithWeights(cfg.Fusion.Weights))
	if err != nil {
		return nil, err
	}

	normalize := cfg.Audio.Normalize == nil || *cfg.Audio.Normalize
	opts := []narrate.Option{
		narrate.WithSegmenter(segment.New(segment.WithAbbreviations(cfg.Analysis.Abbreviations...))),
		narrate.WithCombiner(combiner),
		narrate.WithMapper(prosody.NewMapper(
			prosody.WithTable(prosody.DefaultTable().Merge(cfg.Prosody.Emotions)),
			prosody.WithEmphasisThreshold(cfg.Prosody.EmphasisThreshold),
		)),
		narrate.WithAssembler(audio.NewAssembler(
			audio.WithCrossfade(cfg.Audio.Crossfade()),
			audio.WithOutputFormat(audio.Format{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels}),
			audio.WithNormalize(normalize),
		)),
		narrate.WithConcurrency(cfg.Analysis.Concurrency),
		narrate.WithContextWindow(cfg.Analysis.ContextWindow),
		narrate.WithStore(store),
		narrate.WithMetrics(m),
	}
	if providers != nil && providers.TTS != nil {
		opts = append(opts, narrate.WithSynthesizer(providers.TTS, tts.VoiceProfile{
			ID:       cfg.Voice.ID,
			Name:     cfg.Voice.Name,
			Provider: cfg.Providers.TTS.Name,
		}))
	}

	return narrate.New(narrate.NewSuite(lexAnalyzer, ctxAnalyzer, m), opts...)
}

// loadLexicon returns the built-in lexicon, merged with the file at path if
// one is given.
func loadLexicon(path string) (*lexical.Lexicon, error) {
	base := lexical.DefaultLexicon()
	if path == "" {
		return base, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lexicon: %w", err)
	}
	defer f.Close()
	extra, err := lexical.ParseLexicon(f)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	return base.Merge(extra), nil
}
