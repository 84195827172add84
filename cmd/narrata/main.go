// Command narrata reads a text, works out the emotional shape of every
// paragraph, sentence and phrase, and narrates it with matching prosody.
//
// Usage:
//
//	narrata -in story.txt -out story.wav      narrate a file
//	narrata -in story.txt -analyze-only       print emotion profiles as JSON
//	narrata -serve                            run the HTTP API
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/narrata/internal/app"
	"github.com/MrWong99/narrata/internal/config"
	"github.com/MrWong99/narrata/internal/input"
	"github.com/MrWong99/narrata/internal/observe"
	"github.com/MrWong99/narrata/pkg/audio"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath  string
	in          string
	out         string
	serve       bool
	analyzeOnly bool
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to the YAML configuration file (built-in defaults when empty)")
	flag.StringVar(&opts.in, "in", "", "text file to narrate")
	flag.StringVar(&opts.out, "out", "", "output path (default: input name with .wav, or stdout for -analyze-only)")
	flag.BoolVar(&opts.serve, "serve", false, "run the HTTP API instead of processing a file")
	flag.BoolVar(&opts.analyzeOnly, "analyze-only", false, "print emotion profiles and prosody as JSON without synthesizing audio")
	flag.Parse()

	if !opts.serve && opts.in == "" {
		fmt.Fprintln(os.Stderr, "narrata: either -in or -serve is required")
		flag.Usage()
		return 2
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "narrata: %v\n", err)
		return 1
	}

	logger, level := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)
	slog.Info("narrata starting", "version", version, "config", opts.configPath, "log_level", cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := observe.Setup(ctx, observe.WithServiceVersion(version), observe.WithRuntimeMetrics())
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := tel.Metrics()
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers, app.WithMetrics(metrics), app.WithGatherer(tel.Gatherer()))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := application.Shutdown(sctx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	if opts.serve {
		return serve(ctx, opts, application, level)
	}
	if err := processFile(ctx, opts, cfg, application); err != nil {
		slog.Error("narration failed", "in", opts.in, "err", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", path)
	}
	return cfg, err
}

func serve(ctx context.Context, opts options, application *app.App, level *slog.LevelVar) int {
	printStartupSummary(os.Stdout, application.Config())

	if opts.configPath != "" {
		w, err := config.NewWatcher(opts.configPath, config.WithOnChange(func(c config.Change) {
			onConfigChange(application, level, c)
		}))
		if err != nil {
			slog.Error("failed to watch config", "err", err)
			return 1
		}
		go w.Run(ctx)
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := application.Serve(ctx); err != nil {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// onConfigChange applies the hot-reloadable part of a config change.
func onConfigChange(application *app.App, level *slog.LevelVar, c config.Change) {
	d := c.Diff
	if !d.Reloadable() && len(d.RestartRequired) == 0 {
		slog.Debug("config revision has no effect", "revision", c.Revision)
		return
	}
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config sections changed that need a restart", "sections", d.RestartRequired)
	}
	if !d.PipelineChanged() {
		return
	}
	if err := application.Reload(c.New); err != nil {
		slog.Error("config reload failed, keeping the running pipeline", "revision", c.Revision, "err", err)
		return
	}
	slog.Info("pipeline rebuilt", "revision", c.Revision)
}

func processFile(ctx context.Context, opts options, cfg *config.Config, application *app.App) error {
	text, err := input.ReadFile(opts.in, cfg.Text.MaxFileSize)
	if err != nil {
		return err
	}
	p := application.Pipeline()

	if opts.analyzeOnly || !p.CanSynthesize() {
		if !opts.analyzeOnly {
			slog.Warn("no TTS provider configured, writing analysis only")
		}
		a, err := p.Analyze(ctx, text)
		if err != nil {
			return err
		}
		return writeAnalysis(opts.out, a)
	}

	res, err := p.Process(ctx, text)
	if err != nil {
		return err
	}
	out := opts.out
	if out == "" {
		out = wavPath(opts.in)
	}
	if err := writeWAV(out, res.Audio); err != nil {
		return err
	}
	slog.Info("narration written",
		"out", out,
		"sentences", res.Stats.SentencesVoiced,
		"audio", res.Stats.AudioDuration,
		"took", res.Stats.Duration,
	)
	return nil
}

// wavPath swaps the extension of in for .wav.
func wavPath(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".wav"
}

func writeAnalysis(path string, v any) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeWAV(path string, clip audio.Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := audio.WriteWAV(f, clip); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func printStartupSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║         narrata: startup summary      ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printProvider(w, "LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	fmt.Fprintf(w, "║  %-12s    : %-19d ║\n", "LLM fallback", len(cfg.Providers.LLMFallback))
	printProvider(w, "TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Fprintf(w, "║  %-12s    : %-19d ║\n", "TTS fallback", len(cfg.Providers.TTSFallback))
	store := "memory"
	if cfg.Store.PostgresDSN != "" {
		store = "postgres"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", "Store", store)
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", "Listen addr", cfg.Server.ListenAddr)
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func printProvider(w io.Writer, kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", kind, value)
}

// newLogger returns a text logger whose level can be changed at runtime
// through the returned LevelVar.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})), lv
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
