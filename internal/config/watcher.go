package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] polls its file.
const DefaultWatchInterval = 5 * time.Second

// Change describes one accepted revision of the watched file.
type Change struct {
	Old, New *Config
	Diff     ConfigDiff

	// Revision counts accepted revisions, starting at 1 for the first
	// change after the initial load.
	Revision int
}

// fingerprint identifies the on-disk state of the file. Size and mtime gate
// the comparatively expensive hash.
type fingerprint struct {
	size  int64
	mtime time.Time
	sum   [sha256.Size]byte
}

func (f fingerprint) sameStat(info os.FileInfo) bool {
	return f.size == info.Size() && f.mtime.Equal(info.ModTime())
}

// Watcher polls a config file and hands every valid revision to a
// callback. Revisions that fail to parse or validate are logged and
// skipped; the last valid config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(Change)

	mu       sync.Mutex
	current  *Config
	fp       fingerprint
	revision int
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values keep
// [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithOnChange registers fn to be called for every accepted revision. fn
// runs on the polling goroutine and may call [Watcher.Current].
func WithOnChange(fn func(Change)) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// NewWatcher loads path once and returns a Watcher primed with it. Polling
// starts with [Watcher.Run].
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: DefaultWatchInterval}
	for _, opt := range opts {
		opt(w)
	}

	cfg, fp, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current, w.fp = cfg, fp
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Check(); err != nil {
				slog.Warn("config: keeping previous revision", "path", w.path, "err", err)
			}
		}
	}
}

// Check looks at the file once. It reports whether a new revision was
// accepted; a non-nil error means the file changed but was rejected.
func (w *Watcher) Check() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	unchanged := w.fp.sameStat(info)
	w.mu.Unlock()
	if unchanged {
		return false, nil
	}

	cfg, fp, err := w.load()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	if fp.sum == w.fp.sum {
		// Touched but identical.
		w.fp = fp
		w.mu.Unlock()
		return false, nil
	}
	w.revision++
	c := Change{Old: w.current, New: cfg, Diff: Diff(w.current, cfg), Revision: w.revision}
	w.current, w.fp = cfg, fp
	w.mu.Unlock()

	slog.Info("config: revision accepted",
		"path", w.path,
		"revision", c.Revision,
		"pipeline_changed", c.Diff.PipelineChanged(),
		"restart_required", c.Diff.RestartRequired,
	)
	if w.onChange != nil {
		w.onChange(c)
	}
	return true, nil
}

func (w *Watcher) load() (*Config, fingerprint, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fingerprint{}, err
	}
	return cfg, fingerprint{size: info.Size(), mtime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
