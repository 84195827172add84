package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/narrata/internal/config"
)

const (
	baseDoc = `
server:
  log_level: info
fusion:
  weights: {lexical: 0.25, contextual: 0.35, sarcasm: 0.2, pragmatic: 0.2}
`
	reweightedDoc = `
server:
  log_level: debug
fusion:
  weights: {lexical: 0.4, contextual: 0.2, sarcasm: 0.2, pragmatic: 0.2}
`
	brokenDoc = `
server:
  log_level: bananas
`
)

// rewrite replaces the file and pushes its mtime forward so coarse
// filesystem clocks still register the change.
func rewrite(t *testing.T, path, doc string, bump time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	at := time.Now().Add(bump)
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func newWatched(t *testing.T, opts ...config.WatcherOption) (*config.Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "narrata.yaml")
	rewrite(t, path, baseDoc, 0)
	w, err := config.NewWatcher(path, opts...)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	return w, path
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	w, _ := newWatched(t)

	if got := w.Current().Server.LogLevel; got != config.LogInfo {
		t.Errorf("log level = %q, want info", got)
	}
	if ok, err := w.Check(); ok || err != nil {
		t.Errorf("Check on the loaded file: ok=%v err=%v", ok, err)
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestWatcher_Check(t *testing.T) {
	t.Parallel()

	var changes []config.Change
	w, path := newWatched(t, config.WithOnChange(func(c config.Change) { changes = append(changes, c) }))

	if ok, err := w.Check(); ok || err != nil {
		t.Fatalf("unchanged file: ok=%v err=%v", ok, err)
	}

	rewrite(t, path, reweightedDoc, 2*time.Second)
	ok, err := w.Check()
	if !ok || err != nil {
		t.Fatalf("rewritten file: ok=%v err=%v", ok, err)
	}
	if len(changes) != 1 {
		t.Fatalf("callbacks = %d, want 1", len(changes))
	}
	c := changes[0]
	if c.Revision != 1 || c.Old.Server.LogLevel != config.LogInfo || c.New.Server.LogLevel != config.LogDebug {
		t.Errorf("change = rev %d, %q -> %q", c.Revision, c.Old.Server.LogLevel, c.New.Server.LogLevel)
	}
	if !c.Diff.WeightsChanged || !c.Diff.PipelineChanged() {
		t.Errorf("diff = %+v, want a pipeline-affecting weights change", c.Diff)
	}
	if w.Current() != c.New {
		t.Error("Current does not return the accepted revision")
	}
}

func TestWatcher_RejectsInvalidRevision(t *testing.T) {
	t.Parallel()

	calls := 0
	w, path := newWatched(t, config.WithOnChange(func(config.Change) { calls++ }))

	rewrite(t, path, brokenDoc, 2*time.Second)
	ok, err := w.Check()
	if ok || err == nil {
		t.Fatalf("broken file: ok=%v err=%v, want rejection", ok, err)
	}
	if calls != 0 {
		t.Errorf("calls = %d for a rejected revision", calls)
	}
	if got := w.Current().Server.LogLevel; got != config.LogInfo {
		t.Errorf("current log level = %q, want previous revision kept", got)
	}

	rewrite(t, path, reweightedDoc, 4*time.Second)
	if ok, err := w.Check(); !ok || err != nil {
		t.Fatalf("repaired file: ok=%v err=%v", ok, err)
	}
	if calls != 1 {
		t.Errorf("calls = %d after the repair, want 1", calls)
	}
}

func TestWatcher_TouchOnly(t *testing.T) {
	t.Parallel()

	calls := 0
	w, path := newWatched(t, config.WithOnChange(func(config.Change) { calls++ }))

	at := time.Now().Add(3 * time.Second)
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatal(err)
	}
	if ok, err := w.Check(); ok || err != nil {
		t.Fatalf("touch: ok=%v err=%v", ok, err)
	}
	if calls != 0 {
		t.Errorf("calls = %d for a touch-only change", calls)
	}
}

func TestWatcher_Run(t *testing.T) {
	t.Parallel()

	got := make(chan config.Change, 1)
	w, path := newWatched(t,
		config.WithInterval(20*time.Millisecond),
		config.WithOnChange(func(c config.Change) { got <- c }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	rewrite(t, path, reweightedDoc, 2*time.Second)
	select {
	case c := <-got:
		if c.New.Server.LogLevel != config.LogDebug {
			t.Errorf("new log level = %q", c.New.Server.LogLevel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not report the change")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
