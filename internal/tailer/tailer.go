// Package tailer discovers Claude Code session logs under the watch
// root and turns file growth into usage events. Session logs live one
// directory deep: <root>/<project>/<sessionId>.jsonl.
package tailer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DavidIlie/claude-code-prometheus/internal/state"
	"github.com/DavidIlie/claude-code-prometheus/internal/usage"
)

const defaultDebounce = 500 * time.Millisecond

// Sink receives extracted events. *delivery.Queue satisfies it.
type Sink interface {
	Append(events ...usage.Event)
}

// Options configure a Tailer.
type Options struct {
	Root     string
	Tracker  *state.Tracker
	Sink     Sink
	Logger   *slog.Logger
	Debounce time.Duration // 0: 500ms
}

// Tailer owns the watch loop and the per-file scan logic.
type Tailer struct {
	root     string
	tracker  *state.Tracker
	sink     Sink
	log      *slog.Logger
	debounce time.Duration
}

// New returns a Tailer for opts.Root.
func New(opts Options) *Tailer {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tailer{
		root:     opts.Root,
		tracker:  opts.Tracker,
		sink:     opts.Sink,
		log:      opts.Logger,
		debounce: opts.Debounce,
	}
}

// ScanAll walks every session log under the root once, in path order.
// Used for the catch-up pass at daemon start. Per-file errors are
// logged and skipped so one bad file never blocks the rest.
func (t *Tailer) ScanAll() (files, events int) {
	matches, err := filepath.Glob(filepath.Join(t.root, "*", "*.jsonl"))
	if err != nil {
		t.log.Error("globbing session logs", "error", err)
		return 0, 0
	}
	for _, path := range matches {
		n, err := t.ScanFile(path)
		if err != nil {
			t.log.Error("scanning session log", "file", path, "error", err)
			continue
		}
		files++
		events += n
	}
	return files, events
}

// ScanFile reads any unconsumed bytes from path, appends the resulting
// events to the sink, and persists the advanced offset. A file smaller
// than its recorded offset was truncated or replaced and is rescanned
// from the start. Returns the number of events extracted.
func (t *Tailer) ScanFile(path string) (int, error) {
	recorded := t.tracker.Position(path)
	start := recorded

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size < start {
		t.log.Warn("session log truncated, rescanning from start",
			"file", path, "offset", start, "size", size)
		start = 0
	} else if size == start {
		return 0, nil
	}

	res, err := usage.Extract(path, start)
	if err != nil {
		return 0, err
	}
	if res.Malformed > 0 {
		t.log.Debug("skipped malformed lines",
			"file", filepath.Base(path), "lines", res.Malformed, "offset", res.NewOffset)
	}
	if len(res.Events) > 0 {
		t.sink.Append(res.Events...)
	}
	// Events are queued before the offset is persisted: a crash in
	// between re-reads them, never skips them.
	if res.NewOffset != recorded {
		if err := t.tracker.SetPosition(path, res.NewOffset); err != nil {
			t.log.Error("persisting file offset", "file", path, "error", err)
		}
	}
	if len(res.Events) > 0 {
		t.log.Debug("extracted usage events",
			"file", filepath.Base(path), "events", len(res.Events), "offset", res.NewOffset)
	}
	return len(res.Events), nil
}

// Run watches the root until ctx is cancelled. New project directories
// are added to the watch set as they appear; watcher errors are logged
// and watching continues.
func (t *Tailer) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(t.root); err != nil {
		return fmt.Errorf("watching %s: %w", t.root, err)
	}
	entries, err := os.ReadDir(t.root)
	if err != nil {
		return fmt.Errorf("listing %s: %w", t.root, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := watcher.Add(filepath.Join(t.root, e.Name())); err != nil {
				t.log.Warn("watching project dir", "dir", e.Name(), "error", err)
			}
		}
	}

	deb := newDebouncer(t.debounce)
	defer deb.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Ext(event.Name) != ".jsonl" {
				continue
			}
			deb.Touch(event.Name)

		case <-deb.Ready():
			for _, path := range deb.Drain() {
				if _, err := t.ScanFile(path); err != nil && !os.IsNotExist(err) {
					t.log.Error("scanning session log", "file", path, "error", err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.log.Warn("file watcher error", "error", err)
		}
	}
}
