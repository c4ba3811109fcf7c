package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DavidIlie/claude-code-prometheus/internal/config"
	"github.com/DavidIlie/claude-code-prometheus/internal/daemon"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func assistantLine(session string, in, out int64) string {
	return fmt.Sprintf(`{"type":"assistant","sessionId":%q,"project":"p","timestamp":"2025-06-01T10:00:00.000Z",`+
		`"message":{"model":"m","usage":{"input_tokens":%d,"output_tokens":%d}}}`+"\n",
		session, in, out)
}

// usageCollector is an httptest stand-in for the collector's usage
// endpoint. It counts entries and acknowledges every batch.
type usageCollector struct {
	mu      sync.Mutex
	entries int
	batches int
}

func (c *usageCollector) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Entries []json.RawMessage `json:"entries"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.entries += len(body.Entries)
		c.batches++
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":true,"processed":%d}`, len(body.Entries))
	}
}

func (c *usageCollector) totals() (entries, batches int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries, c.batches
}

func TestNewRejectsBrokenSetups(t *testing.T) {
	paths := config.Paths{Root: t.TempDir()}
	log := testLogger()

	if _, err := daemon.New(config.Config{}, paths, log); err == nil {
		t.Error("empty config: err = nil, want validation error")
	}

	valid := config.Config{
		ServerURL:      "http://collector.local",
		DeviceAPIKey:   "key",
		WatchRoot:      filepath.Join(t.TempDir(), "never-created"),
		PushIntervalMs: 60_000,
	}
	if _, err := daemon.New(valid, paths, log); err == nil {
		t.Error("missing watch root: err = nil, want error")
	}

	// A file where the watch root should be is just as wrong.
	filePath := filepath.Join(t.TempDir(), "root-is-a-file")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	valid.WatchRoot = filePath
	if _, err := daemon.New(valid, paths, log); err == nil {
		t.Error("watch root is a file: err = nil, want error")
	}
}

// TestRunDeliversBacklogOnShutdown runs the whole daemon loop against a
// fake collector: catch-up scan queues the existing log, cancellation
// triggers the final drain, and the PID file lives exactly as long as
// Run does.
func TestRunDeliversBacklogOnShutdown(t *testing.T) {
	collector := &usageCollector{}
	srv := httptest.NewServer(collector.handler())
	defer srv.Close()

	watchRoot := t.TempDir()
	projDir := filepath.Join(watchRoot, "-Users-me-dev-app")
	if err := os.MkdirAll(projDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	logPath := filepath.Join(projDir, "abc.jsonl")
	content := assistantLine("abc", 100, 200) + assistantLine("abc", 300, 400)
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	paths := config.Paths{Root: t.TempDir()}
	cfg := config.Config{
		ServerURL:    srv.URL,
		DeviceAPIKey: "test-key",
		WatchRoot:    watchRoot,
		// Far longer than the test, so only the shutdown drain flushes.
		PushIntervalMs: 3_600_000,
	}

	d, err := daemon.New(cfg, paths, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// The heartbeat appears right after the catch-up scan.
	waitFor(t, 5*time.Second, "heartbeat after initial scan", func() bool {
		_, err := daemon.ReadHeartbeat(paths.Heartbeat())
		return err == nil
	})
	if pid := daemon.Running(paths.PID()); pid != os.Getpid() {
		t.Errorf("pid file holds %d while running, want %d", pid, os.Getpid())
	}
	hb, err := daemon.ReadHeartbeat(paths.Heartbeat())
	if err != nil {
		t.Fatalf("ReadHeartbeat: %v", err)
	}
	if hb.QueueDepth != 2 || hb.TrackedFiles != 1 {
		t.Errorf("heartbeat after scan = %d queued, %d files; want 2 queued, 1 file", hb.QueueDepth, hb.TrackedFiles)
	}
	if entries, _ := collector.totals(); entries != 0 {
		t.Errorf("collector received %d entries before any flush was due", entries)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	entries, batches := collector.totals()
	if entries != 2 || batches != 1 {
		t.Errorf("drain delivered %d entries in %d batches, want 2 in 1", entries, batches)
	}
	if _, err := os.Stat(paths.PID()); !os.IsNotExist(err) {
		t.Errorf("pid file survived shutdown: %v", err)
	}
	hb, err = daemon.ReadHeartbeat(paths.Heartbeat())
	if err != nil {
		t.Fatalf("ReadHeartbeat after shutdown: %v", err)
	}
	if hb.QueueDepth != 0 || hb.Delivery.Delivered != 2 || hb.Delivery.Succeeded != 1 {
		t.Errorf("final heartbeat = %+v, want empty queue and one successful flush", hb)
	}
}

func TestRunWithNothingToWatchExitsCleanly(t *testing.T) {
	collector := &usageCollector{}
	srv := httptest.NewServer(collector.handler())
	defer srv.Close()

	paths := config.Paths{Root: t.TempDir()}
	cfg := config.Config{
		ServerURL:      srv.URL,
		DeviceAPIKey:   "test-key",
		WatchRoot:      t.TempDir(),
		PushIntervalMs: 3_600_000,
	}
	d, err := daemon.New(cfg, paths, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	waitFor(t, 5*time.Second, "heartbeat", func() bool {
		_, err := daemon.ReadHeartbeat(paths.Heartbeat())
		return err == nil
	})
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Empty queue: the drain must not have bothered the collector.
	if entries, batches := collector.totals(); entries != 0 || batches != 0 {
		t.Errorf("collector saw %d entries in %d batches, want none", entries, batches)
	}
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
