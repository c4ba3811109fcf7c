package daemon_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DavidIlie/claude-code-prometheus/internal/daemon"
	"github.com/DavidIlie/claude-code-prometheus/internal/delivery"
)

func TestHeartbeatRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.json")
	started := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	hb := daemon.Heartbeat{
		PID:          4242,
		RunID:        "run-1",
		StartedAt:    started,
		UpdatedAt:    started.Add(10 * time.Minute),
		LastFlush:    started.Add(9 * time.Minute),
		QueueDepth:   3,
		TrackedFiles: 2,
		TrackedBytes: 9001,
		Delivery: delivery.Stats{
			Delivered: 17,
			Succeeded: 5,
			Failed:    1,
			LastError: "collector returned status 503",
		},
	}

	if err := daemon.WriteHeartbeatFile(path, hb); err != nil {
		t.Fatalf("WriteHeartbeatFile: %v", err)
	}
	got, err := daemon.ReadHeartbeat(path)
	if err != nil {
		t.Fatalf("ReadHeartbeat: %v", err)
	}

	if got.PID != hb.PID || got.RunID != hb.RunID {
		t.Errorf("identity fields = %d/%q, want %d/%q", got.PID, got.RunID, hb.PID, hb.RunID)
	}
	if !got.StartedAt.Equal(hb.StartedAt) || !got.UpdatedAt.Equal(hb.UpdatedAt) || !got.LastFlush.Equal(hb.LastFlush) {
		t.Errorf("timestamps did not survive the round trip: %+v", got)
	}
	if got.QueueDepth != 3 || got.TrackedFiles != 2 || got.TrackedBytes != 9001 {
		t.Errorf("counters = %d/%d/%d, want 3/2/9001", got.QueueDepth, got.TrackedFiles, got.TrackedBytes)
	}
	if got.Delivery != hb.Delivery {
		t.Errorf("delivery stats = %+v, want %+v", got.Delivery, hb.Delivery)
	}
}

func TestHeartbeatStale(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	fresh := daemon.Heartbeat{UpdatedAt: now.Add(-time.Minute)}
	if fresh.Stale(now) {
		t.Error("heartbeat one minute old reported stale")
	}

	old := daemon.Heartbeat{UpdatedAt: now.Add(-16 * time.Minute)}
	if !old.Stale(now) {
		t.Error("heartbeat sixteen minutes old reported fresh")
	}
}

func TestReadHeartbeatErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := daemon.ReadHeartbeat(filepath.Join(dir, "missing.json")); !os.IsNotExist(err) {
		t.Errorf("missing file: err = %v, want not-exist", err)
	}

	path := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(path, []byte("{{{"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := daemon.ReadHeartbeat(path); err == nil {
		t.Error("corrupt file: err = nil, want parse error")
	}
}
