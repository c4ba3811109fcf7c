package daemon_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DavidIlie/claude-code-prometheus/internal/daemon"
)

func TestPIDFileRoundTrip(t *testing.T) {
	// The parent directory does not exist yet; WritePIDFile creates it.
	path := filepath.Join(t.TempDir(), "agent", "daemon.pid")
	if err := daemon.WritePIDFile(path, 12345); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}
	if got := daemon.ReadPIDFile(path); got != 12345 {
		t.Errorf("ReadPIDFile = %d, want 12345", got)
	}
}

func TestReadPIDFileToleratesBadContent(t *testing.T) {
	dir := t.TempDir()

	if got := daemon.ReadPIDFile(filepath.Join(dir, "missing.pid")); got != 0 {
		t.Errorf("missing file: got %d, want 0", got)
	}

	for name, content := range map[string]string{
		"garbage":  "not a pid\n",
		"negative": "-4\n",
		"zero":     "0\n",
	} {
		path := filepath.Join(dir, name+".pid")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if got := daemon.ReadPIDFile(path); got != 0 {
			t.Errorf("%s content: got %d, want 0", name, got)
		}
	}
}

func TestRemovePIDFileIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	if err := daemon.WritePIDFile(path, 1); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}
	daemon.RemovePIDFile(path)
	daemon.RemovePIDFile(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("pid file still present after remove")
	}
}

func TestIsRunningProbesTheProcessTable(t *testing.T) {
	if !daemon.IsRunning(os.Getpid()) {
		t.Error("IsRunning(own pid) = false, want true")
	}
	if daemon.IsRunning(0) || daemon.IsRunning(-1) {
		t.Error("IsRunning accepted a non-positive pid")
	}
}

func TestRunningChecksFileAndProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	if got := daemon.Running(path); got != 0 {
		t.Errorf("no pid file: Running = %d, want 0", got)
	}

	// The test process itself stands in for a live daemon.
	if err := daemon.WritePIDFile(path, os.Getpid()); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}
	if got := daemon.Running(path); got != os.Getpid() {
		t.Errorf("live pid: Running = %d, want %d", got, os.Getpid())
	}

	if err := os.WriteFile(path, []byte("gibberish\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := daemon.Running(path); got != 0 {
		t.Errorf("malformed pid file: Running = %d, want 0", got)
	}
}
