package cmd

import (
	"os"
	"strings"
	"testing"

	"github.com/DavidIlie/claude-code-prometheus/internal/config"
	"github.com/DavidIlie/claude-code-prometheus/internal/daemon"
	"github.com/DavidIlie/claude-code-prometheus/internal/state"
)

// TestResetClearsTrackingState verifies reset removes the offsets and
// the heartbeat but keeps the config.
func TestResetClearsTrackingState(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	p := saveTestConfig(t, "http://collector.local")

	tracker := state.NewTracker(p.State())
	if err := tracker.SetPosition("/logs/proj/abc.jsonl", 512); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if err := daemon.WriteHeartbeatFile(p.Heartbeat(), daemon.Heartbeat{PID: 1}); err != nil {
		t.Fatalf("WriteHeartbeatFile: %v", err)
	}

	out, err := executeCommand(rootCmd, "reset")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.Contains(out, "tracking state cleared") {
		t.Errorf("expected a confirmation, got:\n%s", out)
	}

	if st := state.Read(p.State()); len(st.FilePositions) != 0 {
		t.Errorf("positions survived reset: %v", st.FilePositions)
	}
	if _, err := os.Stat(p.Heartbeat()); !os.IsNotExist(err) {
		t.Error("heartbeat file survived reset")
	}
	if !config.Exists(p) {
		t.Error("plain reset removed the config")
	}
}

// TestResetConfigFlagAlsoRemovesConfig verifies --config wipes the
// saved configuration too.
func TestResetConfigFlagAlsoRemovesConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer resetCommandFlags(resetCmd)
	p := saveTestConfig(t, "http://collector.local")

	if _, err := executeCommand(rootCmd, "reset", "--config"); err != nil {
		t.Fatalf("reset --config: %v", err)
	}
	if config.Exists(p) {
		t.Error("config file survived reset --config")
	}
}

// TestResetRefusesWhileAgentRuns verifies reset does not pull state out
// from under a live agent.
func TestResetRefusesWhileAgentRuns(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	p, err := config.DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths: %v", err)
	}
	if err := daemon.WritePIDFile(p.PID(), os.Getpid()); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}

	_, err = executeCommand(rootCmd, "reset")
	if err == nil {
		t.Fatal("expected an error while the agent runs, got nil")
	}
	if !strings.Contains(err.Error(), "stop it first") {
		t.Errorf("expected 'stop it first', got: %q", err.Error())
	}
}
