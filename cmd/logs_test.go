package cmd

import (
	"os"
	"strings"
	"testing"

	"github.com/DavidIlie/claude-code-prometheus/internal/config"
)

func writeAgentLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// TestLogsPrintsTrailingLines verifies -n limits output to the end of
// the log.
func TestLogsPrintsTrailingLines(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer resetCommandFlags(logsCmd)
	p, err := config.DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths: %v", err)
	}

	if err := os.MkdirAll(p.Root, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeAgentLog(t, p.Log(), "line one\nline two\nline three\nline four\n")

	out, err := executeCommand(rootCmd, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs -n 2: %v", err)
	}
	if strings.Contains(out, "line one") || strings.Contains(out, "line two") {
		t.Errorf("older lines leaked past -n:\n%s", out)
	}
	if !strings.Contains(out, "line three") || !strings.Contains(out, "line four") {
		t.Errorf("expected the last two lines, got:\n%s", out)
	}
}

// TestLogsErrorsFlagSelectsErrorLog verifies --errors reads the error
// log instead of the operational one.
func TestLogsErrorsFlagSelectsErrorLog(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer resetCommandFlags(logsCmd)
	p, err := config.DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths: %v", err)
	}

	if err := os.MkdirAll(p.Root, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeAgentLog(t, p.Log(), "routine record\n")
	writeAgentLog(t, p.ErrorLog(), "something broke\n")

	out, err := executeCommand(rootCmd, "logs", "--errors")
	if err != nil {
		t.Fatalf("logs --errors: %v", err)
	}
	if !strings.Contains(out, "something broke") {
		t.Errorf("expected the error log content, got:\n%s", out)
	}
	if strings.Contains(out, "routine record") {
		t.Errorf("operational log leaked into --errors:\n%s", out)
	}
}

// TestLogsBeforeFirstRun verifies a fresh machine gets a hint rather
// than an error.
func TestLogsBeforeFirstRun(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	out, err := executeCommand(rootCmd, "logs")
	if err != nil {
		t.Fatalf("logs with no log file: %v", err)
	}
	if !strings.Contains(out, "no log output yet") {
		t.Errorf("expected 'no log output yet', got:\n%s", out)
	}
}
