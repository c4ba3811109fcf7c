package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/DavidIlie/claude-code-prometheus/internal/config"
)

const (
	stopPolls     = 40
	stopPollEvery = 250 * time.Millisecond
)

// WritePIDFile records pid, creating the parent directory if needed.
func WritePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// ReadPIDFile returns the recorded PID, 0 if the file is missing or
// malformed.
func ReadPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// RemovePIDFile deletes the PID file. Missing file is not an error.
func RemovePIDFile(path string) {
	_ = os.Remove(path)
}

// IsRunning reports whether a process with pid exists, via a signal-0
// probe.
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Running returns the live daemon PID recorded at pidPath, 0 when the
// file is missing or names a dead process.
func Running(pidPath string) int {
	if pid := ReadPIDFile(pidPath); pid != 0 && IsRunning(pid) {
		return pid
	}
	return 0
}

// Spawn re-executes the current binary as a detached worker running
// `start --foreground`, with stdout and stderr pointed at the log
// files. The worker writes its own PID file once it is up; callers
// confirm startup with WaitRunning. Returns the child PID.
func Spawn(paths config.Paths) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolving executable path: %w", err)
	}
	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		return 0, err
	}

	logFile, err := os.OpenFile(paths.Log(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()
	errFile, err := os.OpenFile(paths.ErrorLog(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening error log file: %w", err)
	}
	defer errFile.Close()

	cmd := exec.Command(exe, "start", "--foreground")
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = errFile
	// Own session, so closing the launching terminal doesn't HUP the worker.
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting worker: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// WaitRunning polls for a live PID file for up to timeout and returns
// the daemon PID, 0 if it never showed up.
func WaitRunning(pidPath string, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pid := Running(pidPath); pid != 0 {
			return pid
		}
		time.Sleep(100 * time.Millisecond)
	}
	return Running(pidPath)
}

// Stop signals pid with SIGTERM and waits for it to exit, escalating
// to SIGKILL when the grace period runs out.
func Stop(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("signaling pid %d: %w", pid, err)
	}

	for i := 0; i < stopPolls; i++ {
		time.Sleep(stopPollEvery)
		if !IsRunning(pid) {
			return nil
		}
	}

	if err := proc.Signal(syscall.SIGKILL); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing pid %d: %w", pid, err)
	}
	time.Sleep(stopPollEvery)
	return nil
}
