package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/DavidIlie/claude-code-prometheus/internal/daemon"
	"github.com/DavidIlie/claude-code-prometheus/internal/logging"
)

var startForeground bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Launch the agent in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		if startForeground {
			return runForeground()
		}
		return startAgent(cmd)
	},
}

// startAgent spawns the detached background worker and waits for its
// PID file to show up.
func startAgent(cmd *cobra.Command) error {
	if pid := daemon.Running(paths.PID()); pid != 0 {
		return fmt.Errorf("agent already running (pid %d)", pid)
	}

	pid, err := daemon.Spawn(paths)
	if err != nil {
		return fmt.Errorf("spawning agent: %w", err)
	}
	if daemon.WaitRunning(paths.PID(), 3*time.Second) == 0 {
		return fmt.Errorf("agent did not start (pid %d): check %s", pid, paths.ErrorLog())
	}
	cmd.Println(check(fmt.Sprintf("agent started (pid %d)", pid)))
	cmd.Println(dimStyle.Render("  logs: " + paths.Log()))
	return nil
}

// runForeground runs the agent loop in this process until SIGINT or
// SIGTERM. The spawned background worker lands here via --foreground.
func runForeground() error {
	if pid := daemon.Running(paths.PID()); pid != 0 {
		return fmt.Errorf("agent already running (pid %d)", pid)
	}

	// Mirror logs to the terminal when run by hand; the spawned worker
	// has no terminal and writes to the files alone.
	var console io.Writer
	if term.IsTerminal(os.Stderr.Fd()) {
		console = os.Stderr
	}
	log, closeLogs, err := logging.Setup(logging.Options{
		Path:      paths.Log(),
		ErrorPath: paths.ErrorLog(),
		Console:   console,
	})
	if err != nil {
		return err
	}
	defer closeLogs()

	d, err := daemon.New(cfg, paths, log)
	if err != nil {
		log.Error("agent failed to start", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx)
}

func init() {
	startCmd.Flags().BoolVar(&startForeground, "foreground", false, "Run in this terminal instead of detaching")
	rootCmd.AddCommand(startCmd)
}
