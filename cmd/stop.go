package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DavidIlie/claude-code-prometheus/internal/daemon"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopAgent(cmd)
	},
}

// stopAgent terminates the background worker if one is running.
// Stopping an already-stopped agent is not an error.
func stopAgent(cmd *cobra.Command) error {
	pid := daemon.ReadPIDFile(paths.PID())
	if pid == 0 || !daemon.IsRunning(pid) {
		// Clear a stale PID file left behind by a crash.
		daemon.RemovePIDFile(paths.PID())
		cmd.Println("agent not running")
		return nil
	}

	if err := daemon.Stop(pid); err != nil {
		return fmt.Errorf("stopping agent (pid %d): %w", pid, err)
	}
	daemon.RemovePIDFile(paths.PID())
	cmd.Println(check(fmt.Sprintf("agent stopped (pid %d)", pid)))

	if svc, err := daemon.NewServiceManager(paths); err == nil && svc.IsSupported() && svc.IsInstalled() {
		cmd.Println(warnStyle.Render("  note: a service is installed and may restart the agent"))
		cmd.Println(dimStyle.Render("  remove it with: ccp-agent uninstall"))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
