package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DavidIlie/claude-code-prometheus/internal/daemon"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop the agent, remove the service, and delete all agent files",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Remove the service first so it cannot relaunch the agent
		// mid-uninstall.
		if svc, err := daemon.NewServiceManager(paths); err == nil && svc.IsSupported() && svc.IsInstalled() {
			if err := svc.Uninstall(); err != nil {
				return fmt.Errorf("removing service: %w", err)
			}
			cmd.Println(check("service removed"))
		}

		if pid := daemon.ReadPIDFile(paths.PID()); pid != 0 && daemon.IsRunning(pid) {
			if err := daemon.Stop(pid); err != nil {
				return fmt.Errorf("stopping agent (pid %d): %w", pid, err)
			}
			cmd.Println(check(fmt.Sprintf("agent stopped (pid %d)", pid)))
		}

		if err := os.RemoveAll(paths.Root); err != nil {
			return fmt.Errorf("removing %s: %w", paths.Root, err)
		}
		cmd.Println(check("removed " + paths.Root))
		cmd.Println(dimStyle.Render("  the ccp-agent binary itself was left in place"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
