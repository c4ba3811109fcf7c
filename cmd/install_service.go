package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DavidIlie/claude-code-prometheus/internal/daemon"
)

var installServiceCmd = &cobra.Command{
	Use:   "install-service",
	Short: "Install a user service so the agent starts at login",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := daemon.NewServiceManager(paths)
		if err != nil {
			return err
		}
		if !svc.IsSupported() {
			return fmt.Errorf("user services are not supported on this platform")
		}

		// A plain background agent would fight the service over the PID
		// file; stop it before handing control over.
		if pid := daemon.ReadPIDFile(paths.PID()); pid != 0 && daemon.IsRunning(pid) {
			if err := daemon.Stop(pid); err != nil {
				return fmt.Errorf("stopping agent (pid %d): %w", pid, err)
			}
			daemon.RemovePIDFile(paths.PID())
			cmd.Println(dimStyle.Render("stopped the running agent; the service manages it from now on"))
		}

		if err := svc.Install(); err != nil {
			return fmt.Errorf("installing service: %w", err)
		}
		cmd.Println(check("installed " + svc.Description()))
		cmd.Println(dimStyle.Render("  " + svc.Hint()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installServiceCmd)
}
