package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DavidIlie/claude-code-prometheus/internal/config"
	"github.com/DavidIlie/claude-code-prometheus/internal/daemon"
	"github.com/DavidIlie/claude-code-prometheus/internal/state"
)

var resetConfig bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear tracked file positions so the next start re-reads everything",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pid := daemon.Running(paths.PID()); pid != 0 {
			return fmt.Errorf("agent is running (pid %d): stop it first with 'ccp-agent stop'", pid)
		}

		if err := state.Clear(paths.State()); err != nil {
			return err
		}
		os.Remove(paths.Heartbeat())
		cmd.Println(check("tracking state cleared; the next start re-reads all session logs"))

		if resetConfig {
			if err := config.Remove(paths); err != nil {
				return err
			}
			cmd.Println(check("config removed; run 'ccp-agent setup' to reconfigure"))
		}
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfig, "config", false, "Also remove the saved configuration")
	rootCmd.AddCommand(resetCmd)
}
