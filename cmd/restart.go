package cmd

import (
	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the background agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := stopAgent(cmd); err != nil {
			return err
		}
		return startAgent(cmd)
	},
}

func init() {
	rootCmd.AddCommand(restartCmd)
}
