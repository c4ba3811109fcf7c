package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/DavidIlie/claude-code-prometheus/internal/config"
	"github.com/DavidIlie/claude-code-prometheus/internal/version"
)

// cfg holds the loaded configuration, populated in PersistentPreRunE.
var cfg config.Config

// paths locates the agent's files under the config directory.
var paths config.Paths

// needsConfig lists the commands that cannot run without a valid
// config. Everything else tolerates an unconfigured machine.
var needsConfig = map[string]bool{
	"start":           true,
	"restart":         true,
	"test":            true,
	"install-service": true,
}

var rootCmd = &cobra.Command{
	Use:     "ccp-agent",
	Short:   "Relay Claude Code usage from this machine to a collector server",
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.DefaultPaths()
		if err != nil {
			return fmt.Errorf("locating config directory: %w", err)
		}
		paths = p

		// Skip config handling for the setup command itself.
		if cmd.Name() == "setup" {
			return nil
		}

		loaded, err := config.Load(paths)
		if err == nil {
			cfg = loaded
			return nil
		}

		if errors.Is(err, config.ErrNotConfigured) {
			// First-run: config missing → run the setup wizard when the
			// command needs one and stdin is an interactive terminal.
			if needsConfig[cmd.Name()] {
				if term.IsTerminal(os.Stdin.Fd()) {
					fmt.Println()
					fmt.Println("  Welcome to ccp-agent! Looks like this is your first time.")
					if err := runSetup(true); err != nil {
						return err
					}
					cfg, err = config.Load(paths)
					return err
				}
				return fmt.Errorf("not configured: run 'ccp-agent setup' first")
			}
			// Non-essential commands (status, logs, stop, ...) continue
			// with defaults so they stay usable on a fresh machine.
			cfg = config.Defaults()
			return nil
		}

		// Malformed config is always worth surfacing.
		return fmt.Errorf("%w (re-run 'ccp-agent setup' to fix it)", err)
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
