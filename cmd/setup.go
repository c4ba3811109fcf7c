package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DavidIlie/claude-code-prometheus/internal/config"
)

var setupServerURL string
var setupDeviceKey string
var setupWatchRoot string
var setupPushInterval int

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the agent (re-run anytime to edit settings)",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Any flag present → non-interactive path for scripts and tests.
		if cmd.Flags().Changed("server-url") || cmd.Flags().Changed("device-key") ||
			cmd.Flags().Changed("watch-root") || cmd.Flags().Changed("push-interval") {
			return runSetupFlags(cmd)
		}
		return runSetup(false)
	},
}

// runSetupFlags applies flag values over the existing config (or
// defaults) and saves without prompting.
func runSetupFlags(cmd *cobra.Command) error {
	c := existingOrDefaults()

	if cmd.Flags().Changed("server-url") {
		c.ServerURL = setupServerURL
	}
	if cmd.Flags().Changed("device-key") {
		c.DeviceAPIKey = setupDeviceKey
	}
	if cmd.Flags().Changed("watch-root") {
		c.WatchRoot = setupWatchRoot
	}
	if cmd.Flags().Changed("push-interval") {
		c.PushIntervalMs = setupPushInterval
	}

	if err := c.Validate(); err != nil {
		return err
	}
	if err := config.Save(paths, c); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	cmd.Printf("Config saved to %s\n", paths.Config())
	return nil
}

// runSetup runs the interactive setup wizard.
// If firstRun is true, a welcome message is shown.
func runSetup(firstRun bool) error {
	if firstRun {
		fmt.Println()
		fmt.Println("  Welcome to ccp-agent! Let's get you set up.")
	}

	c := existingOrDefaults()

	r := bufio.NewReader(os.Stdin)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Printf("%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Printf("%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	askBool := func(prompt string, defaultVal bool) (bool, error) {
		def := "n"
		if defaultVal {
			def = "y"
		}
		ans, err := ask(prompt+" (y/n)", def)
		if err != nil {
			return false, err
		}
		return strings.ToLower(ans) == "y" || strings.ToLower(ans) == "yes", nil
	}

	fmt.Println()
	fmt.Println("  ┌─────────────────────────────────┐")
	fmt.Println("  │   ccp-agent setup               │")
	fmt.Println("  └─────────────────────────────────┘")
	fmt.Println()

	var err error

	c.ServerURL, err = ask("  Collector server URL", c.ServerURL)
	if err != nil {
		return err
	}

	// Never echo the stored key back; empty input keeps it.
	keyPrompt := "  Device API key"
	if c.DeviceAPIKey != "" {
		keyPrompt += " (enter to keep current)"
	}
	key, err := ask(keyPrompt, "")
	if err != nil {
		return err
	}
	if key != "" {
		c.DeviceAPIKey = key
	}

	c.WatchRoot, err = ask("  Claude Code projects directory", c.WatchRoot)
	if err != nil {
		return err
	}

	interval, err := ask("  Push interval in milliseconds", strconv.Itoa(c.PushIntervalMs))
	if err != nil {
		return err
	}
	c.PushIntervalMs, err = strconv.Atoi(interval)
	if err != nil {
		return fmt.Errorf("push interval must be a number: %q", interval)
	}

	if err := c.Validate(); err != nil {
		return err
	}
	if err := config.Save(paths, c); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Println()
	fmt.Println("  " + check("Config saved."))

	runTest, err := askBool("  Test the connection now", true)
	if err != nil {
		return err
	}
	if runTest {
		if err := runConnectivityTest(os.Stdout, c); err != nil {
			fmt.Printf("  ⚠ Connection test failed: %v\n", err)
			fmt.Println("    You can retry with: ccp-agent test")
		}
	}

	fmt.Println("  Setup complete. Run 'ccp-agent start' to launch the agent.")
	fmt.Println()
	return nil
}

// existingOrDefaults loads the current config if one exists, falling
// back to defaults so the wizard has sensible starting values.
func existingOrDefaults() config.Config {
	if config.Exists(paths) {
		if c, err := config.Load(paths); err == nil {
			return c
		}
	}
	return config.Defaults()
}

func init() {
	setupCmd.Flags().StringVar(&setupServerURL, "server-url", "", "Collector server URL (e.g. https://usage.example.com)")
	setupCmd.Flags().StringVar(&setupDeviceKey, "device-key", "", "Device API key issued by the collector")
	setupCmd.Flags().StringVar(&setupWatchRoot, "watch-root", "", "Directory containing Claude Code project logs")
	setupCmd.Flags().IntVar(&setupPushInterval, "push-interval", 0, "Push interval in milliseconds")
	rootCmd.AddCommand(setupCmd)
}
