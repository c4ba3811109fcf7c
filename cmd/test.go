package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/DavidIlie/claude-code-prometheus/internal/config"
	"github.com/DavidIlie/claude-code-prometheus/internal/delivery"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Check connectivity and the device key against the collector",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnectivityTest(cmd.OutOrStdout(), cfg)
	},
}

// runConnectivityTest probes the health endpoint, then validates the
// device key with an empty push. Also called at the end of setup.
func runConnectivityTest(out io.Writer, c config.Config) error {
	client := delivery.NewClient(delivery.NewQueue(), delivery.Options{
		ServerURL: c.ServerURL,
		DeviceKey: c.DeviceAPIKey,
		Timeout:   10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	health, err := client.CheckHealth(ctx)
	if err != nil {
		fmt.Fprintln(out, "  "+cross(fmt.Sprintf("collector unreachable: %v", err)))
		return fmt.Errorf("collector unreachable")
	}
	fmt.Fprintln(out, "  "+check(fmt.Sprintf("collector reachable (%s, status %q)", c.ServerURL, health.Status)))

	if err := client.VerifyKey(ctx); err != nil {
		var derr *delivery.Error
		if errors.As(err, &derr) && derr.Auth() {
			fmt.Fprintln(out, "  "+cross("device key rejected (401)"))
			fmt.Fprintln(out, dimStyle.Render("    run 'ccp-agent setup' to update the key"))
		} else {
			fmt.Fprintln(out, "  "+cross(fmt.Sprintf("device key check failed: %v", err)))
		}
		return fmt.Errorf("device key check failed")
	}
	fmt.Fprintln(out, "  "+check("device key accepted"))
	return nil
}

func init() {
	rootCmd.AddCommand(testCmd)
}
