package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/DavidIlie/claude-code-prometheus/internal/config"
	"github.com/DavidIlie/claude-code-prometheus/internal/daemon"
	"github.com/DavidIlie/claude-code-prometheus/internal/delivery"
	"github.com/DavidIlie/claude-code-prometheus/internal/state"
)

var statusVerbose bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the agent is running and what it has delivered",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid := daemon.Running(paths.PID())
		if pid == 0 {
			cmd.Println(cross("agent not running"))
			if !config.Exists(paths) {
				cmd.Println(dimStyle.Render("  run 'ccp-agent setup' to configure, then 'ccp-agent start'"))
			}
			if svc, err := daemon.NewServiceManager(paths); err == nil && svc.IsSupported() && svc.IsInstalled() {
				cmd.Println(warnStyle.Render("  a service is installed; it should relaunch the agent shortly"))
			}
			if statusVerbose {
				printVerbose(cmd)
			}
			return nil
		}

		cmd.Println(check(fmt.Sprintf("agent running (pid %d)", pid)))

		hb, err := daemon.ReadHeartbeat(paths.Heartbeat())
		if err != nil {
			cmd.Println(dimStyle.Render("  no heartbeat yet"))
		} else {
			now := time.Now()
			cmd.Printf("  uptime:        %s\n", now.Sub(hb.StartedAt).Round(time.Second))
			cmd.Printf("  queued events: %d\n", hb.QueueDepth)
			cmd.Printf("  tracked files: %d (%s consumed)\n", hb.TrackedFiles, formatBytes(hb.TrackedBytes))
			cmd.Printf("  delivered:     %d events in %d flushes\n", hb.Delivery.Delivered, hb.Delivery.Succeeded)
			if !hb.LastFlush.IsZero() {
				cmd.Printf("  last flush:    %s ago\n", now.Sub(hb.LastFlush).Round(time.Second))
			}
			if hb.Delivery.ConsecutiveFailures > 0 {
				cmd.Println(warnStyle.Render(fmt.Sprintf("  ⚠ %d consecutive delivery failures: %s",
					hb.Delivery.ConsecutiveFailures, hb.Delivery.LastError)))
			}
			if hb.Stale(now) {
				cmd.Println(warnStyle.Render(fmt.Sprintf("  ⚠ heartbeat is stale (last update %s ago); the agent may be stuck",
					now.Sub(hb.UpdatedAt).Round(time.Minute))))
			}
		}

		if statusVerbose {
			printVerbose(cmd)
		}
		return nil
	},
}

// printVerbose dumps the config, the per-file read positions, and a
// live probe of the collector.
func printVerbose(cmd *cobra.Command) {
	cmd.Println()
	cmd.Println(boldStyle.Render("config") + dimStyle.Render(" ("+paths.Config()+")"))
	if cfg.ServerURL == "" {
		cmd.Println(dimStyle.Render("  not configured"))
	} else {
		cmd.Printf("  server:        %s\n", cfg.ServerURL)
		cmd.Printf("  device key:    %s\n", redactKey(cfg.DeviceAPIKey))
		cmd.Printf("  watch root:    %s\n", cfg.WatchRoot)
		cmd.Printf("  push interval: %s\n", cfg.PushInterval())
	}

	st := state.Read(paths.State())
	cmd.Println()
	cmd.Println(boldStyle.Render("state") + dimStyle.Render(" ("+paths.State()+")"))
	if len(st.FilePositions) == 0 {
		cmd.Println(dimStyle.Render("  no files tracked yet"))
	} else {
		if !st.LastSync.IsZero() {
			cmd.Printf("  last sync: %s\n", st.LastSync.Format(time.RFC3339))
		}
		files := lo.Keys(st.FilePositions)
		sort.Strings(files)
		for _, f := range files {
			cmd.Printf("  %10d  %s\n", st.FilePositions[f], f)
		}
	}

	cmd.Println()
	cmd.Println(boldStyle.Render("collector"))
	if cfg.ServerURL == "" {
		cmd.Println(dimStyle.Render("  skipped (not configured)"))
		return
	}
	client := delivery.NewClient(delivery.NewQueue(), delivery.Options{
		ServerURL: cfg.ServerURL,
		DeviceKey: cfg.DeviceAPIKey,
		Timeout:   5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if health, err := client.CheckHealth(ctx); err != nil {
		cmd.Println("  " + cross(fmt.Sprintf("unreachable: %v", err)))
	} else {
		cmd.Println("  " + check(fmt.Sprintf("reachable (status %q)", health.Status)))
	}
}

// redactKey keeps enough of the key to recognize it without exposing it.
func redactKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "(set)"
	}
	return key[:8] + "…"
}

// formatBytes renders a byte count in a human unit.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func init() {
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "Show config, tracked files, and a live collector probe")
	rootCmd.AddCommand(statusCmd)
}
