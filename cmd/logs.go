package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var logsFollow bool
var logsErrors bool
var logsLines int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the agent's log output",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := paths.Log()
		if logsErrors {
			path = paths.ErrorLog()
		}

		offset, err := tailLines(cmd, path, logsLines)
		if err != nil {
			return err
		}
		if !logsFollow {
			return nil
		}
		return followFile(cmd, path, offset)
	},
}

// tailLines prints the last n lines of path and returns the file size,
// so a follower can pick up where the tail ended.
func tailLines(cmd *cobra.Command, path string, n int) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cmd.Println(dimStyle.Render(fmt.Sprintf("no log output yet (%s)", path)))
			return 0, nil
		}
		return 0, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, line := range lines {
		cmd.Println(line)
	}
	return int64(len(data)), nil
}

// followFile polls path every half second and prints whatever was
// appended, the same offset discipline the agent applies to session
// logs. Runs until interrupted.
func followFile(cmd *cobra.Command, path string, offset int64) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fi, err := os.Stat(path)
			if err != nil {
				continue
			}
			if fi.Size() < offset {
				// Truncated or rotated: start over.
				offset = 0
			}
			if fi.Size() == offset {
				continue
			}
			n, err := printFrom(cmd.OutOrStdout(), path, offset)
			if err != nil {
				continue
			}
			offset += n
		}
	}
}

// printFrom copies everything after offset to out.
func printFrom(out io.Writer, path string, offset int64) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	return io.Copy(out, f)
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Keep printing as new lines arrive")
	logsCmd.Flags().BoolVar(&logsErrors, "errors", false, "Show the error log instead")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "Number of trailing lines to print")
	rootCmd.AddCommand(logsCmd)
}
