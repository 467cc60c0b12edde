package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
	)

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			path := cfg.Logger().LogFile
			if path == "" {
				return errors.New("file logging is disabled (logger.log_file is empty)")
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no log file at %s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			if err := printLastLines(out, path, lines); err != nil {
				return err
			}
			if !follow {
				return nil
			}
			return followFile(ctx, out, path)
		},
	}

	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing lines as they are written")
	logsCmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of trailing lines to print, 0 for all")
	return logsCmd
}

// printLastLines writes the final n lines of path, or all of them when n
// is not positive.
func printLastLines(w io.Writer, path string, n int) error {
	t, err := tail.TailFile(path, tail.Config{
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer t.Cleanup()

	var ring []string
	for line := range t.Lines {
		if line.Err != nil {
			return fmt.Errorf("failed to read %s: %w", path, line.Err)
		}
		ring = append(ring, line.Text)
		if n > 0 && len(ring) > n {
			ring = ring[1:]
		}
	}
	for _, l := range ring {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

// followFile prints lines appended to path until ctx is canceled. Rotation
// is followed by reopening the path.
func followFile(ctx context.Context, w io.Writer, path string) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow %s: %w", path, err)
	}
	defer t.Cleanup()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Wait()
			}
			if line.Err != nil {
				return fmt.Errorf("failed to follow %s: %w", path, line.Err)
			}
			if _, err := fmt.Fprintln(w, line.Text); err != nil {
				return err
			}
		}
	}
}
