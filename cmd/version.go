package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/observability"
	"github.com/xkilldash9x/pagepilot/internal/updatecheck"
)

// Version is the application version, set at build time:
//
//	go build -ldflags "-X github.com/xkilldash9x/pagepilot/cmd.Version=1.2.0"
var Version = updatecheck.DevVersion

const updateCheckTimeout = 10 * time.Second

var newUpdateChecker = func(repository string, logger *zap.Logger) (*updatecheck.Checker, error) {
	return updatecheck.New(repository, updatecheck.WithLogger(logger))
}

func newVersionCmd() *cobra.Command {
	var (
		check   bool
		jsonOut bool
	)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version, optionally checking for a newer release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !check {
				if jsonOut {
					return printJSON(out, updatecheck.Result{Current: Version})
				}
				fmt.Fprintln(out, Version)
				return nil
			}

			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			checker, err := newUpdateChecker(cfg.Relay().UpdateRepo, observability.GetLogger())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), updateCheckTimeout)
			defer cancel()
			res, err := checker.Check(ctx, Version)
			if err != nil {
				return fmt.Errorf("update check failed: %w", err)
			}
			if jsonOut {
				return printJSON(out, res)
			}
			fmt.Fprintln(out, res.String())
			return nil
		},
	}

	versionCmd.Flags().BoolVar(&check, "check", false, "compare against the latest published release")
	versionCmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as JSON")
	return versionCmd
}
