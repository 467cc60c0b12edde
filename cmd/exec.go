package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/bus"
	"github.com/xkilldash9x/pagepilot/internal/observability"
)

func newExecCmd() *cobra.Command {
	var (
		targetURL  string
		actionJSON string
		actionFile string
	)

	execCmd := &cobra.Command{
		Use:   "exec",
		Short: "Run actions against a fresh tab and print their results",
		Example: `  pagepilot exec --url https://example.com --action '{"type":"click","text":"More information"}'
  pagepilot exec --url https://example.com --file actions.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			raw, err := readActions(cmd.InOrStdin(), actionJSON, actionFile)
			if err != nil {
				return err
			}
			actions, err := schemas.DecodeActions(raw)
			if err != nil {
				return fmt.Errorf("invalid actions: %w", err)
			}

			p, err := openPage(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to open browser tab: %w", err)
			}
			defer p.close()

			if targetURL != "" {
				if err := p.nav.Navigate(ctx, targetURL); err != nil {
					return err
				}
			}

			handler := bus.NewHandler(newEngine(p, cfg, logger), p.nav, logger)
			results, runErr := handler.RunBatch(ctx, actions)

			failed := 0
			responses := make([]schemas.Response, len(results))
			for i, r := range results {
				responses[i] = schemas.ResponseFromResult("", r)
				if !r.OK() {
					failed++
				}
			}
			if err := printJSON(cmd.OutOrStdout(), responses); err != nil {
				return err
			}

			if runErr != nil {
				return runErr
			}
			logger.Debug("Batch finished.", zap.Int("actions", len(actions)), zap.Int("failed", failed))
			if failed > 0 {
				return fmt.Errorf("%d of %d actions failed", failed, len(actions))
			}
			return nil
		},
	}

	execCmd.Flags().StringVarP(&targetURL, "url", "u", "", "page to load before running the actions")
	execCmd.Flags().StringVarP(&actionJSON, "action", "a", "", "action JSON: one object or an array")
	execCmd.Flags().StringVarP(&actionFile, "file", "f", "", "read action JSON from a file, - for stdin")
	execCmd.Flags().Bool("headless", true, "run Chrome without a window")
	execCmd.Flags().String("remote-url", "", "attach to a running browser's DevTools endpoint")
	execCmd.MarkFlagsOneRequired("action", "file")
	execCmd.MarkFlagsMutuallyExclusive("action", "file")
	return execCmd
}

func readActions(stdin io.Reader, inline, file string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read actions from stdin: %w", err)
		}
		return data, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read actions: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("no actions given")
}
