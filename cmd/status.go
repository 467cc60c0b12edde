package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagepilot/internal/relay"
)

const statusTimeout = 2 * time.Second

var statusHTTPClient = &http.Client{Timeout: statusTimeout}

type statusReport struct {
	Running bool   `json:"running"`
	Address string `json:"address"`
	Agent   string `json:"agent,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check whether a relay is answering on the listen address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			addr, err := relay.DialAddr(cfg.Relay().ListenAddr)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
			defer cancel()
			st, err := relay.FetchStatus(ctx, statusHTTPClient, addr)

			report := statusReport{Running: err == nil, Address: "ws://" + addr, Agent: st.Agent}
			if err != nil {
				report.Error = err.Error()
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), report)
			}

			out := cmd.OutOrStdout()
			switch {
			case err == nil:
				fmt.Fprintf(out, "+ Relay running on %s (agent %s)\n", report.Address, st.Agent)
			case errors.Is(err, relay.ErrNotRunning):
				fmt.Fprintf(out, "- Relay is not running on %s\n", report.Address)
			default:
				fmt.Fprintf(out, "WARNING: %v\n", err)
			}
			return nil
		},
	}

	statusCmd.Flags().String("listen", "", "relay listen address (default from relay.listen_addr)")
	statusCmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as JSON")
	return statusCmd
}
