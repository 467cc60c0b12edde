package cmd

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pagepilot/internal/bus"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/observability"
	"github.com/xkilldash9x/pagepilot/internal/relay"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket relay between the agent and a browser tab",
		Long: `Starts the browser, spawns the agent process and listens for WebSocket
clients. Client messages are forwarded to the agent, agent output goes back
to the most recent client, and EXECUTE_ACTION / GET_PAGE_CONTEXT requests
from either side are answered against the tab.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.Relay().ListenAddr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Relay().ListenAddr, err)
			}
			return serve(ctx, cfg, ln, observability.GetLogger())
		},
	}

	serveCmd.Flags().String("listen", "", "relay listen address (default from relay.listen_addr)")
	serveCmd.Flags().StringSlice("agent", nil, "agent command and arguments, comma separated")
	serveCmd.Flags().Bool("headless", true, "run Chrome without a window")
	serveCmd.Flags().String("remote-url", "", "attach to a running browser's DevTools endpoint")
	return serveCmd
}

// serve runs the relay on ln until ctx is canceled. It owns ln.
func serve(ctx context.Context, cfg config.Interface, ln net.Listener, logger *zap.Logger) error {
	p, err := openPage(ctx, cfg, logger)
	if err != nil {
		ln.Close()
		return fmt.Errorf("failed to open browser tab: %w", err)
	}
	defer p.close()

	handler := bus.NewHandler(newEngine(p, cfg, logger), p.nav, logger)

	rc := cfg.Relay()
	agent := relay.NewAgent(rc.AgentCommand,
		relay.WithRestartLimit(rate.NewLimiter(rate.Every(rc.RestartInterval), rc.RestartBurst)),
		relay.WithLogger(logger))
	srv := relay.NewServer(agent, handler, logger)

	logger.Info("Relay listening.",
		zap.String("addr", "ws://"+ln.Addr().String()),
		zap.Strings("agent", rc.AgentCommand))
	return srv.Serve(ctx, ln)
}
