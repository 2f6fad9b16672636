package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexfrei/unifi-mcp/internal/config"
	"github.com/lexfrei/unifi-mcp/internal/mcpserver"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		transport string
		host      string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server on the configured transport.

The stdio transport serves a single client over stdin and stdout; logs go
to stderr. The sse transport listens on host:port and additionally exposes
/healthz and Prometheus /metrics.

Example configuration for Claude Desktop:

  {
    "mcpServers": {
      "unifi": {
        "command": "unifi-mcp",
        "args": ["serve"]
      }
    }
  }`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			adjust := func(cfg *config.Config) {
				if flags.Changed("transport") {
					cfg.Server.Transport = transport
				}
				if flags.Changed("host") {
					cfg.Server.Host = host
				}
				if flags.Changed("port") {
					cfg.Server.Port = port
				}
			}

			a, err := newApp(opts, cmd.ErrOrStderr(), adjust)
			if err != nil {
				return err
			}
			defer a.close()

			srv, err := mcpserver.New(mcpserver.Config{
				Name:       "unifi-mcp",
				Version:    version,
				Dispatcher: a.dispatcher,
				Sessions:   a.sessions,
				Logger:     a.logger,
			})
			if err != nil {
				//nolint:wrapcheck // Construction errors are descriptive
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.cfg.Server.Transport == config.TransportSSE {
				//nolint:wrapcheck // ServeSSE wraps its own errors
				return srv.ServeSSE(ctx, a.cfg.Server.Host, a.cfg.Server.Port, a.registry)
			}

			//nolint:wrapcheck // Transport errors are reported as-is
			return srv.ServeStdio(ctx)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", config.TransportStdio, "transport: stdio or sse")
	cmd.Flags().StringVar(&host, "host", config.DefaultHost, "SSE listen host")
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "SSE listen port")

	return cmd
}
