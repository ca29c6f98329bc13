package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	serverhttp "github.com/dvcrn/cloudflare-api-proxy/internal/http"
	"github.com/dvcrn/cloudflare-api-proxy/internal/server"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: `  # Listen on the configured port (default 8000)
  cfapi serve

  # Override the port
  cfapi serve --port 9000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)

			srv, err := server.FromConfig(cfg, serverhttp.NewHTTPClient())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx, ":"+cfg.Port)
		},
	}
}
