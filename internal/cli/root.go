// Package cli provides the cfapi command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dvcrn/cloudflare-api-proxy/internal/cloudflare"
	"github.com/dvcrn/cloudflare-api-proxy/internal/config"
	serverhttp "github.com/dvcrn/cloudflare-api-proxy/internal/http"
)

// Version is set at build time.
var Version = "0.1.0"

type configKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "cfapi",
		Short: "Cloudflare D1 and KV API proxy",
		Long: `cfapi exposes Cloudflare D1 and KV behind a small authenticated REST API,
together with OTP, password hashing and Electron RPC utilities.

Every setting can come from a YAML file (--config), an environment variable
(e.g. CLOUDFLARE_API_TOKEN) or a flag, in increasing order of precedence.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("port", "", "port to listen on")
	rootCmd.PersistentFlags().String("cloudflare-api-base-url", "", "Cloudflare API root")
	rootCmd.PersistentFlags().String("electron-rpc-url", "", "Electron RPC endpoint")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newD1Command())
	rootCmd.AddCommand(newKVCommand())
	rootCmd.AddCommand(newPasswordCommand())
	rootCmd.AddCommand(newOTPCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func configFrom(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return &config.Config{}
}

func newGateway(cmd *cobra.Command) (*cloudflare.Client, error) {
	cfg := configFrom(cmd)
	return cloudflare.NewClient(cfg.Credentials(),
		cloudflare.WithBaseURL(cfg.CloudflareAPIBaseURL),
		cloudflare.WithHTTPClient(serverhttp.NewHTTPClient()),
	)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
