package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dvcrn/cloudflare-api-proxy/internal/cloudflare"
)

func newD1Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "d1",
		Short: "Run SQL against the configured D1 database",
	}
	cmd.AddCommand(newD1RunCommand("query", "Run a statement through the query endpoint",
		func(c *cloudflare.Client) d1Runner { return c.D1Query }))
	cmd.AddCommand(newD1RunCommand("exec", "Run a statement through the raw endpoint",
		func(c *cloudflare.Client) d1Runner { return c.D1Exec }))
	return cmd
}

type d1Runner func(ctx context.Context, sql string, params []any) (*cloudflare.D1Result, error)

func newD1RunCommand(use, short string, pick func(*cloudflare.Client) d1Runner) *cobra.Command {
	var rawParams string

	cmd := &cobra.Command{
		Use:   use + " <sql>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Example: `  cfapi d1 ` + use + ` "SELECT * FROM users WHERE id = ?" --params '[1]'
  cfapi d1 ` + use + ` "SELECT * FROM users WHERE name = ?" --params alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := cloudflare.ParseParams(rawParams)
			if err != nil {
				return err
			}

			gateway, err := newGateway(cmd)
			if err != nil {
				return err
			}

			res, err := pick(gateway)(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&rawParams, "params", "", "statement parameters: JSON array or comma separated")
	return cmd
}
