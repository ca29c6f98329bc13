package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvcrn/cloudflare-api-proxy/internal/cloudflare"
)

func newKVCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Read and write the configured KV namespace",
	}
	cmd.AddCommand(newKVGetCommand(), newKVPutCommand(), newKVDeleteCommand())
	return cmd
}

func newKVGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, err := newGateway(cmd)
			if err != nil {
				return err
			}

			value, found, err := gateway.KVGet(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %q not found", args[0])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
			return err
		},
	}
}

func newKVPutCommand() *cobra.Command {
	var (
		ttl      int64
		isBase64 bool
	)

	cmd := &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Store value under key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, err := newGateway(cmd)
			if err != nil {
				return err
			}

			res, err := gateway.KVPutBatch(cmd.Context(), []cloudflare.KVEntry{{
				Key:           args[0],
				Value:         args[1],
				Base64:        isBase64,
				ExpirationTTL: ttl,
			}})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().Int64Var(&ttl, "ttl", 0, "expire the key after this many seconds (at least 60)")
	cmd.Flags().BoolVar(&isBase64, "base64", false, "value is base64 encoded binary")
	return cmd
}

func newKVDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>...",
		Short: "Delete keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, err := newGateway(cmd)
			if err != nil {
				return err
			}

			res, err := gateway.KVDeleteBatch(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}
