package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvcrn/cloudflare-api-proxy/internal/password"
)

func newPasswordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Hash and verify argon2id passwords",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "hash <password>",
		Short: "Print the argon2id hash of password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := password.Hash(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify <password> <hash>",
		Short: "Check password against an argon2id hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := password.Verify(args[0], args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ok)
			return err
		},
	})

	return cmd
}
