package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvcrn/cloudflare-api-proxy/internal/otp"
)

func newOTPCommand() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "otp [name]",
		Short: "Print the current TOTP code for a configured OTP_<name> secret",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := otp.NewGenerator(configFrom(cmd).OTP)

			if list || len(args) == 0 {
				for _, name := range gen.Names() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			code, err := gen.Code(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), code)
			return err
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list configured secret names")
	return cmd
}
