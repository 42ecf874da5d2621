package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/awsdeck/aws-identity-go/awsidentity"
	"github.com/spf13/cobra"
)

// NewConsoleCommand creates the console command
func NewConsoleCommand() *cobra.Command {
	var accountID string
	var roleName string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Open the AWS Console in a browser",
		Long: `Open the AWS Console in a browser using federated sign-in.

Credentials for the account are fetched first, then exchanged for a
federation sign-in token.

Examples:
  # Open the console for an account with the default role
  aws-identity-util console --account 123456789012

  # Open with a specific role
  aws-identity-util console --account 123456789012 --role myrole`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if err := awsidentity.ValidateAccountID(accountID); err != nil {
				return err
			}

			ic, err := newIdentityCenter(cmd)
			if err != nil {
				return err
			}
			if err := runLogin(ctx, ic); err != nil {
				return err
			}

			if roleName == "" {
				roleName = ic.DefaultRoleName()
			}

			if err := ic.OpenConsole(ctx, accountID, roleName); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Opened AWS Console for account %s with role %s\n",
				accountID, roleName)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "AWS account ID (required)")
	cmd.Flags().StringVar(&roleName, "role", "", "Role name (defaults to the configured default role)")
	cmd.MarkFlagRequired("account")

	return cmd
}
