package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/awsdeck/aws-identity-go/awsidentity"
	"github.com/spf13/cobra"
)

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	var disableBrowser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to AWS Identity Center",
		Long: `Log in to AWS Identity Center using the device authorization flow.

This command opens your browser to complete the login. Once approved,
your accessible accounts and roles are discovered and default-role
credentials are fetched.

Examples:
  # Login using environment variables
  aws-identity-util login

  # Login with explicit configuration
  aws-identity-util login --portal-url https://my-org.awsapps.com/start --sso-region us-east-1 --default-role myrole

  # Login without opening a browser
  aws-identity-util login --disable-browser`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			ic, err := newIdentityCenter(cmd)
			if err != nil {
				return err
			}
			if disableBrowser {
				ic.SetBrowserLauncher(awsidentity.NewBrowserLauncher(true))
			}

			if err := runLogin(ctx, ic); err != nil {
				return err
			}

			accounts := ic.Accounts()
			fmt.Fprintf(os.Stderr, "Access to %d accounts\n", len(accounts))
			if id := ic.ManagementAccountID(); id != "" {
				fmt.Fprintf(os.Stderr, "Management account: %s\n", id)
			}
			if role := ic.DeploymentRoleName(); role != "" {
				fmt.Fprintf(os.Stderr, "Deployment role: %s\n", role)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&disableBrowser, "disable-browser", false, "Disable automatic browser opening")

	return cmd
}
