package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/awsdeck/aws-identity-go/awsidentity"
	"github.com/spf13/cobra"
)

// NewCheckCommand creates the check command
func NewCheckCommand() *cobra.Command {
	var accountID string
	var region string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check configuration and deployment prerequisites",
		Long: `Check Identity Center configuration and validate access.

Without --account this only validates the configuration. With
--account it logs in and validates deployment prerequisites for that
account.

Examples:
  # Validate configuration
  aws-identity-util check

  # Validate deployment prerequisites for an account
  aws-identity-util check --account 123456789012 --region us-east-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			fmt.Fprintln(os.Stderr, "Checking configuration...")

			ic, err := newIdentityCenter(cmd)
			if err != nil {
				fmt.Fprintln(os.Stderr, "✗ Invalid configuration")
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Portal URL: %s\n", ic.PortalURL())
			fmt.Fprintf(os.Stderr, "✓ Region: %s\n", ic.Region())
			fmt.Fprintf(os.Stderr, "✓ Default role: %s\n", ic.DefaultRoleName())

			if accountID == "" {
				return nil
			}
			if err := awsidentity.ValidateAccountID(accountID); err != nil {
				return err
			}
			if region == "" {
				region = ic.Region()
			}

			if err := runLogin(ctx, ic); err != nil {
				return err
			}

			coordinator := awsidentity.NewCredentialCoordinator(ic, ic.DefaultRoleName(), nil)
			validation := coordinator.ValidateDeploymentPrerequisites(ctx, accountID, region)

			printCheck := func(ok bool, label string) {
				mark := "✗"
				if ok {
					mark = "✓"
				}
				fmt.Fprintf(os.Stderr, "%s %s\n", mark, label)
			}

			fmt.Fprintf(os.Stderr, "\nDeployment prerequisites for %s:\n", accountID)
			printCheck(validation.AccountAccessible, "Account accessible")
			printCheck(validation.RoleAssumable, "Role assumable")
			printCheck(validation.DeploymentRoleConfigured, "Deployment role configured")
			for _, warning := range validation.Warnings {
				fmt.Fprintf(os.Stderr, "  warning: %s\n", warning)
			}
			for _, errMsg := range validation.Errors {
				fmt.Fprintf(os.Stderr, "  error: %s\n", errMsg)
			}

			if !validation.IsValid {
				return fmt.Errorf("deployment prerequisites not met for account %s", accountID)
			}
			fmt.Fprintln(os.Stderr, "\nAll checks passed")
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "AWS account ID to validate")
	cmd.Flags().StringVar(&region, "region", "", "Target region (defaults to the SSO region)")

	return cmd
}
