package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/awsdeck/aws-identity-go/awsidentity"
	"github.com/spf13/cobra"
)

// CredentialProcessOutput represents the output format for credential_process
type CredentialProcessOutput struct {
	Version         int    `json:"Version"`
	AccessKeyID     string `json:"AccessKeyId"`
	SecretAccessKey string `json:"SecretAccessKey"`
	SessionToken    string `json:"SessionToken,omitempty"`
	Expiration      string `json:"Expiration,omitempty"`
}

// NewCredentialsCommand creates the credentials command
func NewCredentialsCommand() *cobra.Command {
	var accountID string
	var roleName string
	var format string

	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Fetch credentials for an account",
		Long: `Fetch temporary credentials for an account and role.

Output is either shell export statements or the JSON format expected by
the AWS CLI credential_process configuration.

Examples:
  # Print export statements for an account
  aws-identity-util credentials --account 123456789012

  # Use a specific role and JSON output
  aws-identity-util credentials --account 123456789012 --role myrole --format json`,
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
			coordinator := awsidentity.NewCredentialCoordinator(ic, roleName, nil)
			creds, err := coordinator.GetCredentialsForAccount(ctx, accountID)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				output := CredentialProcessOutput{
					Version:         1,
					AccessKeyID:     creds.AccessKeyID,
					SecretAccessKey: creds.SecretAccessKey,
					SessionToken:    creds.SessionToken,
				}
				if !creds.Expiration.IsZero() {
					output.Expiration = creds.Expiration.Format("2006-01-02T15:04:05Z")
				}
				encoder := json.NewEncoder(os.Stdout)
				return encoder.Encode(output)
			default:
				fmt.Printf("export AWS_ACCESS_KEY_ID=%s\n", creds.AccessKeyID)
				fmt.Printf("export AWS_SECRET_ACCESS_KEY=%s\n", creds.SecretAccessKey)
				fmt.Printf("export AWS_SESSION_TOKEN=%s\n", creds.SessionToken)
				fmt.Fprintf(os.Stderr, "Credentials for %s (role %s) expire at %s\n",
					accountID, creds.RoleName, creds.Expiration.Format("2006-01-02 15:04:05"))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "AWS account ID (required)")
	cmd.Flags().StringVar(&roleName, "role", "", "Role name (defaults to the configured default role)")
	cmd.Flags().StringVar(&format, "format", "env", "Output format (env, json)")
	cmd.MarkFlagRequired("account")

	return cmd
}

// NewPreloadCommand creates the preload command
func NewPreloadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preload",
		Short: "Preload credentials for all accessible accounts",
		Long: `Fetch credentials for every accessible account in parallel.

Useful before running bulk operations across many accounts. Individual
failures are reported but do not abort the rest.

Examples:
  # Warm the credential cache for all accounts
  aws-identity-util preload`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			ic, err := newIdentityCenter(cmd)
			if err != nil {
				return err
			}
			if err := runLogin(ctx, ic); err != nil {
				return err
			}

			coordinator := awsidentity.NewCredentialCoordinator(ic, ic.DefaultRoleName(), nil)
			accountIDs := coordinator.DiscoveredAccounts()

			successful := coordinator.PreloadCredentials(ctx, accountIDs)
			fmt.Fprintf(os.Stderr, "Preloaded credentials for %d/%d accounts\n",
				successful, len(accountIDs))

			stats := coordinator.CacheStats()
			fmt.Fprintf(os.Stderr, "Cache: %d entries, %d valid (%.0f%%)\n",
				stats.TotalEntries, stats.ValidEntries, stats.HitRatio())

			return nil
		},
	}

	return cmd
}
