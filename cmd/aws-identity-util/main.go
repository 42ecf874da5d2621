package main

import (
	"fmt"
	"os"

	"github.com/awsdeck/aws-identity-go/cmd/aws-identity-util/commands"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "aws-identity-util",
		Short: "AWS IAM Identity Center authentication and credential utility",
		Long: `aws-identity-util manages AWS IAM Identity Center (formerly AWS SSO)
authentication and multi-account credentials.

It provides utilities for:
- Logging in via the device authorization flow
- Listing available accounts and roles
- Fetching and preloading account credentials
- Validating deployment prerequisites
- Opening the AWS Console in a browser`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().String("portal-url", "", "AWS Identity Center portal URL")
	rootCmd.PersistentFlags().String("sso-region", "", "AWS Identity Center region")
	rootCmd.PersistentFlags().String("default-role", "", "Default permission-set role name")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	// Add commands
	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewAccountsCommand())
	rootCmd.AddCommand(commands.NewRolesCommand())
	rootCmd.AddCommand(commands.NewCredentialsCommand())
	rootCmd.AddCommand(commands.NewPreloadCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewConsoleCommand())
	rootCmd.AddCommand(commands.NewInfraCommand())

	// Set version template
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
