package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewAccountsCommand creates the accounts command
func NewAccountsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List accessible AWS accounts",
		Long: `List all AWS accounts accessible through Identity Center.

This command logs in first, then prints the discovered accounts.

Examples:
  # List all accessible accounts
  aws-identity-util accounts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			ic, err := newIdentityCenter(cmd)
			if err != nil {
				return err
			}
			if err := runLogin(ctx, ic); err != nil {
				return err
			}

			managementID := ic.ManagementAccountID()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT ID\tACCOUNT NAME\tEMAIL\tROLE")
			fmt.Fprintln(w, "----------\t------------\t-----\t----")
			for _, account := range ic.Accounts() {
				name := account.AccountName
				if account.AccountID == managementID {
					name += " (management)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					account.AccountID, name, account.EmailAddress, account.RoleName)
			}
			w.Flush()

			return nil
		},
	}

	return cmd
}

// NewRolesCommand creates the roles command
func NewRolesCommand() *cobra.Command {
	var accountIDs []string

	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List available roles per account",
		Long: `List all roles available through Identity Center.

This command shows every account and role pair you have access to.

Examples:
  # List all available roles
  aws-identity-util roles

  # List roles for specific accounts
  aws-identity-util roles --account 123456789012 --account 234567890123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			ic, err := newIdentityCenter(cmd)
			if err != nil {
				return err
			}
			if err := runLogin(ctx, ic); err != nil {
				return err
			}

			filter := make(map[string]bool, len(accountIDs))
			for _, id := range accountIDs {
				filter[id] = true
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT ID\tACCOUNT NAME\tROLE NAME")
			fmt.Fprintln(w, "----------\t------------\t---------")
			for _, account := range ic.Accounts() {
				if len(filter) > 0 && !filter[account.AccountID] {
					continue
				}
				for _, role := range ic.AccountRoles(account.AccountID) {
					fmt.Fprintf(w, "%s\t%s\t%s\n", account.AccountID, account.AccountName, role)
				}
			}
			w.Flush()

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&accountIDs, "account", []string{}, "Filter by account ID (can be specified multiple times)")

	return cmd
}
