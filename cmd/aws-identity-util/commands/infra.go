package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewInfraCommand creates the infra command
func NewInfraCommand() *cobra.Command {
	var roleName string
	var tablePattern string

	cmd := &cobra.Command{
		Use:   "infra",
		Short: "Show infrastructure info extracted from IAM policies",
		Long: `Discover the deployment role and extract infrastructure information
from its inline policy.

The deployment role is found by inspecting the caller's own
permission-set policy for a PassRole statement scoped to
CloudFormation. Its inline policy is then searched for the storage
table ARN and deployment role ARNs.

Examples:
  # Discover and extract automatically
  aws-identity-util infra

  # Extract from a specific role with a custom table pattern
  aws-identity-util infra --role my-deploy-role --table-pattern myapp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			ic, err := newIdentityCenter(cmd)
			if err != nil {
				return err
			}
			if err := runLogin(ctx, ic); err != nil {
				return err
			}

			if roleName == "" {
				roleName, err = ic.DiscoverDeploymentRole(ctx)
				if err != nil {
					return fmt.Errorf("failed to discover deployment role: %w", err)
				}
				fmt.Fprintf(os.Stderr, "Discovered deployment role: %s\n", roleName)
			}
			if tablePattern == "" {
				tablePattern = ic.DefaultRoleName()
			}

			info, err := ic.ExtractInfrastructureInfo(ctx, roleName, tablePattern)
			if err != nil {
				return fmt.Errorf("failed to extract infrastructure info: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Table ARN:\t%s\n", info.TableARN)
			fmt.Fprintf(w, "Table name:\t%s\n", info.TableName)
			fmt.Fprintf(w, "Table region:\t%s\n", info.TableRegion)
			fmt.Fprintf(w, "Table account:\t%s\n", info.TableAccount)
			fmt.Fprintf(w, "Source role:\t%s\n", info.SourceRole)
			w.Flush()

			if len(info.DeploymentRoleARNs) > 0 {
				fmt.Println("\nDeployment role ARNs:")
				for _, arn := range info.DeploymentRoleARNs {
					fmt.Printf("  %s\n", arn)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&roleName, "role", "", "Role whose inline policy to inspect (discovered if omitted)")
	cmd.Flags().StringVar(&tablePattern, "table-pattern", "", "Table name pattern (defaults to the default role name)")

	return cmd
}
