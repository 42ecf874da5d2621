package awsidentity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/smithy-go"
)

// identifyManagementAccount queries the Organizations API with the
// cached default-role credential to find the organization's management
// account. Lacking organization visibility is an expected outcome for
// most accounts and counts as success with no detection.
func (ic *IdentityCenter) identifyManagementAccount(ctx context.Context) error {
	logger := getLogger(ic.config)

	cred, err := ic.defaultCredentialSnapshot()
	if err != nil {
		logger.Info("No credentials available for management account detection")
		return nil
	}

	cfg, err := ic.awsConfigWithCredential(ctx, cred)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	client := organizations.NewFromConfig(cfg)

	resp, err := client.DescribeOrganization(ctx, &organizations.DescribeOrganizationInput{})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "AccessDeniedException", "AWSOrganizationsNotInUseException":
				logger.Info("Caller has no organization visibility",
					slog.String("code", apiErr.ErrorCode()))
				return nil
			}
		}
		return fmt.Errorf("failed to describe organization: %w", err)
	}
	if resp.Organization == nil || resp.Organization.MasterAccountId == nil {
		return fmt.Errorf("no management account id in organization response")
	}

	managementID := *resp.Organization.MasterAccountId
	logger.Info("Identified management account", slog.String("account_id", managementID))

	ic.mu.Lock()
	ic.managementAccountID = managementID
	ic.mu.Unlock()
	return nil
}
