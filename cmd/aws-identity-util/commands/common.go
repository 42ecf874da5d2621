package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/awsdeck/aws-identity-go/awsidentity"
	"github.com/spf13/cobra"
)

// newIdentityCenter builds an identity center from the global flags,
// falling back to environment variables for anything not provided.
func newIdentityCenter(cmd *cobra.Command) (*awsidentity.IdentityCenter, error) {
	portalURL, _ := cmd.Flags().GetString("portal-url")
	region, _ := cmd.Flags().GetString("sso-region")
	defaultRole, _ := cmd.Flags().GetString("default-role")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if portalURL == "" {
		portalURL = os.Getenv("AWS_IDENTITY_PORTAL_URL")
	}
	if region == "" {
		region = os.Getenv("AWS_IDENTITY_SSO_REGION")
	}
	if defaultRole == "" {
		defaultRole = os.Getenv("AWS_IDENTITY_DEFAULT_ROLE")
	}

	if portalURL == "" || region == "" || defaultRole == "" {
		return nil, fmt.Errorf("missing configuration: provide --portal-url, --sso-region and --default-role or set AWS_IDENTITY_PORTAL_URL, AWS_IDENTITY_SSO_REGION and AWS_IDENTITY_DEFAULT_ROLE")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ic, err := awsidentity.NewIdentityCenter(portalURL, defaultRole, region,
		awsidentity.NewConfig(logger, level))
	if err != nil {
		return nil, err
	}
	ic.Initialize()
	return ic, nil
}

// runLogin drives the full device authorization flow: start the flow,
// show the user code, wait for browser approval and account discovery,
// then fetch default-role credentials before confirming the login.
func runLogin(ctx context.Context, ic *awsidentity.IdentityCenter) error {
	auth, err := ic.StartDeviceAuthorization(ctx)
	if err != nil {
		return fmt.Errorf("failed to start device authorization: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Open %s and enter code: %s\n", auth.VerificationURI, auth.UserCode)
	fmt.Fprintln(os.Stderr, "Waiting for approval...")

	if err := ic.CompleteDeviceAuthorization(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if _, err := ic.GetDefaultRoleCredentials(ctx); err != nil {
		return fmt.Errorf("failed to get default role credentials: %w", err)
	}
	if err := ic.ConfirmLogin(); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Successfully logged in!")
	return nil
}
