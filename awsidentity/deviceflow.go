package awsidentity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sso"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	oidctypes "github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
)

const (
	clientType = "public"
	grantType  = "urn:ietf:params:oauth:grant-type:device_code"

	// Polling is capped so a user who never completes browser
	// authorization cannot block the flow forever.
	maxPollAttempts = 100
)

// StartDeviceAuthorization registers an ephemeral OIDC client, starts
// the device grant and transitions the state machine to
// DeviceAuthorization. The verification URL is opened in a browser
// best-effort; a launch failure is logged, not fatal.
func (ic *IdentityCenter) StartDeviceAuthorization(ctx context.Context) (*DeviceAuthorizationData, error) {
	logger := getLogger(ic.config)
	logger.Info("Starting device authorization",
		slog.String("start_url", ic.startURL),
		slog.String("region", ic.region))

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(ic.region))
	if err != nil {
		return nil, ic.failLogin(fmt.Errorf("failed to load config: %w", err))
	}
	oidcClient := ssooidc.NewFromConfig(cfg)

	registerResp, err := oidcClient.RegisterClient(ctx, &ssooidc.RegisterClientInput{
		ClientName: aws.String(ic.clientName),
		ClientType: aws.String(clientType),
	})
	if err != nil {
		return nil, ic.failLogin(fmt.Errorf("failed to register OIDC client: %w", err))
	}

	authResp, err := oidcClient.StartDeviceAuthorization(ctx, &ssooidc.StartDeviceAuthorizationInput{
		ClientId:     registerResp.ClientId,
		ClientSecret: registerResp.ClientSecret,
		StartUrl:     aws.String(ic.startURL),
	})
	if err != nil {
		return nil, ic.failLogin(fmt.Errorf("failed to start device authorization: %w", err))
	}

	data := DeviceAuthorizationData{
		DeviceCode:              aws.ToString(authResp.DeviceCode),
		UserCode:                aws.ToString(authResp.UserCode),
		VerificationURI:         aws.ToString(authResp.VerificationUri),
		VerificationURIComplete: aws.ToString(authResp.VerificationUriComplete),
		ExpiresIn:               authResp.ExpiresIn,
		Interval:                authResp.Interval,
		StartTime:               time.Now(),
		ClientID:                aws.ToString(registerResp.ClientId),
		ClientSecret:            aws.ToString(registerResp.ClientSecret),
	}

	ic.mu.RLock()
	browser := ic.browser
	ic.mu.RUnlock()

	openURL := data.VerificationURIComplete
	if openURL == "" {
		openURL = data.VerificationURI
	}
	if err := browser.OpenURL(openURL); err != nil {
		logger.Warn("Failed to open browser", slog.Any("error", err))
	}

	ic.mu.Lock()
	ic.loginState = DeviceAuthorization{Data: data}
	ic.mu.Unlock()

	logger.Info("Device authorization started", slog.Any("authorization", &data))
	return &data, nil
}

// discoveryResult is what the polling worker hands back to the caller.
type discoveryResult struct {
	accessToken     string
	tokenExpiration time.Time
	accounts        []Account
	availableRoles  map[string][]string
}

// CompleteDeviceAuthorization polls the token endpoint until the user
// authorizes in the browser, then enumerates accounts and per-account
// roles. Polling runs on a worker goroutine while the caller blocks on a
// one-shot channel, so a caller thread is never tied up in the SDK's
// retry loop directly.
//
// On success the access token, account list and role map are stored, but
// the state machine is NOT advanced to LoggedIn: the caller confirms the
// login after first obtaining default-role credentials (ConfirmLogin).
func (ic *IdentityCenter) CompleteDeviceAuthorization(ctx context.Context) error {
	logger := getLogger(ic.config)

	ic.mu.RLock()
	state := ic.loginState
	region := ic.region
	defaultRole := ic.defaultRoleName
	ic.mu.RUnlock()

	auth, ok := state.(DeviceAuthorization)
	if !ok {
		return &InvalidStateError{Op: "CompleteDeviceAuthorization", State: state.Name()}
	}
	if auth.Data.ClientID == "" || auth.Data.ClientSecret == "" {
		return ic.failLogin(fmt.Errorf("device authorization data is missing client registration"))
	}
	if auth.Data.Expired() {
		return ic.failLogin(fmt.Errorf("device authorization window expired before completion"))
	}

	resultCh := make(chan pollOutcome, 1)
	go func() {
		res, err := pollAndDiscover(ctx, logger, region, defaultRole, auth.Data)
		resultCh <- pollOutcome{res, err}
	}()

	r := <-resultCh
	if r.err != nil {
		return ic.failLogin(r.err)
	}

	ic.mu.Lock()
	ic.accessToken = r.res.accessToken
	exp := r.res.tokenExpiration
	ic.tokenExpiration = &exp
	now := time.Now()
	ic.lastRefresh = &now
	// Discovery replaces both collections wholesale so stale roles can
	// never leak across logins.
	ic.accounts = r.res.accounts
	ic.availableRoles = r.res.availableRoles
	ic.mu.Unlock()

	logger.Info("Device authorization complete, accounts loaded",
		slog.Int("accounts", len(r.res.accounts)))

	// Best-effort; failures are logged inside and never surface here.
	ic.autoExtractInfrastructureInfo(ctx)

	return nil
}

type pollOutcome struct {
	res *discoveryResult
	err error
}

// pollAndDiscover performs token polling and, once a token is issued,
// account and role enumeration. It owns no coordinator state.
func pollAndDiscover(ctx context.Context, logger *slog.Logger, region, defaultRole string, auth DeviceAuthorizationData) (*discoveryResult, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	oidcClient := ssooidc.NewFromConfig(cfg)

	interval := time.Duration(auth.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	var tokenResp *ssooidc.CreateTokenOutput
	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}

		resp, err := oidcClient.CreateToken(ctx, &ssooidc.CreateTokenInput{
			ClientId:     aws.String(auth.ClientID),
			ClientSecret: aws.String(auth.ClientSecret),
			DeviceCode:   aws.String(auth.DeviceCode),
			GrantType:    aws.String(grantType),
		})
		if err != nil {
			var pending *oidctypes.AuthorizationPendingException
			var slowDown *oidctypes.SlowDownException
			if errors.As(err, &pending) {
				continue
			}
			if errors.As(err, &slowDown) {
				interval += time.Second
				continue
			}
			return nil, fmt.Errorf("failed to create token: %w", err)
		}
		tokenResp = resp
		break
	}
	if tokenResp == nil {
		return nil, fmt.Errorf("exceeded maximum polling attempts (%d)", maxPollAttempts)
	}

	res := &discoveryResult{
		accessToken:     aws.ToString(tokenResp.AccessToken),
		tokenExpiration: time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		availableRoles:  make(map[string][]string),
	}

	ssoClient := sso.NewFromConfig(cfg)

	var nextToken *string
	for {
		accountsResp, err := ssoClient.ListAccounts(ctx, &sso.ListAccountsInput{
			AccessToken: aws.String(res.accessToken),
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}

		for _, acc := range accountsResp.AccountList {
			accountID := aws.ToString(acc.AccountId)

			roles, err := listAccountRoles(ctx, ssoClient, res.accessToken, accountID)
			if err != nil {
				// Accounts whose roles cannot be listed are skipped
				// rather than added with an unusable empty role set.
				logger.Error("Failed to list account roles",
					slog.String("account_id", accountID),
					slog.Any("error", err))
				continue
			}

			// Prefer the configured default role, otherwise the first
			// role in the provider's order.
			roleName := ""
			if len(roles) > 0 {
				roleName = roles[0]
			}
			for _, r := range roles {
				if r == defaultRole {
					roleName = r
					break
				}
			}

			res.accounts = append(res.accounts, Account{
				AccountID:    accountID,
				AccountName:  aws.ToString(acc.AccountName),
				EmailAddress: aws.ToString(acc.EmailAddress),
				RoleName:     roleName,
			})
			res.availableRoles[accountID] = roles
		}

		nextToken = accountsResp.NextToken
		if nextToken == nil {
			break
		}
	}

	return res, nil
}

func listAccountRoles(ctx context.Context, client *sso.Client, accessToken, accountID string) ([]string, error) {
	var roles []string
	var nextToken *string
	for {
		resp, err := client.ListAccountRoles(ctx, &sso.ListAccountRolesInput{
			AccessToken: aws.String(accessToken),
			AccountId:   aws.String(accountID),
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, err
		}
		for _, role := range resp.RoleList {
			roles = append(roles, aws.ToString(role.RoleName))
		}
		nextToken = resp.NextToken
		if nextToken == nil {
			break
		}
	}
	return roles, nil
}

// failLogin records an authentication failure as the canonical
// LoginFailed state and returns the error for the caller.
func (ic *IdentityCenter) failLogin(err error) error {
	ic.mu.Lock()
	ic.loginState = LoginFailed{Message: err.Error()}
	ic.mu.Unlock()
	return err
}
