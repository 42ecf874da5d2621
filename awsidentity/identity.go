package awsidentity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sso"
	"github.com/google/uuid"
)

// IdentityCenter coordinates Identity Center authentication and
// multi-account credential access. All state lives behind a single
// reader/writer lock; methods copy what they need out of the aggregate
// before performing network calls so no call ever holds the lock.
//
// Access tokens, client secrets and credentials exist only in memory and
// are zeroed by Logout.
type IdentityCenter struct {
	mu sync.RWMutex

	portalURL       string
	startURL        string
	defaultRoleName string
	region          string
	clientName      string

	config  *Config
	browser *BrowserLauncher

	loginState      LoginState
	accessToken     string
	tokenExpiration *time.Time
	lastRefresh     *time.Time

	accounts       []Account
	availableRoles map[string][]string

	defaultRoleCredentials *Credential
	managementAccountID    string
	infrastructureInfo     *InfrastructureInfo
	deploymentRoleName     string
}

// NewIdentityCenter creates a coordinator for the given portal URL,
// default role and Identity Center region. No network calls are made.
func NewIdentityCenter(portalURL, defaultRoleName, region string, cfg *Config) (*IdentityCenter, error) {
	if err := ValidatePortalURL(portalURL); err != nil {
		return nil, err
	}
	if err := ValidateRoleName(defaultRoleName); err != nil {
		return nil, err
	}
	if err := ValidateRegion(region); err != nil {
		return nil, err
	}

	return &IdentityCenter{
		portalURL:       portalURL,
		startURL:        normalizeStartURL(portalURL),
		defaultRoleName: defaultRoleName,
		region:          region,
		clientName:      "aws-identity-" + uuid.NewString(),
		config:          cfg,
		browser:         NewBrowserLauncher(false),
		loginState:      NotLoggedIn{},
		availableRoles:  make(map[string][]string),
	}, nil
}

// SetBrowserLauncher replaces the launcher used during the device flow,
// for callers that disable or customize browser opening.
func (ic *IdentityCenter) SetBrowserLauncher(b *BrowserLauncher) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.browser = b
}

// Initialize resets authentication state ahead of a fresh login flow.
func (ic *IdentityCenter) Initialize() {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.loginState = NotLoggedIn{}
	ic.accessToken = ""
	ic.defaultRoleCredentials = nil
}

// Logout clears every secret and resets the state machine. It is safe to
// call concurrently with in-flight credential fetches; a fetch completing
// after logout is stale and its result is discarded by callers.
func (ic *IdentityCenter) Logout() {
	logger := getLogger(ic.config)
	logger.Info("Logging out from Identity Center")

	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.loginState = NotLoggedIn{}
	ic.accessToken = ""
	ic.tokenExpiration = nil
	ic.lastRefresh = nil
	ic.accounts = nil
	ic.availableRoles = make(map[string][]string)
	ic.defaultRoleCredentials = nil
	ic.managementAccountID = ""
	ic.infrastructureInfo = nil
	ic.deploymentRoleName = ""
}

// LoginState returns the current authentication state.
func (ic *IdentityCenter) LoginState() LoginState {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return ic.loginState
}

// ConfirmLogin transitions DeviceAuthorization to LoggedIn. The caller
// invokes it after first successfully obtaining default-role credentials,
// so the state never claims logged-in while no usable credentials exist.
func (ic *IdentityCenter) ConfirmLogin() error {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if _, ok := ic.loginState.(DeviceAuthorization); !ok {
		return &InvalidStateError{Op: "ConfirmLogin", State: ic.loginState.Name()}
	}
	ic.loginState = LoggedIn{}
	return nil
}

// DefaultRoleName returns the configured default role.
func (ic *IdentityCenter) DefaultRoleName() string {
	return ic.defaultRoleName
}

// Region returns the Identity Center region.
func (ic *IdentityCenter) Region() string {
	return ic.region
}

// PortalURL returns the configured portal URL.
func (ic *IdentityCenter) PortalURL() string {
	return ic.portalURL
}

// Accounts returns a copy of the discovered account list.
func (ic *IdentityCenter) Accounts() []Account {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	out := make([]Account, len(ic.accounts))
	copy(out, ic.accounts)
	return out
}

// AccountRoles returns the assumable role names for an account, empty if
// the account is unknown or discovery has not run.
func (ic *IdentityCenter) AccountRoles(accountID string) []string {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	roles := ic.availableRoles[accountID]
	out := make([]string, len(roles))
	copy(out, roles)
	return out
}

// UpdateAccount replaces the account record with the same id, or appends
// the record if the id is new.
func (ic *IdentityCenter) UpdateAccount(account Account) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	for i := range ic.accounts {
		if ic.accounts[i].AccountID == account.AccountID {
			ic.accounts[i] = account
			return
		}
	}
	ic.accounts = append(ic.accounts, account)
}

// ManagementAccountID returns the detected organization management
// account id, empty when detection has not succeeded.
func (ic *IdentityCenter) ManagementAccountID() string {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return ic.managementAccountID
}

// InfrastructureInfo returns the most recent policy extraction result.
func (ic *IdentityCenter) InfrastructureInfo() *InfrastructureInfo {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	if ic.infrastructureInfo == nil {
		return nil
	}
	info := *ic.infrastructureInfo
	info.DeploymentRoleARNs = append([]string(nil), ic.infrastructureInfo.DeploymentRoleARNs...)
	return &info
}

// DeploymentRoleName returns the discovered deployment role name, empty
// when discovery has not run or found nothing.
func (ic *IdentityCenter) DeploymentRoleName() string {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return ic.deploymentRoleName
}

// GetAccountCredentials exchanges the access token for temporary
// credentials scoped to the given account and role. On success the
// matching account record's active role and credentials are updated in
// place; on failure the record is left untouched.
func (ic *IdentityCenter) GetAccountCredentials(ctx context.Context, accountID, roleName string) (*Credential, error) {
	logger := getLogger(ic.config)

	if err := ValidateAccountID(accountID); err != nil {
		return nil, err
	}
	if err := ValidateRoleName(roleName); err != nil {
		return nil, err
	}

	ic.mu.RLock()
	accessToken := ic.accessToken
	region := ic.region
	known := false
	for i := range ic.accounts {
		if ic.accounts[i].AccountID == accountID {
			known = true
			break
		}
	}
	ic.mu.RUnlock()

	if accessToken == "" {
		return nil, &AuthenticationNeededError{}
	}
	if !known {
		return nil, &AccountNotFoundError{AccountID: accountID}
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	client := sso.NewFromConfig(cfg)

	resp, err := client.GetRoleCredentials(ctx, &sso.GetRoleCredentialsInput{
		AccessToken: aws.String(accessToken),
		AccountId:   aws.String(accountID),
		RoleName:    aws.String(roleName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get role credentials: %w", err)
	}
	if resp.RoleCredentials == nil {
		return nil, fmt.Errorf("no credentials in role credentials response")
	}

	// Expiration arrives as epoch milliseconds.
	expiration := time.Unix(resp.RoleCredentials.Expiration/1000, (resp.RoleCredentials.Expiration%1000)*int64(time.Millisecond))
	cred := &Credential{
		AccessKeyID:     aws.ToString(resp.RoleCredentials.AccessKeyId),
		SecretAccessKey: aws.ToString(resp.RoleCredentials.SecretAccessKey),
		SessionToken:    aws.ToString(resp.RoleCredentials.SessionToken),
		Expiration:      &expiration,
	}

	ic.mu.Lock()
	for i := range ic.accounts {
		if ic.accounts[i].AccountID == accountID {
			stored := *cred
			ic.accounts[i].RoleName = roleName
			ic.accounts[i].Credentials = &stored
			break
		}
	}
	ic.mu.Unlock()

	logger.Debug("Obtained account credentials",
		slog.String("account_id", accountID),
		slog.String("role_name", roleName),
		slog.Any("credential", cred))
	return cred, nil
}

// AreCredentialsExpired reports whether the cached credentials for an
// account need renewal. The check is conservative: an unknown account,
// missing credentials or missing expiration all count as expired.
func (ic *IdentityCenter) AreCredentialsExpired(accountID string) bool {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	for i := range ic.accounts {
		if ic.accounts[i].AccountID == accountID {
			return ic.accounts[i].Credentials.IsExpired()
		}
	}
	return true
}

// GetDefaultRoleCredentials returns credentials for the configured
// default role, fetching fresh ones when the cached set is within the
// expiry buffer. Account selection filters accounts that list the default
// role and prefers the detected management account; otherwise the first
// qualifying account in discovery order is used.
//
// Management-account detection runs best-effort after the credentials are
// cached, so the very first retrieval after login selects without the
// management bias; later retrievals benefit from it. This ordering is
// deliberate and load-bearing for cold-start account selection.
func (ic *IdentityCenter) GetDefaultRoleCredentials(ctx context.Context) (*Credential, error) {
	logger := getLogger(ic.config)

	ic.mu.RLock()
	cached := ic.defaultRoleCredentials
	defaultRole := ic.defaultRoleName
	managementID := ic.managementAccountID

	var candidates []string
	for i := range ic.accounts {
		roles := ic.availableRoles[ic.accounts[i].AccountID]
		for _, r := range roles {
			if r == defaultRole {
				candidates = append(candidates, ic.accounts[i].AccountID)
				break
			}
		}
	}
	ic.mu.RUnlock()

	if cached != nil && !cached.IsExpired() {
		logger.Debug("Using cached default role credentials", slog.Any("credential", cached))
		c := *cached
		return &c, nil
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no account found with the default role: %s", defaultRole)
	}

	selected := selectDefaultRoleAccount(candidates, managementID)
	logger.Info("Selected account for default role",
		slog.String("account_id", selected),
		slog.String("role_name", defaultRole))

	cred, err := ic.GetAccountCredentials(ctx, selected, defaultRole)
	if err != nil {
		return nil, err
	}
	ic.storeDefaultCredentials(cred)

	// Best-effort enrichment; never fails the credential retrieval.
	if err := ic.identifyManagementAccount(ctx); err != nil {
		logger.Warn("Management account detection failed", slog.Any("error", err))
	}

	return cred, nil
}

// selectDefaultRoleAccount picks the account to fetch default-role
// credentials from: the detected management account when it is a
// candidate, otherwise the first candidate in discovery order.
func selectDefaultRoleAccount(candidates []string, managementID string) string {
	if managementID != "" {
		for _, id := range candidates {
			if id == managementID {
				return id
			}
		}
	}
	return candidates[0]
}

// storeDefaultCredentials caches the default-role credential. The store
// is refused when a concurrent Logout cleared the session mid-fetch, so
// a late fetch can never resurrect zeroed state.
func (ic *IdentityCenter) storeDefaultCredentials(cred *Credential) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.accessToken == "" {
		return false
	}
	c := *cred
	ic.defaultRoleCredentials = &c
	return true
}

// awsConfigWithCredential builds an SDK config that signs with the given
// temporary credential, for elevated calls (Organizations, IAM, STS).
func (ic *IdentityCenter) awsConfigWithCredential(ctx context.Context, cred *Credential) (aws.Config, error) {
	provider := credentials.NewStaticCredentialsProvider(
		cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken)
	return config.LoadDefaultConfig(ctx,
		config.WithRegion(ic.region),
		config.WithCredentialsProvider(provider),
	)
}

// defaultCredentialSnapshot copies the cached default-role credential out
// of the aggregate, or fails when none is cached.
func (ic *IdentityCenter) defaultCredentialSnapshot() (*Credential, error) {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	if ic.defaultRoleCredentials == nil {
		return nil, &AuthenticationNeededError{Message: "no default role credentials available"}
	}
	cred := *ic.defaultRoleCredentials
	return &cred, nil
}
