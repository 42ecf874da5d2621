package awsidentity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// ssoRolePrefix marks IAM roles created from Identity Center permission
// sets, e.g. AWSReservedSSO_myrole_37838b6bb020f9ca.
const ssoRolePrefix = "AWSReservedSSO_"

// CredentialCoordinator caches per-account credentials on top of a
// shared IdentityCenter and hands out ready-to-use AWS configs. It is
// safe for concurrent use.
type CredentialCoordinator struct {
	mu    sync.RWMutex
	cache map[string]AccountCredentials

	identity        *IdentityCenter
	defaultRoleName string
	config          *Config
}

// NewCredentialCoordinator creates a coordinator backed by the given
// identity center. All credential requests use defaultRoleName, resolved
// per account against the discovered role list.
func NewCredentialCoordinator(identity *IdentityCenter, defaultRoleName string, cfg *Config) *CredentialCoordinator {
	return &CredentialCoordinator{
		cache:           make(map[string]AccountCredentials),
		identity:        identity,
		defaultRoleName: defaultRoleName,
		config:          cfg,
	}
}

// GetCredentialsForAccount returns cached credentials for the account,
// requesting fresh ones when the cache entry is missing or inside the
// expiry buffer.
func (cc *CredentialCoordinator) GetCredentialsForAccount(ctx context.Context, accountID string) (AccountCredentials, error) {
	logger := getLogger(cc.config)

	// A logout invalidates every cached secret; never serve stale ones.
	if _, ok := cc.identity.LoginState().(NotLoggedIn); ok {
		cc.ClearCache()
		return AccountCredentials{}, &AuthenticationNeededError{}
	}

	if cached, ok := cc.cachedCredentials(accountID); ok {
		if !cached.IsExpired() {
			logger.Debug("Using cached credentials", slog.String("account_id", accountID))
			return cached, nil
		}
		logger.Debug("Cached credentials expired, requesting fresh ones",
			slog.String("account_id", accountID),
			slog.String("role_name", cached.RoleName))
	}

	fresh, err := cc.requestFreshCredentials(ctx, accountID)
	if err != nil {
		return AccountCredentials{}, fmt.Errorf("failed to get fresh credentials for account %s: %w", accountID, err)
	}

	if !cc.storeCredentials(accountID, fresh) {
		// A logout raced the fetch; the result is stale.
		return AccountCredentials{}, &AuthenticationNeededError{}
	}

	logger.Debug("Cached fresh credentials",
		slog.String("account_id", accountID),
		slog.String("role_name", fresh.RoleName))
	return fresh, nil
}

func (cc *CredentialCoordinator) cachedCredentials(accountID string) (AccountCredentials, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	cached, ok := cc.cache[accountID]
	return cached, ok
}

// storeCredentials caches fresh credentials unless a logout cleared the
// session while the fetch was in flight.
func (cc *CredentialCoordinator) storeCredentials(accountID string, creds AccountCredentials) bool {
	if _, ok := cc.identity.LoginState().(NotLoggedIn); ok {
		return false
	}
	cc.mu.Lock()
	cc.cache[accountID] = creds
	cc.mu.Unlock()
	return true
}

// ClearCache drops every cached credential. Callers invoke it on logout
// so no credential outlives the session it was issued under.
func (cc *CredentialCoordinator) ClearCache() {
	cc.mu.Lock()
	cc.cache = make(map[string]AccountCredentials)
	cc.mu.Unlock()
}

// requestFreshCredentials asks the identity center for new credentials,
// resolving the configured role name against the account's discovered
// roles first.
func (cc *CredentialCoordinator) requestFreshCredentials(ctx context.Context, accountID string) (AccountCredentials, error) {
	roleName := cc.defaultRoleName
	if resolved, ok := cc.ResolveActualRoleName(accountID, cc.defaultRoleName); ok {
		roleName = resolved
	}

	cred, err := cc.identity.GetAccountCredentials(ctx, accountID, roleName)
	if err != nil {
		return AccountCredentials{}, err
	}

	result := AccountCredentials{
		AccountID:       accountID,
		RoleName:        roleName,
		AccessKeyID:     cred.AccessKeyID,
		SecretAccessKey: cred.SecretAccessKey,
		SessionToken:    cred.SessionToken,
	}
	if cred.Expiration != nil {
		result.Expiration = *cred.Expiration
	}
	return result, nil
}

// ConfigForAccount builds an AWS config carrying the account's
// credentials, fetching or refreshing them as needed.
func (cc *CredentialCoordinator) ConfigForAccount(ctx context.Context, accountID, region string) (aws.Config, error) {
	creds, err := cc.GetCredentialsForAccount(ctx, accountID)
	if err != nil {
		return aws.Config{}, err
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load config for account %s: %w", accountID, err)
	}
	return cfg, nil
}

// PreloadCredentials fetches credentials for many accounts
// concurrently and returns how many succeeded. Individual failures
// are logged and do not abort the rest.
func (cc *CredentialCoordinator) PreloadCredentials(ctx context.Context, accountIDs []string) int {
	logger := getLogger(cc.config)
	logger.Info("Preloading credentials", slog.Int("accounts", len(accountIDs)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	successful := 0

	for _, accountID := range accountIDs {
		wg.Add(1)
		go func(accountID string) {
			defer wg.Done()
			if _, err := cc.GetCredentialsForAccount(ctx, accountID); err != nil {
				logger.Warn("Failed to preload credentials",
					slog.String("account_id", accountID),
					slog.Any("error", err))
				return
			}
			mu.Lock()
			successful++
			mu.Unlock()
		}(accountID)
	}
	wg.Wait()

	logger.Info("Preloaded credentials",
		slog.Int("successful", successful),
		slog.Int("requested", len(accountIDs)))
	return successful
}

// CleanupExpiredCredentials removes expired cache entries and returns
// how many were removed.
func (cc *CredentialCoordinator) CleanupExpiredCredentials() int {
	logger := getLogger(cc.config)

	cc.mu.Lock()
	defer cc.mu.Unlock()

	removed := 0
	for accountID, creds := range cc.cache {
		if creds.IsExpired() {
			delete(cc.cache, accountID)
			removed++
		}
	}
	if removed > 0 {
		logger.Info("Cleaned up expired credential entries", slog.Int("removed", removed))
	}
	return removed
}

// CacheStats summarizes the credential cache for monitoring.
type CacheStats struct {
	TotalEntries   int
	ValidEntries   int
	ExpiredEntries int
}

// HitRatio returns the share of valid entries as a percentage.
func (s CacheStats) HitRatio() float64 {
	if s.TotalEntries == 0 {
		return 0
	}
	return float64(s.ValidEntries) / float64(s.TotalEntries) * 100
}

// CacheStats reports the current cache contents.
func (cc *CredentialCoordinator) CacheStats() CacheStats {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	stats := CacheStats{TotalEntries: len(cc.cache)}
	for _, creds := range cc.cache {
		if creds.IsExpired() {
			stats.ExpiredEntries++
		} else {
			stats.ValidEntries++
		}
	}
	return stats
}

// ResolveActualRoleName maps a logical role name to the IAM role name
// discovered for the account. Exact matches win; otherwise an
// SSO-generated role containing the logical name is preferred, then any
// role ending with it.
func (cc *CredentialCoordinator) ResolveActualRoleName(accountID, logicalRoleName string) (string, bool) {
	roles := cc.identity.AccountRoles(accountID)
	if len(roles) == 0 {
		return "", false
	}

	for _, role := range roles {
		if role == logicalRoleName {
			return role, true
		}
	}
	for _, role := range roles {
		if strings.HasPrefix(role, ssoRolePrefix) && strings.Contains(role, logicalRoleName) {
			return role, true
		}
	}
	for _, role := range roles {
		if strings.HasSuffix(role, logicalRoleName) {
			return role, true
		}
	}
	return "", false
}

// DiscoveredAccounts lists the account IDs known to the identity
// center.
func (cc *CredentialCoordinator) DiscoveredAccounts() []string {
	accounts := cc.identity.Accounts()
	ids := make([]string, 0, len(accounts))
	for _, account := range accounts {
		ids = append(ids, account.AccountID)
	}
	return ids
}

// DiscoveredRoles lists the roles discovered for an account.
func (cc *CredentialCoordinator) DiscoveredRoles(accountID string) []string {
	return cc.identity.AccountRoles(accountID)
}

// ManagementAccountID returns the management account ID if it was
// identified during login.
func (cc *CredentialCoordinator) ManagementAccountID() string {
	return cc.identity.ManagementAccountID()
}

// IsManagementAccount reports whether the account is the organization's
// management account.
func (cc *CredentialCoordinator) IsManagementAccount(accountID string) bool {
	managementID := cc.identity.ManagementAccountID()
	return managementID != "" && managementID == accountID
}

// DeploymentRoleName returns the discovered deployment service role
// name, or empty if none was found.
func (cc *CredentialCoordinator) DeploymentRoleName() string {
	return cc.identity.DeploymentRoleName()
}

// DeploymentRoleARN constructs the deployment role ARN for an account.
// The role lives in the target account but is not enumerable through
// Identity Center.
func (cc *CredentialCoordinator) DeploymentRoleARN(accountID string) (string, bool) {
	roleName := cc.identity.DeploymentRoleName()
	if roleName == "" {
		return "", false
	}
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName), true
}

// DeploymentValidation describes whether cross-account deployment can
// proceed and what was checked.
type DeploymentValidation struct {
	IsValid                  bool
	AccountAccessible        bool
	RoleAssumable            bool
	DeploymentRoleConfigured bool
	DiscoveredRoles          []string
	DeploymentRole           string
	Errors                   []string
	Warnings                 []string
}

// ValidateDeploymentPrerequisites checks that the target account is
// discoverable, that a role can be assumed in it, and that a deployment
// role is configured. A missing deployment role is a warning, not an
// error.
func (cc *CredentialCoordinator) ValidateDeploymentPrerequisites(ctx context.Context, targetAccountID, region string) DeploymentValidation {
	logger := getLogger(cc.config)

	validation := DeploymentValidation{IsValid: true}

	discovered := cc.DiscoveredAccounts()
	for _, id := range discovered {
		if id == targetAccountID {
			validation.AccountAccessible = true
			break
		}
	}
	if !validation.AccountAccessible {
		validation.IsValid = false
		validation.Errors = append(validation.Errors, fmt.Sprintf(
			"account %s is not accessible through Identity Center (%d accounts available)",
			targetAccountID, len(discovered)))
	}

	validation.DiscoveredRoles = cc.DiscoveredRoles(targetAccountID)
	if len(validation.DiscoveredRoles) == 0 {
		validation.IsValid = false
		validation.Errors = append(validation.Errors, fmt.Sprintf(
			"no roles discovered for account %s", targetAccountID))
	}

	if _, err := cc.GetCredentialsForAccount(ctx, targetAccountID); err != nil {
		validation.IsValid = false
		validation.Errors = append(validation.Errors, fmt.Sprintf(
			"cannot assume role in account %s: %v", targetAccountID, err))
	} else {
		validation.RoleAssumable = true
	}

	if roleName := cc.DeploymentRoleName(); roleName != "" {
		validation.DeploymentRoleConfigured = true
		validation.DeploymentRole = roleName
	} else {
		validation.Warnings = append(validation.Warnings,
			"no deployment role configured; deployments will use the caller's permissions")
	}

	if region == "" {
		validation.IsValid = false
		validation.Errors = append(validation.Errors, "region cannot be empty")
	}

	logger.Info("Deployment validation",
		slog.String("account_id", targetAccountID),
		slog.String("region", region),
		slog.Bool("valid", validation.IsValid),
		slog.Bool("account_accessible", validation.AccountAccessible),
		slog.Bool("role_assumable", validation.RoleAssumable),
		slog.Bool("deployment_role_configured", validation.DeploymentRoleConfigured))
	return validation
}

// CredentialStrategy summarizes how credentials for a target account
// would be obtained.
type CredentialStrategy struct {
	TargetAccountID     string
	BaseRoleName        string
	ActualRoleName      string
	DeploymentRole      string
	IsManagementAccount bool
	DiscoveredRoles     []string
}

// StrategyForAccount reports the credential strategy for an account.
func (cc *CredentialCoordinator) StrategyForAccount(targetAccountID string) CredentialStrategy {
	actualRole := cc.defaultRoleName
	if resolved, ok := cc.ResolveActualRoleName(targetAccountID, cc.defaultRoleName); ok {
		actualRole = resolved
	}

	return CredentialStrategy{
		TargetAccountID:     targetAccountID,
		BaseRoleName:        cc.defaultRoleName,
		ActualRoleName:      actualRole,
		DeploymentRole:      cc.DeploymentRoleName(),
		IsManagementAccount: cc.IsManagementAccount(targetAccountID),
		DiscoveredRoles:     cc.DiscoveredRoles(targetAccountID),
	}
}
