package awsidentity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestIdentityCenter(t *testing.T) *IdentityCenter {
	t.Helper()
	ic, err := NewIdentityCenter("https://test.awsapps.com/start", "myrole", "us-east-1", nil)
	if err != nil {
		t.Fatalf("NewIdentityCenter failed: %v", err)
	}
	return ic
}

func TestNewIdentityCenterValidation(t *testing.T) {
	tests := []struct {
		name      string
		portalURL string
		roleName  string
		region    string
	}{
		{"bad portal URL", "http://insecure.example.com", "myrole", "us-east-1"},
		{"empty role", "https://test.awsapps.com/start", "", "us-east-1"},
		{"bad region", "https://test.awsapps.com/start", "myrole", "nowhere"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIdentityCenter(tt.portalURL, tt.roleName, tt.region, nil)
			if err == nil {
				t.Error("Expected validation error")
			}
			var configErr *InvalidConfigError
			if !errors.As(err, &configErr) {
				t.Errorf("Expected InvalidConfigError, got %T", err)
			}
		})
	}
}

func TestInitialStateIsNotLoggedIn(t *testing.T) {
	ic := newTestIdentityCenter(t)
	if _, ok := ic.LoginState().(NotLoggedIn); !ok {
		t.Errorf("Expected NotLoggedIn, got %s", ic.LoginState().Name())
	}
}

func TestConfirmLoginRequiresDeviceAuthorization(t *testing.T) {
	ic := newTestIdentityCenter(t)

	err := ic.ConfirmLogin()
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("Expected InvalidStateError, got %v", err)
	}

	ic.mu.Lock()
	ic.loginState = DeviceAuthorization{}
	ic.mu.Unlock()

	if err := ic.ConfirmLogin(); err != nil {
		t.Fatalf("ConfirmLogin failed: %v", err)
	}
	if _, ok := ic.LoginState().(LoggedIn); !ok {
		t.Errorf("Expected LoggedIn, got %s", ic.LoginState().Name())
	}

	// Confirming twice is an error
	if err := ic.ConfirmLogin(); err == nil {
		t.Error("Expected error confirming from LoggedIn state")
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	ic := newTestIdentityCenter(t)

	expiration := time.Now().Add(1 * time.Hour)
	ic.mu.Lock()
	ic.loginState = LoggedIn{}
	ic.accessToken = "token"
	ic.tokenExpiration = &expiration
	ic.accounts = []Account{{AccountID: "123456789012", AccountName: "dev"}}
	ic.availableRoles = map[string][]string{"123456789012": {"myrole"}}
	ic.defaultRoleCredentials = &Credential{AccessKeyID: "AKIA", Expiration: &expiration}
	ic.managementAccountID = "123456789012"
	ic.infrastructureInfo = &InfrastructureInfo{TableName: "myapp"}
	ic.deploymentRoleName = "deploy-role"
	ic.mu.Unlock()

	ic.Logout()

	if _, ok := ic.LoginState().(NotLoggedIn); !ok {
		t.Errorf("Expected NotLoggedIn after logout, got %s", ic.LoginState().Name())
	}
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	if ic.accessToken != "" {
		t.Error("Access token not cleared")
	}
	if ic.tokenExpiration != nil {
		t.Error("Token expiration not cleared")
	}
	if len(ic.accounts) != 0 {
		t.Error("Accounts not cleared")
	}
	if len(ic.availableRoles) != 0 {
		t.Error("Available roles not cleared")
	}
	if ic.defaultRoleCredentials != nil {
		t.Error("Default role credentials not cleared")
	}
	if ic.managementAccountID != "" {
		t.Error("Management account ID not cleared")
	}
	if ic.infrastructureInfo != nil {
		t.Error("Infrastructure info not cleared")
	}
	if ic.deploymentRoleName != "" {
		t.Error("Deployment role name not cleared")
	}
}

func TestUpdateAccount(t *testing.T) {
	ic := newTestIdentityCenter(t)

	ic.UpdateAccount(Account{AccountID: "123456789012", AccountName: "dev"})
	ic.UpdateAccount(Account{AccountID: "234567890123", AccountName: "prod"})
	if len(ic.Accounts()) != 2 {
		t.Fatalf("Expected 2 accounts, got %d", len(ic.Accounts()))
	}

	// Same ID replaces rather than appends
	ic.UpdateAccount(Account{AccountID: "123456789012", AccountName: "renamed"})
	accounts := ic.Accounts()
	if len(accounts) != 2 {
		t.Fatalf("Expected 2 accounts after replace, got %d", len(accounts))
	}
	if accounts[0].AccountName != "renamed" {
		t.Errorf("Expected account name renamed, got %s", accounts[0].AccountName)
	}
}

func TestAccountsReturnsCopy(t *testing.T) {
	ic := newTestIdentityCenter(t)
	ic.UpdateAccount(Account{AccountID: "123456789012", AccountName: "dev"})

	accounts := ic.Accounts()
	accounts[0].AccountName = "mutated"

	if ic.Accounts()[0].AccountName != "dev" {
		t.Error("Mutating the returned slice changed internal state")
	}
}

func TestGetAccountCredentialsRequiresToken(t *testing.T) {
	ic := newTestIdentityCenter(t)
	ic.UpdateAccount(Account{AccountID: "123456789012"})

	_, err := ic.GetAccountCredentials(context.Background(), "123456789012", "myrole")
	var authErr *AuthenticationNeededError
	if !errors.As(err, &authErr) {
		t.Errorf("Expected AuthenticationNeededError, got %v", err)
	}
}

func TestGetAccountCredentialsUnknownAccount(t *testing.T) {
	ic := newTestIdentityCenter(t)
	ic.mu.Lock()
	ic.accessToken = "token"
	ic.accounts = []Account{{AccountID: "123456789012"}}
	ic.mu.Unlock()

	_, err := ic.GetAccountCredentials(context.Background(), "999999999999", "myrole")
	var notFound *AccountNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected AccountNotFoundError, got %v", err)
	}

	// The known account must be untouched
	if ic.Accounts()[0].Credentials != nil {
		t.Error("Failed lookup mutated an unrelated account")
	}
}

func TestAreCredentialsExpired(t *testing.T) {
	ic := newTestIdentityCenter(t)

	if !ic.AreCredentialsExpired("123456789012") {
		t.Error("Unknown account should count as expired")
	}

	ic.UpdateAccount(Account{AccountID: "123456789012"})
	if !ic.AreCredentialsExpired("123456789012") {
		t.Error("Account without credentials should count as expired")
	}

	future := time.Now().Add(1 * time.Hour)
	ic.UpdateAccount(Account{
		AccountID:   "123456789012",
		Credentials: &Credential{AccessKeyID: "AKIA", Expiration: &future},
	})
	if ic.AreCredentialsExpired("123456789012") {
		t.Error("Account with fresh credentials should not be expired")
	}
}

func TestGetDefaultRoleCredentialsUsesCache(t *testing.T) {
	ic := newTestIdentityCenter(t)

	future := time.Now().Add(1 * time.Hour)
	ic.mu.Lock()
	ic.defaultRoleCredentials = &Credential{AccessKeyID: "AKIA", SecretAccessKey: "secret", Expiration: &future}
	ic.mu.Unlock()

	cred, err := ic.GetDefaultRoleCredentials(context.Background())
	if err != nil {
		t.Fatalf("GetDefaultRoleCredentials failed: %v", err)
	}
	if cred.AccessKeyID != "AKIA" || cred.SecretAccessKey != "secret" {
		t.Error("Expected the cached credential values to be returned")
	}

	// The caller gets a copy; mutating it must not corrupt the cache
	cred.SecretAccessKey = "mutated"
	again, err := ic.GetDefaultRoleCredentials(context.Background())
	if err != nil {
		t.Fatalf("GetDefaultRoleCredentials failed: %v", err)
	}
	if again.SecretAccessKey != "secret" {
		t.Error("Mutating the returned credential changed the cached copy")
	}
}

func TestSelectDefaultRoleAccount(t *testing.T) {
	tests := []struct {
		name         string
		candidates   []string
		managementID string
		want         string
	}{
		{"first candidate without management bias", []string{"111111111111", "222222222222"}, "", "111111111111"},
		{"management account preferred", []string{"111111111111", "222222222222"}, "222222222222", "222222222222"},
		{"management account not a candidate", []string{"111111111111", "222222222222"}, "333333333333", "111111111111"},
		{"single candidate", []string{"111111111111"}, "111111111111", "111111111111"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selectDefaultRoleAccount(tt.candidates, tt.managementID); got != tt.want {
				t.Errorf("selectDefaultRoleAccount(%v, %q) = %q, want %q",
					tt.candidates, tt.managementID, got, tt.want)
			}
		})
	}
}

func TestStoreDefaultCredentialsRefusedAfterLogout(t *testing.T) {
	ic := newTestIdentityCenter(t)

	future := time.Now().Add(1 * time.Hour)
	cred := &Credential{AccessKeyID: "AKIA", SecretAccessKey: "secret", Expiration: &future}

	// No session: a fetch that outlived a logout must not write back
	if ic.storeDefaultCredentials(cred) {
		t.Error("Store should be refused without an active session")
	}
	ic.mu.RLock()
	cleared := ic.defaultRoleCredentials == nil
	ic.mu.RUnlock()
	if !cleared {
		t.Error("Refused store still wrote the credential")
	}

	ic.mu.Lock()
	ic.accessToken = "token"
	ic.mu.Unlock()

	if !ic.storeDefaultCredentials(cred) {
		t.Error("Store should succeed with an active session")
	}
	ic.mu.RLock()
	stored := ic.defaultRoleCredentials
	ic.mu.RUnlock()
	if stored == nil || stored.AccessKeyID != "AKIA" {
		t.Error("Credential not stored")
	}
	if stored == cred {
		t.Error("Cache must hold its own copy, not the caller's pointer")
	}
}

func TestGetDefaultRoleCredentialsNoCandidates(t *testing.T) {
	ic := newTestIdentityCenter(t)

	ic.mu.Lock()
	ic.accounts = []Account{{AccountID: "123456789012"}}
	ic.availableRoles = map[string][]string{"123456789012": {"otherrole"}}
	ic.mu.Unlock()

	if _, err := ic.GetDefaultRoleCredentials(context.Background()); err == nil {
		t.Error("Expected error when no account lists the default role")
	}
}

func TestInfrastructureInfoReturnsCopy(t *testing.T) {
	ic := newTestIdentityCenter(t)

	ic.mu.Lock()
	ic.infrastructureInfo = &InfrastructureInfo{
		TableName:          "myapp",
		DeploymentRoleARNs: []string{"arn:aws:iam::123456789012:role/deploy"},
	}
	ic.mu.Unlock()

	info := ic.InfrastructureInfo()
	info.TableName = "mutated"
	info.DeploymentRoleARNs[0] = "mutated"

	fresh := ic.InfrastructureInfo()
	if fresh.TableName != "myapp" {
		t.Error("Mutating the returned struct changed internal state")
	}
	if fresh.DeploymentRoleARNs[0] != "arn:aws:iam::123456789012:role/deploy" {
		t.Error("Mutating the returned slice changed internal state")
	}
}
