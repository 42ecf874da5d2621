package awsidentity

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestCredentialIsExpired(t *testing.T) {
	future := time.Now().Add(1 * time.Hour)
	past := time.Now().Add(-1 * time.Hour)
	soon := time.Now().Add(2 * time.Minute) // Within the 5-minute buffer

	valid := &Credential{AccessKeyID: "AKIA", SecretAccessKey: "secret", Expiration: &future}
	if valid.IsExpired() {
		t.Error("Credential expiring in an hour should not be expired")
	}

	expired := &Credential{AccessKeyID: "AKIA", SecretAccessKey: "secret", Expiration: &past}
	if !expired.IsExpired() {
		t.Error("Credential expired an hour ago should be expired")
	}

	expiringSoon := &Credential{AccessKeyID: "AKIA", SecretAccessKey: "secret", Expiration: &soon}
	if !expiringSoon.IsExpired() {
		t.Error("Credential expiring within the buffer should be expired")
	}

	var nilCred *Credential
	if !nilCred.IsExpired() {
		t.Error("Nil credential should be expired")
	}

	noExpiration := &Credential{AccessKeyID: "AKIA", SecretAccessKey: "secret"}
	if !noExpiration.IsExpired() {
		t.Error("Credential without expiration should be expired")
	}
}

func TestCredentialLogValueRedactsSecrets(t *testing.T) {
	expiration := time.Now().Add(1 * time.Hour)
	cred := &Credential{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "super-secret-key",
		SessionToken:    "super-secret-token",
		Expiration:      &expiration,
	}

	var sb strings.Builder
	logger := slog.New(slog.NewTextHandler(&sb, nil))
	logger.Info("credential", slog.Any("credential", cred))

	logged := sb.String()
	if strings.Contains(logged, "super-secret-key") {
		t.Error("Secret access key leaked into log output")
	}
	if strings.Contains(logged, "super-secret-token") {
		t.Error("Session token leaked into log output")
	}
	if !strings.Contains(logged, "AKIAEXAMPLE") {
		t.Error("Access key id should appear in log output")
	}
}

func TestDeviceAuthorizationDataExpired(t *testing.T) {
	fresh := &DeviceAuthorizationData{
		StartTime: time.Now(),
		ExpiresIn: 600,
	}
	if fresh.Expired() {
		t.Error("Fresh authorization window should not be expired")
	}

	stale := &DeviceAuthorizationData{
		StartTime: time.Now().Add(-11 * time.Minute),
		ExpiresIn: 600,
	}
	if !stale.Expired() {
		t.Error("Authorization window past its lifetime should be expired")
	}
}

func TestDeviceAuthorizationDataLogValueRedactsSecrets(t *testing.T) {
	auth := &DeviceAuthorizationData{
		DeviceCode:   "device-code-secret",
		UserCode:     "ABCD-EFGH",
		ClientSecret: "client-secret-value",
	}

	var sb strings.Builder
	logger := slog.New(slog.NewTextHandler(&sb, nil))
	logger.Info("auth", slog.Any("auth", auth))

	logged := sb.String()
	if strings.Contains(logged, "device-code-secret") {
		t.Error("Device code leaked into log output")
	}
	if strings.Contains(logged, "client-secret-value") {
		t.Error("Client secret leaked into log output")
	}
	if !strings.Contains(logged, "ABCD-EFGH") {
		t.Error("User code should appear in log output")
	}
}

func TestAccountCredentialsExpiration(t *testing.T) {
	base := AccountCredentials{
		AccountID:       "123456789012",
		RoleName:        "myrole",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
		SessionToken:    "token",
	}

	valid := base
	valid.Expiration = time.Now().Add(1 * time.Hour)
	if valid.IsExpired() {
		t.Error("Credentials expiring in an hour should not be expired")
	}

	expired := base
	expired.Expiration = time.Now().Add(-1 * time.Hour)
	if !expired.IsExpired() {
		t.Error("Credentials expired an hour ago should be expired")
	}

	// Within the 5-minute buffer
	expiringSoon := base
	expiringSoon.Expiration = time.Now().Add(2 * time.Minute)
	if !expiringSoon.IsExpired() {
		t.Error("Credentials expiring within the buffer should be expired")
	}
}

func TestAccountCredentialsToAWSCredentials(t *testing.T) {
	creds := AccountCredentials{
		AccountID:       "123456789012",
		RoleName:        "myrole",
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret-value",
		SessionToken:    "token-value",
		Expiration:      time.Now().Add(1 * time.Hour),
	}

	awsCreds := creds.ToAWSCredentials()
	if awsCreds.AccessKeyID != creds.AccessKeyID {
		t.Errorf("Expected access key %s, got %s", creds.AccessKeyID, awsCreds.AccessKeyID)
	}
	if awsCreds.SecretAccessKey != creds.SecretAccessKey {
		t.Errorf("Expected secret key to round-trip unchanged")
	}
	if awsCreds.SessionToken != creds.SessionToken {
		t.Errorf("Expected session token to round-trip unchanged")
	}
}
