package awsidentity

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

const (
	// Expiry buffer applied to every credential check (5 minutes)
	defaultExpiryWindow = 5 * time.Minute
)

// Credential holds a set of temporary AWS credentials obtained through
// Identity Center. Credentials are never persisted; they live in memory
// only and are cleared on logout.
type Credential struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Expiration is nil when the issuer did not report one; such
	// credentials are always treated as expired.
	Expiration *time.Time
}

// IsExpired reports whether the credential is expired or will expire
// within the 5-minute safety buffer. A credential without an expiration
// is always considered expired.
func (c *Credential) IsExpired() bool {
	if c == nil || c.Expiration == nil {
		return true
	}
	return !time.Now().Add(defaultExpiryWindow).Before(*c.Expiration)
}

// LogValue implements slog.LogValuer so that credentials can appear in
// structured logs without ever exposing the secret key or session token.
func (c *Credential) LogValue() slog.Value {
	if c == nil {
		return slog.StringValue("<nil>")
	}
	attrs := []slog.Attr{slog.String("access_key_id", c.AccessKeyID)}
	if c.Expiration != nil {
		attrs = append(attrs, slog.Time("expiration", *c.Expiration))
	}
	return slog.GroupValue(attrs...)
}

// Account is an AWS account reachable through Identity Center. RoleName
// is the currently active role for the account; Credentials is populated
// lazily when credentials for that role are first fetched.
type Account struct {
	AccountID    string
	AccountName  string
	EmailAddress string
	RoleName     string
	Credentials  *Credential
}

// DeviceAuthorizationData carries the state of one OAuth 2.0 device
// authorization attempt (RFC 8628). DeviceCode and ClientSecret are
// secrets and must never be surfaced to the user.
type DeviceAuthorizationData struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresIn               int32
	Interval                int32
	StartTime               time.Time
	ClientID                string
	ClientSecret            string
}

// Expired reports whether the authorization window has elapsed. Callers
// must treat an expired window as a failed login.
func (d *DeviceAuthorizationData) Expired() bool {
	if d == nil {
		return true
	}
	return time.Now().After(d.StartTime.Add(time.Duration(d.ExpiresIn) * time.Second))
}

// LogValue keeps the device code and client secret out of logs.
func (d *DeviceAuthorizationData) LogValue() slog.Value {
	if d == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("user_code", d.UserCode),
		slog.String("verification_uri", d.VerificationURI),
		slog.Time("start_time", d.StartTime),
	)
}

// InfrastructureInfo is derived from a deployment role's inline policy.
// It is recomputed wholesale on every extraction, never patched.
type InfrastructureInfo struct {
	TableARN           string
	TableRegion        string
	TableAccount       string
	TableName          string
	DeploymentRoleARNs []string
	SourceRole         string
}

// AccountCredentials is the per-account credential record managed by the
// CredentialCoordinator cache.
type AccountCredentials struct {
	AccountID       string
	RoleName        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}

// IsExpired reports whether the credentials are within the 5-minute
// buffer of their expiration.
func (c AccountCredentials) IsExpired() bool {
	return !time.Now().Add(defaultExpiryWindow).Before(c.Expiration)
}

// ToAWSCredentials converts the record into SDK credentials for use with
// a static credentials provider.
func (c AccountCredentials) ToAWSCredentials() aws.Credentials {
	return aws.Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		CanExpire:       true,
		Expires:         c.Expiration,
		Source:          "IdentityCenter",
	}
}

// Error types

// AuthenticationNeededError indicates an operation required an active
// access token but none was available.
type AuthenticationNeededError struct {
	Message string
}

func (e *AuthenticationNeededError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "not logged in to Identity Center"
}

// InvalidStateError indicates an operation was invoked outside the login
// state it requires.
type InvalidStateError struct {
	Op    string
	State string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s requires a different login state (current: %s)", e.Op, e.State)
}

// AccountNotFoundError indicates an account id that is not in the
// discovered account list.
type AccountNotFoundError struct {
	AccountID string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %s not found in available accounts", e.AccountID)
}

// PolicyParseError indicates a policy document that could not be decoded
// or did not match the expected patterns.
type PolicyParseError struct {
	RoleName string
	Message  string
}

func (e *PolicyParseError) Error() string {
	return fmt.Sprintf("policy for role %s: %s", e.RoleName, e.Message)
}

// InvalidConfigError indicates bad coordinator configuration input.
type InvalidConfigError struct {
	Message string
}

func (e *InvalidConfigError) Error() string {
	return "invalid configuration: " + e.Message
}
