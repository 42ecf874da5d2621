package awsidentity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	federationEndpoint = "https://signin.aws.amazon.com/federation"
	consoleDestination = "https://console.aws.amazon.com/"
)

type federationSession struct {
	SessionID    string `json:"sessionId"`
	SessionKey   string `json:"sessionKey"`
	SessionToken string `json:"sessionToken"`
}

type federationTokenResponse struct {
	SigninToken string `json:"SigninToken"`
}

// getSigninToken exchanges temporary credentials for a federation
// sign-in token.
func getSigninToken(ctx context.Context, creds AccountCredentials) (string, error) {
	session, err := json.Marshal(federationSession{
		SessionID:    creds.AccessKeyID,
		SessionKey:   creds.SecretAccessKey,
		SessionToken: creds.SessionToken,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}

	query := url.Values{}
	query.Set("Action", "getSigninToken")
	query.Set("Session", string(session))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		federationEndpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build signin token request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get signin token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signin token request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read signin token response: %w", err)
	}

	var token federationTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to parse signin token response: %w", err)
	}
	if token.SigninToken == "" {
		return "", fmt.Errorf("no signin token in response")
	}
	return token.SigninToken, nil
}

// consoleSigninURL builds the federated login URL for a sign-in token.
func consoleSigninURL(signinToken string) string {
	query := url.Values{}
	query.Set("Action", "login")
	query.Set("Destination", consoleDestination)
	query.Set("SigninToken", signinToken)
	return federationEndpoint + "?" + query.Encode()
}

// OpenConsole opens the AWS management console in a browser for the
// given account and role, fetching credentials first if needed.
func (ic *IdentityCenter) OpenConsole(ctx context.Context, accountID, roleName string) error {
	logger := getLogger(ic.config)

	cred, err := ic.GetAccountCredentials(ctx, accountID, roleName)
	if err != nil {
		return err
	}

	signinToken, err := getSigninToken(ctx, AccountCredentials{
		AccountID:       accountID,
		RoleName:        roleName,
		AccessKeyID:     cred.AccessKeyID,
		SecretAccessKey: cred.SecretAccessKey,
		SessionToken:    cred.SessionToken,
	})
	if err != nil {
		return err
	}

	ic.mu.RLock()
	browser := ic.browser
	ic.mu.RUnlock()

	if err := browser.OpenURL(consoleSigninURL(signinToken)); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	logger.Info("Opened AWS console",
		slog.String("account_id", accountID),
		slog.String("role_name", roleName))
	return nil
}
