package awsidentity

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// AWS account ID (12 digits)
	accountIDRegex = regexp.MustCompile(`^\d{12}$`)
	// AWS region pattern like us-east-1, eu-west-2
	regionRegex = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d+$`)
	// Role name (alphanumeric, plus =,.@_- characters)
	roleNameRegex = regexp.MustCompile(`^[\w+=,.@_-]+$`)
)

// ValidatePortalURL validates an Identity Center portal URL.
func ValidatePortalURL(portalURL string) error {
	if portalURL == "" {
		return &InvalidConfigError{Message: "portal URL cannot be empty"}
	}

	parsed, err := url.Parse(portalURL)
	if err != nil {
		return &InvalidConfigError{Message: fmt.Sprintf("invalid portal URL format: %v", err)}
	}
	if parsed.Scheme != "https" {
		return &InvalidConfigError{Message: "portal URL must use HTTPS"}
	}
	if parsed.Host == "" {
		return &InvalidConfigError{Message: "portal URL must have a valid host"}
	}
	return nil
}

// ValidateRegion validates an AWS region name.
func ValidateRegion(region string) error {
	if region == "" {
		return &InvalidConfigError{Message: "region cannot be empty"}
	}
	if !regionRegex.MatchString(region) {
		return &InvalidConfigError{Message: fmt.Sprintf("invalid region format: %s", region)}
	}
	return nil
}

// ValidateAccountID validates a 12-digit AWS account ID. Dashes and
// spaces are tolerated and stripped before checking.
func ValidateAccountID(accountID string) error {
	if accountID == "" {
		return &InvalidConfigError{Message: "account ID cannot be empty"}
	}
	if !accountIDRegex.MatchString(formatAccountID(accountID)) {
		return &InvalidConfigError{Message: fmt.Sprintf("invalid account ID format: %s (must be 12 digits)", accountID)}
	}
	return nil
}

// ValidateRoleName validates an IAM role name.
func ValidateRoleName(roleName string) error {
	if roleName == "" {
		return &InvalidConfigError{Message: "role name cannot be empty"}
	}
	if len(roleName) > 64 {
		return &InvalidConfigError{Message: fmt.Sprintf("role name too long: %d characters (max 64)", len(roleName))}
	}
	if !roleNameRegex.MatchString(roleName) {
		return &InvalidConfigError{Message: fmt.Sprintf("invalid role name format: %s", roleName)}
	}
	return nil
}

// formatAccountID strips everything but digits from an account ID.
func formatAccountID(accountID string) string {
	var b strings.Builder
	for _, r := range accountID {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeStartURL derives the exact start URL used in the device flow
// from the configured portal URL.
func normalizeStartURL(portalURL string) string {
	if strings.Contains(portalURL, "/start") {
		return portalURL
	}
	return strings.TrimRight(portalURL, "/") + "/start"
}
