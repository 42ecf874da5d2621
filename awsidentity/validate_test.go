package awsidentity

import "testing"

func TestValidatePortalURL(t *testing.T) {
	tests := []struct {
		name      string
		portalURL string
		wantErr   bool
	}{
		{"valid portal URL", "https://my-org.awsapps.com/start", false},
		{"valid without start suffix", "https://my-org.awsapps.com", false},
		{"empty", "", true},
		{"http scheme", "http://my-org.awsapps.com/start", true},
		{"no host", "https://", true},
		{"not a URL", "://bad url", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePortalURL(tt.portalURL)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePortalURL(%q) error = %v, wantErr %v", tt.portalURL, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRegion(t *testing.T) {
	tests := []struct {
		region  string
		wantErr bool
	}{
		{"us-east-1", false},
		{"eu-west-2", false},
		{"ap-southeast-3", false},
		{"us-gov-west-1", false},
		{"", true},
		{"useast1", true},
		{"US-EAST-1", true},
		{"us-east-", true},
	}

	for _, tt := range tests {
		err := ValidateRegion(tt.region)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRegion(%q) error = %v, wantErr %v", tt.region, err, tt.wantErr)
		}
	}
}

func TestValidateAccountID(t *testing.T) {
	tests := []struct {
		accountID string
		wantErr   bool
	}{
		{"123456789012", false},
		{"1234-5678-9012", false}, // Dashes are stripped
		{"1234 5678 9012", false}, // Spaces are stripped
		{"", true},
		{"12345678901", true},
		{"1234567890123", true},
		{"12345678901a", true},
	}

	for _, tt := range tests {
		err := ValidateAccountID(tt.accountID)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateAccountID(%q) error = %v, wantErr %v", tt.accountID, err, tt.wantErr)
		}
	}
}

func TestValidateRoleName(t *testing.T) {
	tooLong := make([]byte, 65)
	for i := range tooLong {
		tooLong[i] = 'a'
	}

	tests := []struct {
		roleName string
		wantErr  bool
	}{
		{"myrole", false},
		{"AWSReservedSSO_myrole_37838b6bb020f9ca", false},
		{"role+=,.@_-name", false},
		{"", true},
		{string(tooLong), true},
		{"role/with/slashes", true},
		{"role with spaces", true},
	}

	for _, tt := range tests {
		err := ValidateRoleName(tt.roleName)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRoleName(%q) error = %v, wantErr %v", tt.roleName, err, tt.wantErr)
		}
	}
}

func TestFormatAccountID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123456789012", "123456789012"},
		{"1234-5678-9012", "123456789012"},
		{"1234 5678 9012", "123456789012"},
		{"abc", ""},
	}

	for _, tt := range tests {
		if got := formatAccountID(tt.in); got != tt.want {
			t.Errorf("formatAccountID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeStartURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://my-org.awsapps.com/start", "https://my-org.awsapps.com/start"},
		{"https://my-org.awsapps.com", "https://my-org.awsapps.com/start"},
		{"https://my-org.awsapps.com/", "https://my-org.awsapps.com/start"},
	}

	for _, tt := range tests {
		if got := normalizeStartURL(tt.in); got != tt.want {
			t.Errorf("normalizeStartURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
