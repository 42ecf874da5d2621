package awsidentity

import "testing"

func TestLoginStateNames(t *testing.T) {
	tests := []struct {
		state LoginState
		want  string
	}{
		{NotLoggedIn{}, "NotLoggedIn"},
		{DeviceAuthorization{}, "DeviceAuthorization"},
		{LoggedIn{}, "LoggedIn"},
		{LoginFailed{Message: "boom"}, "LoginFailed"},
	}

	for _, tt := range tests {
		if got := tt.state.Name(); got != tt.want {
			t.Errorf("Name() = %q, want %q", got, tt.want)
		}
	}
}
