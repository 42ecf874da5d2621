package awsidentity

// LoginState is the authentication state machine for the Identity Center
// login flow. Exactly one variant is active at a time and it is the
// single source of truth for what operations a caller may request next.
//
//	NotLoggedIn -> DeviceAuthorization -> LoggedIn
//	     |               |                   |
//	     v               v                   v
//	LoginFailed <-- LoginFailed <------ LoginFailed
type LoginState interface {
	loginState()
	// Name returns a short label for diagnostics and error messages.
	Name() string
}

// NotLoggedIn is the initial state; no authentication has been attempted
// or a previous session was logged out.
type NotLoggedIn struct{}

func (NotLoggedIn) loginState() {}

func (NotLoggedIn) Name() string { return "NotLoggedIn" }

// DeviceAuthorization means a device flow is in progress and the
// application is waiting for the user to authorize in a browser.
type DeviceAuthorization struct {
	Data DeviceAuthorizationData
}

func (DeviceAuthorization) loginState() {}

func (DeviceAuthorization) Name() string { return "DeviceAuthorization" }

// LoggedIn means authentication completed and default-role credentials
// have been obtained at least once.
type LoggedIn struct{}

func (LoggedIn) loginState() {}

func (LoggedIn) Name() string { return "LoggedIn" }

// LoginFailed carries the canonical failure message for the UI. Secret
// values are never interpolated into the message.
type LoginFailed struct {
	Message string
}

func (LoginFailed) loginState() {}

func (LoginFailed) Name() string { return "LoginFailed" }
