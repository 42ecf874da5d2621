package awsidentity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCompleteDeviceAuthorizationRequiresStartedFlow(t *testing.T) {
	ic := newTestIdentityCenter(t)

	err := ic.CompleteDeviceAuthorization(context.Background())
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("Expected InvalidStateError, got %v", err)
	}
}

func TestCompleteDeviceAuthorizationMissingRegistration(t *testing.T) {
	ic := newTestIdentityCenter(t)

	ic.mu.Lock()
	ic.loginState = DeviceAuthorization{Data: DeviceAuthorizationData{
		DeviceCode: "device-code",
		StartTime:  time.Now(),
		ExpiresIn:  600,
	}}
	ic.mu.Unlock()

	if err := ic.CompleteDeviceAuthorization(context.Background()); err == nil {
		t.Fatal("Expected error for missing client registration")
	}
	if _, ok := ic.LoginState().(LoginFailed); !ok {
		t.Errorf("Expected LoginFailed after failure, got %s", ic.LoginState().Name())
	}
}

func TestCompleteDeviceAuthorizationExpiredWindow(t *testing.T) {
	ic := newTestIdentityCenter(t)

	ic.mu.Lock()
	ic.loginState = DeviceAuthorization{Data: DeviceAuthorizationData{
		DeviceCode:   "device-code",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		StartTime:    time.Now().Add(-20 * time.Minute),
		ExpiresIn:    600,
	}}
	ic.mu.Unlock()

	if err := ic.CompleteDeviceAuthorization(context.Background()); err == nil {
		t.Fatal("Expected error for expired authorization window")
	}
	if _, ok := ic.LoginState().(LoginFailed); !ok {
		t.Errorf("Expected LoginFailed after failure, got %s", ic.LoginState().Name())
	}
}

func TestFailLoginRecordsMessage(t *testing.T) {
	ic := newTestIdentityCenter(t)

	cause := errors.New("polling gave up")
	if err := ic.failLogin(cause); !errors.Is(err, cause) {
		t.Error("failLogin should return the original error")
	}

	failed, ok := ic.LoginState().(LoginFailed)
	if !ok {
		t.Fatalf("Expected LoginFailed, got %s", ic.LoginState().Name())
	}
	if failed.Message != "polling gave up" {
		t.Errorf("Unexpected failure message: %s", failed.Message)
	}
}
