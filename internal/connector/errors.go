package connector

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by Session before Init has succeeded.
var ErrNotInitialized = errors.New("connector not initialized")

// AuthenticationError means the identity provider rejected a login.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Message
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// CredentialsUnavailableError means there is no usable session to derive
// remote credentials from.
type CredentialsUnavailableError struct {
	Reason string
	Err    error
}

func (e *CredentialsUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credentials unavailable: %s: %v", e.Reason, e.Err)
	}
	return "credentials unavailable: " + e.Reason
}

func (e *CredentialsUnavailableError) Unwrap() error { return e.Err }
