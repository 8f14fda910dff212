package auth

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is matched by every authentication failure
var ErrUnauthenticated = errors.New("unauthenticated")

var (
	// ErrMissingToken means the request carried no bearer token
	ErrMissingToken = fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)

	// ErrEmailNotVerified refuses to attach a new external identity to an
	// existing account matched only by an unverified email address
	ErrEmailNotVerified = fmt.Errorf("%w: email not verified", ErrUnauthenticated)

	errNoExpiry = errors.New("token carries no expiry")
)

// VerificationError is returned when the identity provider could not
// verify a token within the allowed attempts.
type VerificationError struct {
	Attempts int
	Err      error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("identity verification failed after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap exposes both ErrUnauthenticated and the last attempt's error
func (e *VerificationError) Unwrap() []error {
	return []error{ErrUnauthenticated, e.Err}
}

// IsUnauthenticated reports whether err should be answered with 401
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}
