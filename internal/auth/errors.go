package auth

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the authentication core; the HTTP layer maps them to
// status codes. Wrong password and unknown account share one error so callers
// cannot probe which emails exist.
var (
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrDuplicateAccount         = errors.New("email already registered")
	ErrTwoFactorInvalid         = errors.New("invalid or expired two-factor code")
	ErrEmailConfirmationInvalid = errors.New("invalid email confirmation")
)

// LockedOutError denies authentication while an account lockout is in effect.
type LockedOutError struct {
	Until time.Time
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("account locked out until %s", e.Until.UTC().Format(time.RFC3339))
}

// RetryAfter returns how long the caller must wait, never negative.
func (e *LockedOutError) RetryAfter(now time.Time) time.Duration {
	d := e.Until.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// CreationRejectedError reports a registration rejected by account policy
// (e.g. a weak password). The reason is passed through to the caller's form
// layer.
type CreationRejectedError struct {
	Reason string
}

func (e *CreationRejectedError) Error() string {
	return "account creation rejected: " + e.Reason
}
