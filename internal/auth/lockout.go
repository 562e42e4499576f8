package auth

import (
	"time"

	"identity-gateway/internal/account/domain"
)

// LockoutPolicy is the deployment-level lockout configuration. Enabled false
// reproduces the never-lock-out variant; both are supported.
type LockoutPolicy struct {
	Enabled     bool
	MaxAttempts int
	Span        time.Duration
}

// LockedUntil reports whether the account is locked out at now, and until when.
// An expired lockout is treated as no lockout; the stale timestamp is cleared
// by the next successful authentication.
func LockedUntil(a *domain.Account, now time.Time) (time.Time, bool) {
	if !a.LockoutEnabled || a.LockoutUntil == nil {
		return time.Time{}, false
	}
	if now.Before(*a.LockoutUntil) {
		return *a.LockoutUntil, true
	}
	return time.Time{}, false
}

// ShouldLock decides whether a failed attempt that brought the counter to
// count triggers a lockout under the policy.
func (p LockoutPolicy) ShouldLock(count int) bool {
	return p.Enabled && p.MaxAttempts > 0 && count >= p.MaxAttempts
}

// LockUntil returns the lockout deadline for a lock triggered at now.
func (p LockoutPolicy) LockUntil(now time.Time) time.Time {
	return now.Add(p.Span)
}
