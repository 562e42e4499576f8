// Package domain holds the pending-login challenge created when a password
// check succeeds but the account requires a second factor.
package domain

import "time"

// Challenge is the externally persisted partial-authentication state between
// the password step and the second-factor submission. It is keyed by an opaque
// random token handed to the caller, survives process restarts, and is deleted
// once redeemed or expired.
type Challenge struct {
	Token     string
	AccountID string
	ReturnURL string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the challenge can no longer be redeemed.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
