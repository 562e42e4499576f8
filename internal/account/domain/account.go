// Package domain holds the account record the authentication core operates on.
package domain

import "time"

// Account is a registered login identity. The email is unique and compared
// case-insensitively on lookup. PasswordHash and TOTPSecret are opaque to the
// core; verification goes through the security collaborators.
type Account struct {
	ID            string
	Email         string
	PasswordHash  string
	SecurityStamp string // rotated on credential change; revokes older sessions
	EmailConfirmed bool

	// Lockout state, mutated on every failed password attempt.
	LockoutEnabled bool
	LockoutUntil   *time.Time // nil when no lockout is in effect
	FailedAttempts int

	// Two-factor enrollment.
	TwoFactorEnabled bool
	TOTPSecret       string // base32; empty when not enrolled

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecoveryCode is a single-use second-factor fallback code. Only the hash is
// stored; a consumed code can never grant again.
type RecoveryCode struct {
	ID        string
	AccountID string
	CodeHash  string
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}
