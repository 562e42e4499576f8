package repository

import (
	"context"
	"errors"
	"time"

	"identity-gateway/internal/account/domain"
)

// ErrDuplicateEmail is returned by Create when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// Repository is the account store contract consumed by the authentication core.
//
// Lookups return (nil, nil) for a missing account, never a sentinel object;
// errors are reserved for storage failures. IncrementFailedAttempts must
// serialize concurrent failures at the storage layer so none are lost.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error

	// IncrementFailedAttempts atomically bumps the failed-attempt counter and
	// returns the new count.
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	// ResetLockout clears the counter and any lockout-until timestamp.
	ResetLockout(ctx context.Context, id string) error
	// SetLockout records a lockout until the given time and resets the
	// failed-attempt counter to zero.
	SetLockout(ctx context.Context, id string, until time.Time) error

	UpdateSecurityStamp(ctx context.Context, id, stamp string) error
	SetEmailConfirmed(ctx context.Context, id string) error
	EnableTwoFactor(ctx context.Context, id, totpSecret string) error

	AddRecoveryCodes(ctx context.Context, accountID string, codeHashes []string) error
	// ConsumeRecoveryCode marks the matching unused code as used and reports
	// whether one was consumed. A second call with the same code returns false.
	ConsumeRecoveryCode(ctx context.Context, accountID, codeHash string) (bool, error)
}
