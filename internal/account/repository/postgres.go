package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"identity-gateway/internal/account/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an account repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, email, password_hash, security_stamp, email_confirmed,
	lockout_enabled, lockout_until, failed_attempts, two_factor_enabled, totp_secret,
	created_at, updated_at`

// GetByEmail returns the account with the given email (case-insensitive), or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
}

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// Create persists the account. The account must have ID set; it is not assigned here.
// Returns ErrDuplicateEmail when the email is already registered.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Email, a.PasswordHash, a.SecurityStamp, a.EmailConfirmed,
		a.LockoutEnabled, a.LockoutUntil, a.FailedAttempts, a.TwoFactorEnabled, a.TOTPSecret,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// IncrementFailedAttempts bumps the failed-attempt counter in a single UPDATE
// so two concurrent failures both count, and returns the new value.
func (r *PostgresRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	query := `UPDATE accounts
		 SET failed_attempts = failed_attempts + 1, updated_at = $2
		 WHERE id = $1
		 RETURNING failed_attempts`
	var count int
	if err := r.db.QueryRowContext(ctx, query, id, time.Now().UTC()).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ResetLockout clears the failed-attempt counter and the lockout timestamp.
func (r *PostgresRepository) ResetLockout(ctx context.Context, id string) error {
	query := `UPDATE accounts
		 SET failed_attempts = 0, lockout_until = NULL, updated_at = $2
		 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	return err
}

// SetLockout records a lockout until the given time and zeroes the counter so
// attempts after the lockout expires start a fresh window.
func (r *PostgresRepository) SetLockout(ctx context.Context, id string, until time.Time) error {
	query := `UPDATE accounts
		 SET lockout_until = $2, failed_attempts = 0, updated_at = $3
		 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, until, time.Now().UTC())
	return err
}

// UpdateSecurityStamp replaces the account's security stamp, revoking sessions
// issued under the previous stamp.
func (r *PostgresRepository) UpdateSecurityStamp(ctx context.Context, id, stamp string) error {
	query := `UPDATE accounts SET security_stamp = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, stamp, time.Now().UTC())
	return err
}

// SetEmailConfirmed marks the account's email as confirmed.
func (r *PostgresRepository) SetEmailConfirmed(ctx context.Context, id string) error {
	query := `UPDATE accounts SET email_confirmed = TRUE, updated_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	return err
}

// EnableTwoFactor stores the TOTP secret and turns two-factor on for the account.
func (r *PostgresRepository) EnableTwoFactor(ctx context.Context, id, totpSecret string) error {
	query := `UPDATE accounts
		 SET two_factor_enabled = TRUE, totp_secret = $2, updated_at = $3
		 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, totpSecret, time.Now().UTC())
	return err
}

// AddRecoveryCodes inserts one row per code hash for the account.
func (r *PostgresRepository) AddRecoveryCodes(ctx context.Context, accountID string, codeHashes []string) error {
	query := `INSERT INTO recovery_codes (id, account_id, code_hash, used, created_at)
		 VALUES ($1, $2, $3, FALSE, $4)`
	now := time.Now().UTC()
	for _, h := range codeHashes {
		if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), accountID, h, now); err != nil {
			return err
		}
	}
	return nil
}

// ConsumeRecoveryCode marks the matching unused code as used. The WHERE NOT used
// guard makes consumption single-use even under concurrent submissions.
func (r *PostgresRepository) ConsumeRecoveryCode(ctx context.Context, accountID, codeHash string) (bool, error) {
	query := `UPDATE recovery_codes
		 SET used = TRUE, used_at = $3
		 WHERE id = (
			SELECT id FROM recovery_codes
			WHERE account_id = $1 AND code_hash = $2 AND NOT used
			LIMIT 1
		 )`
	res, err := r.db.ExecContext(ctx, query, accountID, codeHash, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepository) scanAccount(row *sql.Row) (*domain.Account, error) {
	var a domain.Account
	var lockoutUntil sql.NullTime
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.SecurityStamp, &a.EmailConfirmed,
		&a.LockoutEnabled, &lockoutUntil, &a.FailedAttempts, &a.TwoFactorEnabled, &a.TOTPSecret,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lockoutUntil.Valid {
		t := lockoutUntil.Time
		a.LockoutUntil = &t
	}
	return &a, nil
}
