package repository

import (
	"context"
	"database/sql"
	"errors"

	"identity-gateway/internal/challenge/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a login-challenge repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the challenge. The challenge must have Token set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Challenge) error {
	query := `INSERT INTO login_challenges (token, account_id, return_url, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, c.Token, c.AccountID, c.ReturnURL, c.ExpiresAt, c.CreatedAt)
	return err
}

// GetByToken returns the challenge for token, or nil if not found.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.Challenge, error) {
	query := `SELECT token, account_id, return_url, expires_at, created_at
		 FROM login_challenges WHERE token = $1`
	var c domain.Challenge
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&c.Token, &c.AccountID, &c.ReturnURL, &c.ExpiresAt, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// Delete removes the challenge by token.
func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM login_challenges WHERE token = $1`, token)
	return err
}
