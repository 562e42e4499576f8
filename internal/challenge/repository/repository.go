package repository

import (
	"context"

	"identity-gateway/internal/challenge/domain"
)

// Repository stores pending-login challenges. GetByToken returns (nil, nil)
// for a missing challenge; errors are reserved for storage failures.
type Repository interface {
	Create(ctx context.Context, c *domain.Challenge) error
	GetByToken(ctx context.Context, token string) (*domain.Challenge, error)
	Delete(ctx context.Context, token string) error
}
