package auth

import (
	"context"

	"identity-gateway/internal/security"
)

// CheckSession validates a presented session token against current account
// state and returns the decoded grant when the session is still live. A
// session dies in three ways: the token itself is invalid or expired, the
// account is currently locked out, or the account's security stamp has rotated
// since issuance. All three collapse to ErrInvalidCredentials so a revoked
// session is indistinguishable from a bad token.
func (s *Service) CheckSession(ctx context.Context, token string) (*security.SessionGrant, error) {
	grant, err := s.tokens.ValidateSession(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	active, err := s.IsActive(ctx, grant.Subject, grant.SecurityStamp)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrInvalidCredentials
	}
	return grant, nil
}

// IsActive reports whether the account may currently hold a session: it must
// exist, must not be under an unexpired lockout, and a presented stamp must
// still match the account's stamp. An empty presented stamp skips the stamp
// check (tokens minted without one). Storage failures propagate rather than
// defaulting to active.
func (s *Service) IsActive(ctx context.Context, accountID, securityStamp string) (bool, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	if acct == nil {
		return false, nil
	}
	if _, locked := LockedUntil(acct, s.now().UTC()); locked {
		return false, nil
	}
	if securityStamp != "" && securityStamp != acct.SecurityStamp {
		return false, nil
	}
	return true, nil
}
