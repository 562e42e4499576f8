package auth

import (
	"context"

	accountdomain "identity-gateway/internal/account/domain"
	challengedomain "identity-gateway/internal/challenge/domain"
	"identity-gateway/internal/security"
)

// LoginTOTP completes a pending two-factor login with an authenticator code.
// The challenge token must come from a prior Login that returned
// TwoFactorRequired. A wrong or expired code is ErrTwoFactorInvalid; the
// failed-attempt counter tracks password failures only and is untouched here.
func (s *Service) LoginTOTP(ctx context.Context, challengeToken, code string) (*Grant, error) {
	ch, acct, err := s.resolveChallenge(ctx, challengeToken)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if until, locked := LockedUntil(acct, now); locked {
		return nil, &LockedOutError{Until: until}
	}

	if acct.TOTPSecret == "" || !s.totp.Verify(code, acct.TOTPSecret, now) {
		s.log.Info(ctx, "two-factor denied", "account_id", acct.ID, "method", "totp")
		return nil, ErrTwoFactorInvalid
	}

	return s.completeChallenge(ctx, ch, acct.ID)
}

// LoginRecoveryCode completes a pending two-factor login with a one-time
// recovery code. Each code grants at most one session; a second use of the
// same code is ErrTwoFactorInvalid even if the string is correct.
func (s *Service) LoginRecoveryCode(ctx context.Context, challengeToken, code string) (*Grant, error) {
	ch, acct, err := s.resolveChallenge(ctx, challengeToken)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if until, locked := LockedUntil(acct, now); locked {
		return nil, &LockedOutError{Until: until}
	}

	consumed, err := s.accounts.ConsumeRecoveryCode(ctx, acct.ID, security.HashCode(code))
	if err != nil {
		return nil, err
	}
	if !consumed {
		s.log.Info(ctx, "two-factor denied", "account_id", acct.ID, "method", "recovery_code")
		return nil, ErrTwoFactorInvalid
	}

	return s.completeChallenge(ctx, ch, acct.ID)
}

// resolveChallenge loads the pending login and its account. A missing or
// expired challenge is ErrTwoFactorInvalid; expired rows are deleted on sight.
func (s *Service) resolveChallenge(ctx context.Context, token string) (*challengedomain.Challenge, *accountdomain.Account, error) {
	if token == "" {
		return nil, nil, ErrTwoFactorInvalid
	}
	ch, err := s.challenges.GetByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if ch == nil {
		return nil, nil, ErrTwoFactorInvalid
	}
	if ch.Expired(s.now().UTC()) {
		if err := s.challenges.Delete(ctx, ch.Token); err != nil {
			s.log.Warn(ctx, "expired challenge cleanup failed", "error", err)
		}
		return nil, nil, ErrTwoFactorInvalid
	}
	acct, err := s.accounts.GetByID(ctx, ch.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if acct == nil {
		return nil, nil, ErrTwoFactorInvalid
	}
	return ch, acct, nil
}

// completeChallenge consumes the challenge, clears any stale lockout state,
// and issues the session the original login asked for.
func (s *Service) completeChallenge(ctx context.Context, ch *challengedomain.Challenge, accountID string) (*Grant, error) {
	if err := s.challenges.Delete(ctx, ch.Token); err != nil {
		return nil, err
	}
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrTwoFactorInvalid
	}
	if acct.FailedAttempts > 0 || acct.LockoutUntil != nil {
		if err := s.accounts.ResetLockout(ctx, acct.ID); err != nil {
			return nil, err
		}
	}
	grant, err := s.issueGrant(acct, ch.ReturnURL)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "two-factor login granted", "account_id", acct.ID)
	return grant, nil
}
