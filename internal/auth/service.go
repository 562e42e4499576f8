// Package auth implements the credential-validation and session-issuance
// core: the decision sequence that takes a submitted password (or second
// factor) and grants a session, denies it, or locks the account out.
package auth

import (
	"context"
	"strings"
	"time"

	accountdomain "identity-gateway/internal/account/domain"
	challengedomain "identity-gateway/internal/challenge/domain"
	"identity-gateway/internal/email"
	"identity-gateway/internal/logging"
	"identity-gateway/internal/profile"
	"identity-gateway/internal/security"
)

// AccountStore is the minimal account repository contract the core needs.
// Lookups return (nil, nil) for a missing account. SetLockout also resets the
// failed-attempt counter so a lockout that later expires starts counting from
// zero again.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account) error
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	ResetLockout(ctx context.Context, id string) error
	SetLockout(ctx context.Context, id string, until time.Time) error
	UpdateSecurityStamp(ctx context.Context, id, stamp string) error
	SetEmailConfirmed(ctx context.Context, id string) error
	EnableTwoFactor(ctx context.Context, id, totpSecret string) error
	AddRecoveryCodes(ctx context.Context, accountID string, codeHashes []string) error
	ConsumeRecoveryCode(ctx context.Context, accountID, codeHash string) (bool, error)
}

// ChallengeStore persists pending two-factor logins across the gap between the
// password step and the second-factor submission.
type ChallengeStore interface {
	Create(ctx context.Context, c *challengedomain.Challenge) error
	GetByToken(ctx context.Context, token string) (*challengedomain.Challenge, error)
	Delete(ctx context.Context, token string) error
}

// Grant is an authenticated session: subject, signed token, expiry and refresh
// policy. ReturnURL is echoed as supplied; the downstream token layer must
// validate it before any redirect.
type Grant struct {
	Subject      string
	Token        string
	ExpiresAt    time.Time
	AllowRefresh bool
	ReturnURL    string
}

// TwoFactorChallenge asks the caller to complete a second factor using the
// opaque challenge token.
type TwoFactorChallenge struct {
	ChallengeToken string
	ExpiresAt      time.Time
}

// LoginResult is the outcome of a successful password check: either a full
// grant, or a pending two-factor challenge. Exactly one field is set.
type LoginResult struct {
	Grant             *Grant
	TwoFactorRequired *TwoFactorChallenge
}

// Service implements login, two-factor completion, registration, and the
// per-request liveness gate.
type Service struct {
	accounts   AccountStore
	challenges ChallengeStore
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	totp       *security.TOTPVerifier
	lockout    LockoutPolicy

	emailSender email.Sender
	profiles    profile.Creator
	emailFrom   email.Address
	appOrigin   string

	challengeTTL time.Duration
	log          logging.Logger

	now func() time.Time
}

// NewService returns a Service with the given collaborators. log must not be
// nil; use logging.Nop() in tests.
func NewService(
	accounts AccountStore,
	challenges ChallengeStore,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	totp *security.TOTPVerifier,
	lockout LockoutPolicy,
	emailSender email.Sender,
	profiles profile.Creator,
	emailFrom email.Address,
	appOrigin string,
	challengeTTL time.Duration,
	log logging.Logger,
) *Service {
	return &Service{
		accounts:     accounts,
		challenges:   challenges,
		hasher:       hasher,
		tokens:       tokens,
		totp:         totp,
		lockout:      lockout,
		emailSender:  emailSender,
		profiles:     profiles,
		emailFrom:    emailFrom,
		appOrigin:    appOrigin,
		challengeTTL: challengeTTL,
		log:          log,
		now:          time.Now,
	}
}

// ValidateCredentials checks the submitted password against the account's
// stored hash. A nil account is a validation failure, never an error. The
// bcrypt comparison is constant-time in the secret.
func (s *Service) ValidateCredentials(a *accountdomain.Account, password string) bool {
	if a == nil || a.PasswordHash == "" {
		return false
	}
	return s.hasher.Compare(a.PasswordHash, []byte(password)) == nil
}

// Login runs the session-issuance state machine for an email/password
// submission.
//
// Denials: ErrInvalidCredentials for an unknown account or wrong password
// (indistinguishable), *LockedOutError while a lockout is in effect. When a
// lockout is active the validator is not run at all. A correct password on a
// two-factor account yields a pending challenge instead of a grant. Storage
// failures propagate as ordinary errors and are never folded into a denial.
func (s *Service) Login(ctx context.Context, emailAddr, password, returnURL string) (*LoginResult, error) {
	emailAddr = strings.TrimSpace(strings.ToLower(emailAddr))
	if emailAddr == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	acct, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if until, locked := LockedUntil(acct, now); locked {
		return nil, &LockedOutError{Until: until}
	}

	if !s.ValidateCredentials(acct, password) {
		return nil, s.recordFailure(ctx, acct, now)
	}

	if acct.FailedAttempts > 0 || acct.LockoutUntil != nil {
		if err := s.accounts.ResetLockout(ctx, acct.ID); err != nil {
			return nil, err
		}
	}

	if acct.TwoFactorEnabled {
		ch, err := s.createChallenge(ctx, acct.ID, returnURL, now)
		if err != nil {
			return nil, err
		}
		s.log.Info(ctx, "two-factor required", "account_id", acct.ID)
		return &LoginResult{TwoFactorRequired: ch}, nil
	}

	grant, err := s.issueGrant(acct, returnURL)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "login granted", "account_id", acct.ID)
	return &LoginResult{Grant: grant}, nil
}

// recordFailure increments the failed-attempt counter and applies the lockout
// policy. The increment is a single storage-side read-modify-write so two
// concurrent failures both count.
func (s *Service) recordFailure(ctx context.Context, acct *accountdomain.Account, now time.Time) error {
	count, err := s.accounts.IncrementFailedAttempts(ctx, acct.ID)
	if err != nil {
		return err
	}
	if acct.LockoutEnabled && s.lockout.ShouldLock(count) {
		until := s.lockout.LockUntil(now)
		if err := s.accounts.SetLockout(ctx, acct.ID, until); err != nil {
			return err
		}
		s.log.Warn(ctx, "account locked out", "account_id", acct.ID, "until", until)
		return &LockedOutError{Until: until}
	}
	s.log.Info(ctx, "login denied", "account_id", acct.ID, "failed_attempts", count)
	return ErrInvalidCredentials
}

func (s *Service) createChallenge(ctx context.Context, accountID, returnURL string, now time.Time) (*TwoFactorChallenge, error) {
	token, err := security.NewChallengeToken()
	if err != nil {
		return nil, err
	}
	ch := &challengedomain.Challenge{
		Token:     token,
		AccountID: accountID,
		ReturnURL: returnURL,
		ExpiresAt: now.Add(s.challengeTTL),
		CreatedAt: now,
	}
	if err := s.challenges.Create(ctx, ch); err != nil {
		return nil, err
	}
	return &TwoFactorChallenge{ChallengeToken: token, ExpiresAt: ch.ExpiresAt}, nil
}

func (s *Service) issueGrant(acct *accountdomain.Account, returnURL string) (*Grant, error) {
	token, expiresAt, err := s.tokens.IssueSession(acct.ID, acct.SecurityStamp, true, returnURL)
	if err != nil {
		return nil, err
	}
	return &Grant{
		Subject:      acct.ID,
		Token:        token,
		ExpiresAt:    expiresAt,
		AllowRefresh: true,
		ReturnURL:    returnURL,
	}, nil
}
