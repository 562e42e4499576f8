package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	accountdomain "identity-gateway/internal/account/domain"
	"identity-gateway/internal/account/repository"
	"identity-gateway/internal/email"
	"identity-gateway/internal/profile"
	"identity-gateway/internal/security"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// RegisterInput is a signup submission. DateOfBirth carries date precision
// only; the time component is ignored.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	DateOfBirth time.Time
}

// TwoFactorEnrollment is the material returned once at enrollment time. The
// plaintext recovery codes are never reproducible afterwards.
type TwoFactorEnrollment struct {
	Secret        string
	OTPAuthURL    string
	RecoveryCodes []string
}

// Register creates an account from a signup submission.
//
// Policy rejections (bad email, weak password) return *CreationRejectedError;
// an already-registered email returns ErrDuplicateAccount and leaves the
// existing account untouched. After the account row exists, the confirmation
// email and the profile replication are best-effort: their failures are logged
// and do not undo the registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*accountdomain.Account, error) {
	emailAddr := strings.TrimSpace(strings.ToLower(in.Email))
	if !emailPattern.MatchString(emailAddr) {
		return nil, &CreationRejectedError{Reason: "email address is not valid"}
	}
	if reason := passwordPolicyViolation(in.Password); reason != "" {
		return nil, &CreationRejectedError{Reason: reason}
	}

	hash, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, err
	}
	stamp, err := security.NewSecurityStamp()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	acct := &accountdomain.Account{
		ID:             uuid.NewString(),
		Email:          emailAddr,
		PasswordHash:   hash,
		SecurityStamp:  stamp,
		LockoutEnabled: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}
	s.log.Info(ctx, "account registered", "account_id", acct.ID)

	if err := s.sendConfirmationEmail(in.Name, emailAddr); err != nil {
		s.log.Warn(ctx, "confirmation email failed", "account_id", acct.ID, "error", err)
	}
	if err := s.replicateProfile(ctx, acct, in.Name, in.DateOfBirth, now); err != nil {
		s.log.Warn(ctx, "profile replication failed", "account_id", acct.ID, "error", err)
	}

	return acct, nil
}

// ConfirmEmail marks the account behind a confirmation token as having a
// verified address. Invalid, expired, or repurposed tokens are
// ErrEmailConfirmationInvalid.
func (s *Service) ConfirmEmail(ctx context.Context, token string) error {
	emailAddr, err := s.tokens.ValidateEmailConfirmation(token)
	if err != nil {
		return ErrEmailConfirmationInvalid
	}
	acct, err := s.accounts.GetByEmail(ctx, strings.ToLower(emailAddr))
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrEmailConfirmationInvalid
	}
	if acct.EmailConfirmed {
		return nil
	}
	if err := s.accounts.SetEmailConfirmed(ctx, acct.ID); err != nil {
		return err
	}
	s.log.Info(ctx, "email confirmed", "account_id", acct.ID)
	return nil
}

// EnrollTwoFactor turns on TOTP for the account and mints its recovery codes.
// The security stamp is rotated so sessions issued before enrollment stop
// passing the liveness gate.
func (s *Service) EnrollTwoFactor(ctx context.Context, accountID string) (*TwoFactorEnrollment, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrInvalidCredentials
	}

	secret, otpURL, err := s.totp.GenerateSecret(acct.Email)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.EnableTwoFactor(ctx, acct.ID, secret); err != nil {
		return nil, err
	}

	codes, err := security.GenerateRecoveryCodes(security.RecoveryCodeCount)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = security.HashCode(c)
	}
	if err := s.accounts.AddRecoveryCodes(ctx, acct.ID, hashes); err != nil {
		return nil, err
	}

	stamp, err := security.NewSecurityStamp()
	if err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateSecurityStamp(ctx, acct.ID, stamp); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "two-factor enrolled", "account_id", acct.ID)
	return &TwoFactorEnrollment{Secret: secret, OTPAuthURL: otpURL, RecoveryCodes: codes}, nil
}

func (s *Service) sendConfirmationEmail(name, emailAddr string) error {
	if s.emailSender == nil {
		return nil
	}
	token, err := s.tokens.IssueEmailConfirmation(emailAddr)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/auth/confirm-email?token=%s",
		strings.TrimSuffix(s.appOrigin, "/"), url.QueryEscape(token))
	msg := &email.Message{
		From:     s.emailFrom,
		To:       email.Address{Name: name, Address: emailAddr},
		Subject:  "Confirm your email address",
		HTMLBody: fmt.Sprintf(`<p>Welcome! Please confirm your email address by clicking <a href=%q>here</a>.</p>`, link),
	}
	return s.emailSender.Send(msg)
}

func (s *Service) replicateProfile(ctx context.Context, acct *accountdomain.Account, name string, dob, now time.Time) error {
	if s.profiles == nil {
		return nil
	}
	return s.profiles.CreateProfile(ctx, &profile.Profile{
		ID:          acct.ID,
		Name:        name,
		Email:       acct.Email,
		DateOfBirth: dob,
		Age:         AgeAt(dob, now),
	})
}

// AgeAt computes whole years lived at the given date: the year difference,
// minus one when the birthday has not yet occurred that year.
func AgeAt(dob, today time.Time) int {
	age := today.Year() - dob.Year()
	if dob.After(today.AddDate(-age, 0, 0)) {
		age--
	}
	return age
}

// passwordPolicyViolation returns a human-readable reason when the password
// fails policy, or "" when it passes. Minimum eight characters with at least
// one letter and one digit.
func passwordPolicyViolation(password string) string {
	if len(password) < 8 {
		return "password must be at least 8 characters"
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return "password must contain at least one letter and one digit"
	}
	return ""
}
