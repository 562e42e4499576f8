package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRegister_CreatesAccountWithSideEffects(t *testing.T) {
	env := newTestEnv(t)
	dob := time.Date(2000, time.March, 15, 0, 0, 0, 0, time.UTC)

	acct, err := env.svc.Register(context.Background(), RegisterInput{
		Name:        "Test User",
		Email:       "New.User@Example.com",
		Password:    "hunter2abc",
		DateOfBirth: dob,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acct.Email != "new.user@example.com" {
		t.Errorf("email = %q, want normalized lowercase", acct.Email)
	}
	if acct.PasswordHash == "" || acct.PasswordHash == "hunter2abc" {
		t.Error("password must be stored hashed")
	}
	if acct.SecurityStamp == "" {
		t.Error("security stamp must be assigned")
	}
	if !acct.LockoutEnabled {
		t.Error("new accounts participate in lockout")
	}

	if env.emails.count() != 1 {
		t.Fatalf("confirmation emails sent = %d, want 1", env.emails.count())
	}
	msg := env.emails.sent[0]
	if msg.To.Address != "new.user@example.com" {
		t.Errorf("email to = %q", msg.To.Address)
	}
	if !strings.Contains(msg.HTMLBody, "https://app.example.com/auth/confirm-email?token=") {
		t.Errorf("confirmation link missing from body: %s", msg.HTMLBody)
	}

	if env.profiles.count() != 1 {
		t.Fatalf("profiles replicated = %d, want 1", env.profiles.count())
	}
	p := env.profiles.profiles[0]
	if p.ID != acct.ID || p.Email != acct.Email || p.Name != "Test User" {
		t.Errorf("profile = %+v", p)
	}
	// Clock is fixed at 2024-03-15: the birthday has occurred.
	if p.Age != 24 {
		t.Errorf("age = %d, want 24", p.Age)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	in := RegisterInput{
		Name:        "Test User",
		Email:       "user@example.com",
		Password:    "hunter2abc",
		DateOfBirth: time.Date(2000, time.March, 15, 0, 0, 0, 0, time.UTC),
	}
	first, err := env.svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("first Register: %v", err)
	}

	in.Password = "different9pw"
	if _, err := env.svc.Register(context.Background(), in); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("second Register: err = %v, want ErrDuplicateAccount", err)
	}

	// The existing account and the side-effect counts are untouched.
	if got := env.accounts.get(first.ID); got.PasswordHash != first.PasswordHash {
		t.Error("duplicate registration must not mutate the existing account")
	}
	if env.emails.count() != 1 {
		t.Errorf("emails sent = %d, want 1", env.emails.count())
	}
	if env.profiles.count() != 1 {
		t.Errorf("profiles replicated = %d, want 1", env.profiles.count())
	}
}

func TestRegister_PolicyRejections(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"malformed email", "not-an-email", "hunter2abc"},
		{"short password", "user@example.com", "ab1"},
		{"no digit", "user@example.com", "onlyletters"},
		{"no letter", "user@example.com", "1234567890"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Register(context.Background(), RegisterInput{
				Name: "X", Email: tt.email, Password: tt.password,
			})
			var rejected *CreationRejectedError
			if !errors.As(err, &rejected) {
				t.Fatalf("err = %v, want CreationRejectedError", err)
			}
			if rejected.Reason == "" {
				t.Error("rejection must carry a reason")
			}
		})
	}
	if env.emails.count() != 0 || env.profiles.count() != 0 {
		t.Error("rejected registrations must have no side effects")
	}
}

func TestAgeAt(t *testing.T) {
	dob := time.Date(2000, time.March, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		today time.Time
		want  int
	}{
		{time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC), 23},
		{time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), 24},
		{time.Date(2024, time.March, 16, 0, 0, 0, 0, time.UTC), 24},
		{time.Date(2000, time.March, 15, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		if got := AgeAt(dob, tt.today); got != tt.want {
			t.Errorf("AgeAt(%s) = %d, want %d", tt.today.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestConfirmEmail(t *testing.T) {
	env := newTestEnv(t)
	acct, err := env.svc.Register(context.Background(), RegisterInput{
		Name: "Test User", Email: "user@example.com", Password: "hunter2abc",
		DateOfBirth: time.Date(2000, time.March, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Pull the token out of the confirmation link.
	body := env.emails.sent[0].HTMLBody
	marker := "token="
	i := strings.Index(body, marker)
	if i < 0 {
		t.Fatal("no token in confirmation email")
	}
	token := body[i+len(marker):]
	token = token[:strings.IndexAny(token, `"`)]

	if err := env.svc.ConfirmEmail(context.Background(), token); err != nil {
		t.Fatalf("ConfirmEmail: %v", err)
	}
	if !env.accounts.get(acct.ID).EmailConfirmed {
		t.Error("account not marked confirmed")
	}

	// Confirming twice is a no-op, not an error.
	if err := env.svc.ConfirmEmail(context.Background(), token); err != nil {
		t.Fatalf("second ConfirmEmail: %v", err)
	}
}

func TestConfirmEmail_RejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	if err := env.svc.ConfirmEmail(context.Background(), "garbage"); !errors.Is(err, ErrEmailConfirmationInvalid) {
		t.Fatalf("err = %v, want ErrEmailConfirmationInvalid", err)
	}
}

func TestEnrollTwoFactor(t *testing.T) {
	env := newTestEnv(t)
	before := env.addAccount(t, "acct-1", "user@example.com", "hunter2abc")

	enr, err := env.svc.EnrollTwoFactor(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("EnrollTwoFactor: %v", err)
	}
	if enr.Secret == "" || enr.OTPAuthURL == "" {
		t.Error("enrollment must include secret and provisioning URL")
	}
	if len(enr.RecoveryCodes) != 10 {
		t.Errorf("recovery codes = %d, want 10", len(enr.RecoveryCodes))
	}

	after := env.accounts.get("acct-1")
	if !after.TwoFactorEnabled || after.TOTPSecret != enr.Secret {
		t.Error("two-factor state not persisted")
	}
	if after.SecurityStamp == before.SecurityStamp {
		t.Error("enrollment must rotate the security stamp")
	}
}
