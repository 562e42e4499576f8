package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLogin_Granted(t *testing.T) {
	env := newTestEnv(t)
	env.addAccount(t, "acct-1", "user@example.com", "hunter2abc")

	res, err := env.svc.Login(context.Background(), "user@example.com", "hunter2abc", "/dashboard")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Grant == nil {
		t.Fatal("expected a grant")
	}
	if res.Grant.Subject != "acct-1" {
		t.Errorf("subject = %q", res.Grant.Subject)
	}
	if res.Grant.ReturnURL != "/dashboard" {
		t.Errorf("return URL = %q", res.Grant.ReturnURL)
	}
	if !res.Grant.AllowRefresh {
		t.Error("grant should allow refresh")
	}
}

func TestLogin_EmailCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	env.addAccount(t, "acct-1", "user@example.com", "hunter2abc")

	res, err := env.svc.Login(context.Background(), "  User@Example.COM ", "hunter2abc", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Grant == nil {
		t.Fatal("expected a grant")
	}
}

func TestLogin_UnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Login(context.Background(), "nobody@example.com", "whatever1", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_EmptyInputs(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Login(context.Background(), "", "pw", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty email: err = %v", err)
	}
	if _, err := env.svc.Login(context.Background(), "user@example.com", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty password: err = %v", err)
	}
}

func TestLogin_FailuresCountUpThenLock(t *testing.T) {
	env := newTestEnv(t)
	env.addAccount(t, "acct-1", "user@example.com", "hunter2abc")
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := env.svc.Login(ctx, "user@example.com", "wrong-pass", "")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i, err)
		}
		if got := env.accounts.get("acct-1").FailedAttempts; got != i {
			t.Fatalf("attempt %d: failed_attempts = %d, want %d", i, got, i)
		}
	}

	_, err := env.svc.Login(ctx, "user@example.com", "wrong-pass", "")
	var locked *LockedOutError
	if !errors.As(err, &locked) {
		t.Fatalf("third failure: err = %v, want LockedOutError", err)
	}
	wantUntil := env.clock.Add(5 * time.Minute)
	if !locked.Until.Equal(wantUntil) {
		t.Errorf("locked until %v, want %v", locked.Until, wantUntil)
	}

	acct := env.accounts.get("acct-1")
	if acct.FailedAttempts != 0 {
		t.Errorf("counter after lock = %d, want 0", acct.FailedAttempts)
	}
	if acct.LockoutUntil == nil {
		t.Error("lockout timestamp not recorded")
	}
}

func TestLogin_LockedOutEvenWithCorrectPassword(t *testing.T) {
	env := newTestEnv(t)
	env.addAccount(t, "acct-1", "user@example.com", "hunter2abc")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.svc.Login(ctx, "user@example.com", "wrong-pass", "")
	}

	_, err := env.svc.Login(ctx, "user@example.com", "hunter2abc", "")
	var locked *LockedOutError
	if !errors.As(err, &locked) {
		t.Fatalf("err = %v, want LockedOutError", err)
	}
	if locked.RetryAfter(env.clock) <= 0 {
		t.Error("retry-after should be positive while locked")
	}
}

func TestLogin_ExpiredLockoutGrantsAndResets(t *testing.T) {
	env := newTestEnv(t)
	env.addAccount(t, "acct-1", "user@example.com", "hunter2abc")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.svc.Login(ctx, "user@example.com", "wrong-pass", "")
	}
	env.advance(5*time.Minute + time.Second)

	res, err := env.svc.Login(ctx, "user@example.com", "hunter2abc", "")
	if err != nil {
		t.Fatalf("Login after lockout expiry: %v", err)
	}
	if res.Grant == nil {
		t.Fatal("expected a grant")
	}

	acct := env.accounts.get("acct-1")
	if acct.FailedAttempts != 0 {
		t.Errorf("failed_attempts = %d, want 0", acct.FailedAttempts)
	}
	if acct.LockoutUntil != nil {
		t.Error("stale lockout timestamp should be cleared")
	}
}

func TestLogin_ExpiredLockoutFailureStartsFreshWindow(t *testing.T) {
	env := newTestEnv(t)
	env.addAccount(t, "acct-1", "user@example.com", "hunter2abc")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.svc.Login(ctx, "user@example.com", "wrong-pass", "")
	}
	env.advance(6 * time.Minute)

	_, err := env.svc.Login(ctx, "user@example.com", "wrong-pass", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("first post-expiry failure: err = %v, want ErrInvalidCredentials", err)
	}
	if got := env.accounts.get("acct-1").FailedAttempts; got != 1 {
		t.Errorf("failed_attempts = %d, want 1", got)
	}
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	env := newTestEnv(t)
	env.addAccount(t, "acct-1", "user@example.com", "hunter2abc")
	ctx := context.Background()

	env.svc.Login(ctx, "user@example.com", "wrong-pass", "")
	env.svc.Login(ctx, "user@example.com", "wrong-pass", "")

	if _, err := env.svc.Login(ctx, "user@example.com", "hunter2abc", ""); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := env.accounts.get("acct-1").FailedAttempts; got != 0 {
		t.Errorf("failed_attempts = %d, want 0", got)
	}
}

func TestLogin_LockoutDisabledAccountNeverLocks(t *testing.T) {
	env := newTestEnv(t)
	acct := env.addAccount(t, "acct-1", "user@example.com", "hunter2abc")
	acct.LockoutEnabled = false
	env.accounts.put(acct)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := env.svc.Login(ctx, "user@example.com", "wrong-pass", "")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i+1, err)
		}
	}
	if env.accounts.get("acct-1").LockoutUntil != nil {
		t.Error("account with lockout disabled must never be locked")
	}
}
