package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	accountdomain "identity-gateway/internal/account/domain"
	"identity-gateway/internal/account/repository"
	challengedomain "identity-gateway/internal/challenge/domain"
	"identity-gateway/internal/email"
	"identity-gateway/internal/logging"
	"identity-gateway/internal/profile"
	"identity-gateway/internal/security"
)

type fakeAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*accountdomain.Account
	codes    []*accountdomain.RecoveryCode
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{accounts: make(map[string]*accountdomain.Account)}
}

func (f *fakeAccountStore) put(a *accountdomain.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.accounts[a.ID] = &cp
}

func (f *fakeAccountStore) get(id string) *accountdomain.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (f *fakeAccountStore) GetByEmail(_ context.Context, email string) (*accountdomain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAccountStore) GetByID(_ context.Context, id string) (*accountdomain.Account, error) {
	return f.get(id), nil
}

func (f *fakeAccountStore) Create(_ context.Context, a *accountdomain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return repository.ErrDuplicateEmail
		}
	}
	cp := *a
	f.accounts[a.ID] = &cp
	return nil
}

func (f *fakeAccountStore) IncrementFailedAttempts(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[id]
	a.FailedAttempts++
	return a.FailedAttempts, nil
}

func (f *fakeAccountStore) ResetLockout(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[id]
	a.FailedAttempts = 0
	a.LockoutUntil = nil
	return nil
}

func (f *fakeAccountStore) SetLockout(_ context.Context, id string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[id]
	a.LockoutUntil = &until
	a.FailedAttempts = 0
	return nil
}

func (f *fakeAccountStore) UpdateSecurityStamp(_ context.Context, id, stamp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[id].SecurityStamp = stamp
	return nil
}

func (f *fakeAccountStore) SetEmailConfirmed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[id].EmailConfirmed = true
	return nil
}

func (f *fakeAccountStore) EnableTwoFactor(_ context.Context, id, totpSecret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[id]
	a.TwoFactorEnabled = true
	a.TOTPSecret = totpSecret
	return nil
}

func (f *fakeAccountStore) AddRecoveryCodes(_ context.Context, accountID string, codeHashes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range codeHashes {
		f.codes = append(f.codes, &accountdomain.RecoveryCode{AccountID: accountID, CodeHash: h})
	}
	return nil
}

func (f *fakeAccountStore) ConsumeRecoveryCode(_ context.Context, accountID, codeHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.codes {
		if c.AccountID == accountID && c.CodeHash == codeHash && !c.Used {
			c.Used = true
			return true, nil
		}
	}
	return false, nil
}

type fakeChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*challengedomain.Challenge
}

func newFakeChallengeStore() *fakeChallengeStore {
	return &fakeChallengeStore{challenges: make(map[string]*challengedomain.Challenge)}
}

func (f *fakeChallengeStore) Create(_ context.Context, c *challengedomain.Challenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.challenges[c.Token] = &cp
	return nil
}

func (f *fakeChallengeStore) GetByToken(_ context.Context, token string) (*challengedomain.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[token]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeChallengeStore) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.challenges, token)
	return nil
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []*email.Message
}

func (f *fakeEmailSender) Send(msg *email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeEmailSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeProfileCreator struct {
	mu       sync.Mutex
	profiles []*profile.Profile
}

func (f *fakeProfileCreator) CreateProfile(_ context.Context, p *profile.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.profiles = append(f.profiles, &cp)
	return nil
}

func (f *fakeProfileCreator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.profiles)
}

type testEnv struct {
	svc        *Service
	accounts   *fakeAccountStore
	challenges *fakeChallengeStore
	emails     *fakeEmailSender
	profiles   *fakeProfileCreator
	hasher     *security.Hasher
	clock      time.Time
}

// newTestEnv builds a Service over in-memory fakes with a controllable clock.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("token provider: %v", err)
	}
	env := &testEnv{
		accounts:   newFakeAccountStore(),
		challenges: newFakeChallengeStore(),
		emails:     &fakeEmailSender{},
		profiles:   &fakeProfileCreator{},
		hasher:     security.NewHasher(4),
		clock:      time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(
		env.accounts,
		env.challenges,
		env.hasher,
		tokens,
		security.NewTOTPVerifier("identity-gateway-test", 1),
		LockoutPolicy{Enabled: true, MaxAttempts: 3, Span: 5 * time.Minute},
		env.emails,
		env.profiles,
		email.Address{Name: "Identity Gateway", Address: "no-reply@example.com"},
		"https://app.example.com",
		10*time.Minute,
		logging.Nop(),
	)
	env.svc.now = func() time.Time { return env.clock }
	return env
}

func (e *testEnv) advance(d time.Duration) { e.clock = e.clock.Add(d) }

// addAccount stores an account with the given plaintext password hashed.
func (e *testEnv) addAccount(t *testing.T, id, emailAddr, password string) *accountdomain.Account {
	t.Helper()
	hash, err := e.hasher.Hash([]byte(password))
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	a := &accountdomain.Account{
		ID:             id,
		Email:          emailAddr,
		PasswordHash:   hash,
		SecurityStamp:  "stamp-" + id,
		LockoutEnabled: true,
		CreatedAt:      e.clock,
		UpdatedAt:      e.clock,
	}
	e.accounts.put(a)
	return a
}
