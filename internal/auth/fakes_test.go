// AngelaMos | 2026
// fakes_test.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bizdesk/internal/config"
	"github.com/carterperez-dev/bizdesk/internal/core"
	"github.com/carterperez-dev/bizdesk/internal/mail"
)

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*UserInfo

	updatePasswordErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: make(map[string]*UserInfo)}
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
}

func (f *fakeUsers) Create(_ context.Context, nu NewUser) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.byEmail[nu.Email]; ok {
		return nil, fmt.Errorf("create user: %w", core.ErrDuplicateKey)
	}

	role := nu.Role
	if role == "" {
		role = "client"
	}

	u := &UserInfo{
		ID:           uuid.New().String(),
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		Phone:        nu.Phone,
		Role:         role,
		IsVerified:   nu.IsVerified,
		CreatedAt:    time.Now(),
	}
	f.byEmail[nu.Email] = u

	cp := *u
	return &cp, nil
}

func (f *fakeUsers) MarkVerified(_ context.Context, id string) error {
	return f.mutate(id, func(u *UserInfo) { u.IsVerified = true })
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	failure := f.updatePasswordErr
	f.mu.Unlock()
	if failure != nil {
		return failure
	}
	return f.mutate(id, func(u *UserInfo) { u.PasswordHash = hash })
}

func (f *fakeUsers) mutate(id string, fn func(*UserInfo)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.byEmail {
		if u.ID == id {
			fn(u)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeUsers) get(email string) *UserInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byEmail[email]
}

type fakeOTPs struct {
	mu    sync.Mutex
	codes map[string]*OneTimeCode
}

func newFakeOTPs() *fakeOTPs {
	return &fakeOTPs{codes: make(map[string]*OneTimeCode)}
}

func (f *fakeOTPs) Upsert(_ context.Context, code *OneTimeCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *code
	cp.Attempts = 0
	cp.CreatedAt = time.Now()
	f.codes[code.Email] = &cp
	return nil
}

func (f *fakeOTPs) FindByEmail(_ context.Context, email string) (*OneTimeCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.codes[email]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeOTPs) IncrementAttempts(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.codes[email]; ok {
		c.Attempts++
	}
	return nil
}

func (f *fakeOTPs) Consume(_ context.Context, email, codeHash string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.codes[email]
	if !ok || c.CodeHash != codeHash || !c.ExpiresAt.After(now) {
		return core.ErrNotFound
	}
	delete(f.codes, email)
	return nil
}

func (f *fakeOTPs) Restore(_ context.Context, code *OneTimeCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.codes[code.Email]; ok {
		return nil
	}
	cp := *code
	f.codes[code.Email] = &cp
	return nil
}

func (f *fakeOTPs) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for email, c := range f.codes {
		if c.ExpiresAt.Before(time.Now()) {
			delete(f.codes, email)
			n++
		}
	}
	return n, nil
}

func (f *fakeOTPs) get(email string) *OneTimeCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codes[email]
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var errSMTPDown = errors.New("smtp: connection refused")

func newTestJWT(t *testing.T, expire time.Duration) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	privatePath := filepath.Join(dir, "private.pem")
	publicPath := filepath.Join(dir, "public.pem")

	if err := GenerateKeyPair(privatePath, publicPath); err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:    privatePath,
		PublicKeyPath:     publicPath,
		AccessTokenExpire: expire,
		Issuer:            "bizdesk-test",
		Audience:          "bizdesk-test",
	})
	if err != nil {
		t.Fatalf("new jwt manager: %v", err)
	}
	return m
}

type harness struct {
	svc      *Service
	users    *fakeUsers
	otps     *fakeOTPs
	mailer   *fakeMailer
	registry *MemoryRegistry
	codes    []string
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		users:    newFakeUsers(),
		otps:     newFakeOTPs(),
		mailer:   &fakeMailer{},
		registry: NewMemoryRegistry(),
		clock:    time.Now(),
	}

	h.svc = NewService(ServiceConfig{
		Repo:        h.otps,
		JWT:         newTestJWT(t, time.Hour),
		Users:       h.users,
		Registry:    h.registry,
		Mailer:      h.mailer,
		OTPTTL:      10 * time.Minute,
		MaxAttempts: 5,
	})
	h.svc.now = func() time.Time { return h.clock }

	seq := 100000
	h.svc.generateCode = func() (string, error) {
		seq++
		code := fmt.Sprintf("%06d", seq)
		h.codes = append(h.codes, code)
		return code, nil
	}

	return h
}

func (h *harness) lastCode() string {
	return h.codes[len(h.codes)-1]
}
