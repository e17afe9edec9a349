package authcore

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/studydeck/authcore/password"
	"github.com/studydeck/authcore/session"
)

// fakeUserStore is the in-memory UserStore used by engine tests. It mirrors
// the store contract: ErrUserNotFound for missing records, atomic counter
// bumps, and a conditional gate consume.
type fakeUserStore struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*User // by ID
	roles  map[string]string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users: make(map[string]*User),
		roles: make(map[string]string),
	}
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) Create(_ context.Context, u *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *u
	cp.ID = "u-" + strconv.Itoa(s.nextID)
	s.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *fakeUserStore) OverwriteUnverified(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	stored.Name = u.Name
	stored.PasswordHash = u.PasswordHash
	stored.VerificationCode = u.VerificationCode
	stored.VerificationCodeExpiresAt = u.VerificationCodeExpiresAt
	return nil
}

func (s *fakeUserStore) MarkVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.IsEmailVerified = true
	u.VerificationCode = nil
	u.VerificationCodeExpiresAt = nil
	return nil
}

func (s *fakeUserStore) SetVerificationCode(_ context.Context, id, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.VerificationCode = &code
	u.VerificationCodeExpiresAt = &expiresAt
	return nil
}

func (s *fakeUserStore) SetResetCode(_ context.Context, id, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordResetCode = &code
	u.PasswordResetCodeExpiresAt = &expiresAt
	u.ResetCodeAttempts = 0
	u.CanResetPassword = false
	return nil
}

func (s *fakeUserStore) IncrementResetAttempts(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, ErrUserNotFound
	}
	u.ResetCodeAttempts++
	return u.ResetCodeAttempts, nil
}

func (s *fakeUserStore) GrantResetGate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordResetCode = nil
	u.PasswordResetCodeExpiresAt = nil
	u.ResetCodeAttempts = 0
	u.CanResetPassword = true
	return nil
}

func (s *fakeUserStore) ConsumePasswordReset(_ context.Context, id, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if !u.CanResetPassword {
		return ErrNotVerified
	}
	u.PasswordHash = newHash
	u.CanResetPassword = false
	return nil
}

func (s *fakeUserStore) UpdatePasswordHash(_ context.Context, id, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = newHash
	return nil
}

func (s *fakeUserStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (s *fakeUserStore) AssignDefaultRole(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = "user"
	return nil
}

// mutate edits a stored record in place, bypassing the store contract. Tests
// use it to age codes or flip state directly.
func (s *fakeUserStore) mutate(t *testing.T, id string, fn func(*User)) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		t.Fatalf("no stored user %q", id)
	}
	fn(u)
}

func (s *fakeUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// captureSender records the last code sent per address instead of delivering
// anything.
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	sends int
}

func newCaptureSender() *captureSender {
	return &captureSender{codes: make(map[string]string)}
}

func (c *captureSender) Send(_ context.Context, address, _ string, payload map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[address] = payload["code"]
	c.sends++
	return nil
}

func (c *captureSender) lastCode(t *testing.T, address string) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	code, ok := c.codes[address]
	if !ok {
		t.Fatalf("no code captured for %q", address)
	}
	return code
}

type testEnv struct {
	engine   *Engine
	users    *fakeUserStore
	sessions *session.Store
	sender   *captureSender
	redis    *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	sessions := session.NewStore(rdb, "", 0)

	hasher, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	users := newFakeUserStore()
	sender := newCaptureSender()

	engine, err := New(
		Config{JWTSecret: []byte("engine-test-secret")},
		Deps{
			Users:    users,
			Sessions: sessions,
			Hasher:   hasher,
			Notifier: sender,
			Roles:    users,
		},
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	return &testEnv{
		engine:   engine,
		users:    users,
		sessions: sessions,
		sender:   sender,
		redis:    mr,
	}
}

// signupVerified provisions a verified account ready for login.
func (env *testEnv) signupVerified(t *testing.T, email, pass string) *User {
	t.Helper()
	ctx := context.Background()

	res, err := env.engine.Signup(ctx, SignupInput{Email: email, Password: pass, Name: "Test User"})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if _, err := env.engine.VerifyEmail(ctx, email, env.sender.lastCode(t, email)); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	user, err := env.users.GetByID(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	return user
}
