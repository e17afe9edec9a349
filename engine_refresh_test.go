package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/studydeck/authcore/session"
)

func TestLoginIssuesTokenPairAndSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signupVerified(t, "a@example.com", "hunter2hunter2")

	res, err := env.engine.Login(ctx, "a@example.com", "hunter2hunter2", RequestContext{
		IP:        "198.51.100.4",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/127.0",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("token pair incomplete")
	}
	if res.AccessToken == res.RefreshToken {
		t.Fatal("access and refresh tokens are identical")
	}
	if res.User.ID != user.ID {
		t.Fatalf("login returned wrong user: %+v", res.User)
	}

	claims, err := env.engine.VerifyAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if claims.Subject != user.ID {
		t.Fatalf("access subject = %q, want %q", claims.Subject, user.ID)
	}

	// One session record exists, keyed by the sid inside the refresh token,
	// holding the token digest and the request metadata.
	keys := env.redis.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one session key, got %v", keys)
	}
	data, err := env.redis.Get(keys[0])
	if err != nil {
		t.Fatalf("miniredis get failed: %v", err)
	}
	var rec session.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		t.Fatalf("decode session record: %v", err)
	}
	if rec.Hash != session.Digest(res.RefreshToken) {
		t.Fatal("stored hash is not the refresh token digest")
	}
	if rec.IP != "198.51.100.4" || rec.DeviceInfo != "Chrome on Windows" {
		t.Fatalf("metadata mismatch: %+v", rec)
	}

	stored, err := env.users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.LastLoginAt == nil {
		t.Fatal("last login not recorded")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signupVerified(t, "a@example.com", "hunter2hunter2")

	if _, err := env.engine.Login(ctx, "a@example.com", "wrong-password", RequestContext{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "ghost@example.com", "hunter2hunter2", RequestContext{}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if len(env.redis.Keys()) != 0 {
		t.Fatal("failed login left a session behind")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signupVerified(t, "a@example.com", "hunter2hunter2")

	login, err := env.engine.Login(ctx, "a@example.com", "hunter2hunter2", RequestContext{})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	rotated, err := env.engine.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if rotated.RefreshToken == login.RefreshToken {
		t.Fatal("rotation returned the same refresh token")
	}
	if _, err := env.engine.VerifyAccess(rotated.AccessToken); err != nil {
		t.Fatalf("rotated access token invalid: %v", err)
	}

	// The predecessor is single use: replaying it fails as invalid.
	if _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrTokenNotValid) {
		t.Fatalf("replayed token: expected ErrTokenNotValid, got %v", err)
	}

	// The successor chain stays live.
	if _, err := env.engine.Refresh(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("successor Refresh failed: %v", err)
	}
	if len(env.redis.Keys()) != 1 {
		t.Fatalf("expected exactly one session key after rotations, got %v", env.redis.Keys())
	}
}

func TestRefreshRejectsWrongTokenKind(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signupVerified(t, "a@example.com", "hunter2hunter2")

	login, err := env.engine.Login(ctx, "a@example.com", "hunter2hunter2", RequestContext{})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, login.AccessToken); !errors.Is(err, ErrInvalidTokenType) {
		t.Fatalf("access token on refresh: expected ErrInvalidTokenType, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, "not.a.jwt"); !errors.Is(err, ErrTokenNotValid) {
		t.Fatalf("garbage token: expected ErrTokenNotValid, got %v", err)
	}
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signupVerified(t, "a@example.com", "hunter2hunter2")

	login, err := env.engine.Login(ctx, "a@example.com", "hunter2hunter2", RequestContext{})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := env.engine.VerifyAccess(login.RefreshToken); !errors.Is(err, ErrTokenNotValid) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signupVerified(t, "a@example.com", "hunter2hunter2")

	login, err := env.engine.Login(ctx, "a@example.com", "hunter2hunter2", RequestContext{})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := env.engine.Logout(ctx, login.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if len(env.redis.Keys()) != 0 {
		t.Fatal("session record survived logout")
	}

	// The token's session is gone: refresh and repeat logout both report an
	// invalid token.
	if _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrTokenNotValid) {
		t.Fatalf("refresh after logout: expected ErrTokenNotValid, got %v", err)
	}
	if err := env.engine.Logout(ctx, login.RefreshToken); !errors.Is(err, ErrTokenNotValid) {
		t.Fatalf("repeat logout: expected ErrTokenNotValid, got %v", err)
	}
}

func TestLogoutLeavesOtherSessionsAlive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signupVerified(t, "a@example.com", "hunter2hunter2")

	first, err := env.engine.Login(ctx, "a@example.com", "hunter2hunter2", RequestContext{UserAgent: "device one"})
	if err != nil {
		t.Fatalf("first Login failed: %v", err)
	}
	second, err := env.engine.Login(ctx, "a@example.com", "hunter2hunter2", RequestContext{UserAgent: "device two"})
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}

	if err := env.engine.Logout(ctx, first.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("unrelated session broken by logout: %v", err)
	}
}
