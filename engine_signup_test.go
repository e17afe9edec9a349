package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestSignupCreatesAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.Signup(ctx, SignupInput{
		Email:    "new@example.com",
		Password: "hunter2hunter2",
		Name:     "New User",
	})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if res.Message != "User registered successfully." {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if res.User.ID == "" || res.User.Email != "new@example.com" {
		t.Fatalf("unexpected public user: %+v", res.User)
	}
	if res.User.IsEmailVerified {
		t.Fatal("fresh account reported verified")
	}

	stored, err := env.users.GetByID(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "hunter2hunter2" {
		t.Fatal("password stored missing or in cleartext")
	}
	if stored.VerificationCode == nil || stored.VerificationCodeExpiresAt == nil {
		t.Fatal("verification code pair not set")
	}
	if env.sender.lastCode(t, "new@example.com") != *stored.VerificationCode {
		t.Fatal("delivered code differs from stored code")
	}
	if env.users.roles[res.User.ID] != "user" {
		t.Fatal("default role not assigned")
	}
}

func TestSignupDuplicateVerified(t *testing.T) {
	env := newTestEnv(t)
	env.signupVerified(t, "taken@example.com", "hunter2hunter2")

	_, err := env.engine.Signup(context.Background(), SignupInput{
		Email:    "taken@example.com",
		Password: "another-pass-123",
		Name:     "Impostor",
	})
	if !errors.Is(err, ErrDuplicateVerifiedAccount) {
		t.Fatalf("expected ErrDuplicateVerifiedAccount, got %v", err)
	}
}

func TestSignupOverwritesUnverified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.engine.Signup(ctx, SignupInput{
		Email:    "retry@example.com",
		Password: "first-password",
		Name:     "First Try",
	})
	if err != nil {
		t.Fatalf("first Signup failed: %v", err)
	}
	firstCode := env.sender.lastCode(t, "retry@example.com")

	second, err := env.engine.Signup(ctx, SignupInput{
		Email:    "retry@example.com",
		Password: "second-password",
		Name:     "Second Try",
	})
	if err != nil {
		t.Fatalf("second Signup failed: %v", err)
	}

	if second.User.ID != first.User.ID {
		t.Fatalf("overwrite changed the ID: %q -> %q", first.User.ID, second.User.ID)
	}
	if env.users.count() != 1 {
		t.Fatalf("expected a single record, store holds %d", env.users.count())
	}

	stored, err := env.users.GetByID(ctx, first.User.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Name != "Second Try" {
		t.Fatalf("profile not overwritten: %q", stored.Name)
	}
	if *stored.VerificationCode == firstCode {
		t.Fatal("verification code not reissued")
	}

	// The first password must no longer authenticate after verification.
	if _, err := env.engine.VerifyEmail(ctx, "retry@example.com", *stored.VerificationCode); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, "retry@example.com", "first-password", RequestContext{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("stale password still accepted: %v", err)
	}
	if _, err := env.engine.Login(ctx, "retry@example.com", "second-password", RequestContext{}); err != nil {
		t.Fatalf("Login with overwritten password failed: %v", err)
	}
}
