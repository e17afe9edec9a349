package authcore

import (
	"context"
	"time"
)

// User is the credential record owned by the relational store. Only the
// Engine mutates it.
type User struct {
	ID              string
	Email           string
	Name            string
	PasswordHash    string
	IsEmailVerified bool

	// Verification code pair: always set and cleared together.
	VerificationCode          *string
	VerificationCodeExpiresAt *time.Time

	// Password-recovery state. CanResetPassword is never true while
	// PasswordResetCode is non-nil; the two are mutually exclusive phases of
	// one recovery flow.
	PasswordResetCode          *string
	PasswordResetCodeExpiresAt *time.Time
	ResetCodeAttempts          int
	CanResetPassword           bool

	LastLoginAt *time.Time
	CreatedAt   time.Time
}

// PublicUser is the safe projection of a credential record returned to
// callers. It never carries the password hash or any pending codes.
type PublicUser struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}

// Public returns the caller-safe projection of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		IsEmailVerified: u.IsEmailVerified,
	}
}

// UserStore is the credential-store interface the Engine drives. The
// production implementation lives in internal/userstore (Postgres); tests
// substitute an in-memory fake.
//
// Implementations return [ErrUserNotFound] for missing records and wrap
// connectivity failures in [ErrUnavailable]. Counter increments and the
// reset-gate consume must be atomic at the store level.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, u *User) (*User, error)
	// OverwriteUnverified replaces the password hash, profile fields, and
	// verification code of an existing unverified record in place.
	OverwriteUnverified(ctx context.Context, u *User) error
	MarkVerified(ctx context.Context, id string) error
	SetVerificationCode(ctx context.Context, id, code string, expiresAt time.Time) error
	// SetResetCode issues a fresh reset code: stores the pair, zeroes the
	// attempt counter, and clears the reset gate.
	SetResetCode(ctx context.Context, id, code string, expiresAt time.Time) error
	// IncrementResetAttempts atomically bumps the attempt counter and
	// returns the new value.
	IncrementResetAttempts(ctx context.Context, id string) (int, error)
	// GrantResetGate clears the pending code pair, zeroes the counter, and
	// opens the single-use reset gate in one update.
	GrantResetGate(ctx context.Context, id string) error
	// ConsumePasswordReset stores the new hash and closes the gate, but only
	// if the gate is currently open; otherwise it returns [ErrNotVerified].
	ConsumePasswordReset(ctx context.Context, id, newHash string) error
	UpdatePasswordHash(ctx context.Context, id, newHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// RoleAssigner grants the default authorization role to a freshly created
// account. Role evaluation itself is outside this core.
type RoleAssigner interface {
	AssignDefaultRole(ctx context.Context, userID string) error
}

// RequestContext carries the client metadata captured at login and stored
// alongside the session record.
type RequestContext struct {
	IP        string
	UserAgent string
}

// SignupInput is the boundary payload for account creation.
type SignupInput struct {
	Email    string
	Password string
	Name     string
}

// SignupResult is returned on successful signup.
type SignupResult struct {
	Message string     `json:"message"`
	User    PublicUser `json:"user"`
}

// LoginResult carries the freshly issued token pair. The raw refresh token
// appears here exactly once and is never persisted in cleartext.
type LoginResult struct {
	AccessToken          string     `json:"accessToken"`
	RefreshToken         string     `json:"refreshToken"`
	AccessTokenExpiresAt time.Time  `json:"accessTokenExpiresAt"`
	User                 PublicUser `json:"user"`
}

// RefreshResult carries the successor token pair minted by rotation.
type RefreshResult struct {
	AccessToken          string    `json:"accessToken"`
	RefreshToken         string    `json:"refreshToken"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
}

// ForgotPasswordResult mirrors the upstream response shape. UserID is empty
// when the email is unknown so the endpoint always answers 200.
type ForgotPasswordResult struct {
	UserID string `json:"user_id,omitempty"`
}
