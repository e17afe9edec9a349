// Package userstore is the Postgres credential store. It owns the users
// table and implements the atomic pieces of the recovery state machine: the
// attempt-counter increment and the single-use reset gate are single SQL
// statements, never read-modify-write round trips.
package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/studydeck/authcore"
)

// Store implements [authcore.UserStore] over Postgres via sqlx.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// New returns a [Store]. timeout bounds every query when positive.
func New(db *sqlx.DB, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

type userRow struct {
	ID                         string       `db:"id"`
	Email                      string       `db:"email"`
	Name                       string       `db:"name"`
	PasswordHash               string       `db:"password_hash"`
	IsEmailVerified            bool         `db:"is_email_verified"`
	VerificationCode           sql.NullString `db:"verification_code"`
	VerificationCodeExpiresAt  sql.NullTime `db:"verification_code_expires_at"`
	PasswordResetCode          sql.NullString `db:"password_reset_code"`
	PasswordResetCodeExpiresAt sql.NullTime `db:"password_reset_code_expires_at"`
	ResetCodeAttempts          int          `db:"reset_code_attempts"`
	CanResetPassword           bool         `db:"can_reset_password"`
	LastLoginAt                sql.NullTime `db:"last_login_at"`
	CreatedAt                  time.Time    `db:"created_at"`
}

const userColumns = `id, email, name, password_hash, is_email_verified,
	verification_code, verification_code_expires_at,
	password_reset_code, password_reset_code_expires_at,
	reset_code_attempts, can_reset_password, last_login_at, created_at`

// EnsureSchema creates the users and user_roles tables if absent. Convenience
// for development; production deployments run migrations.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  is_email_verified BOOLEAN NOT NULL DEFAULT false,
  verification_code TEXT,
  verification_code_expires_at TIMESTAMPTZ,
  password_reset_code TEXT,
  password_reset_code_expires_at TIMESTAMPTZ,
  reset_code_attempts INT NOT NULL DEFAULT 0,
  can_reset_password BOOLEAN NOT NULL DEFAULT false,
  last_login_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE TABLE IF NOT EXISTS user_roles (
  user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  role TEXT NOT NULL,
  PRIMARY KEY (user_id, role)
);
`
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// GetByEmail fetches a credential record by its unique email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*authcore.User, error) {
	return s.getWhere(ctx, "email = $1", email)
}

// GetByID fetches a credential record by identity.
func (s *Store) GetByID(ctx context.Context, id string) (*authcore.User, error) {
	return s.getWhere(ctx, "id = $1", id)
}

func (s *Store) getWhere(ctx context.Context, where string, arg any) (*authcore.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, wrapUnavailable(err)
	}
	return rowToUser(&row), nil
}

// Create inserts a new credential record and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, u *authcore.User) (*authcore.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const query = `
INSERT INTO users (email, name, password_hash, verification_code, verification_code_expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

	var row userRow
	err := s.db.GetContext(ctx, &row, query,
		u.Email, u.Name, u.PasswordHash, u.VerificationCode, u.VerificationCodeExpiresAt)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	return rowToUser(&row), nil
}

// OverwriteUnverified re-creates an abandoned signup in place: new hash,
// profile fields, and verification pair on the existing row. The guard on
// is_email_verified keeps a concurrent verification from being clobbered.
func (s *Store) OverwriteUnverified(ctx context.Context, u *authcore.User) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const query = `
UPDATE users SET
  name = $2,
  password_hash = $3,
  verification_code = $4,
  verification_code_expires_at = $5,
  updated_at = NOW()
WHERE id = $1 AND is_email_verified = false`

	return s.execExpectRow(ctx, query,
		u.ID, u.Name, u.PasswordHash, u.VerificationCode, u.VerificationCodeExpiresAt)
}

// MarkVerified flips the verified flag and clears the code pair in one
// update.
func (s *Store) MarkVerified(ctx context.Context, id string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const query = `
UPDATE users SET
  is_email_verified = true,
  verification_code = NULL,
  verification_code_expires_at = NULL,
  updated_at = NOW()
WHERE id = $1`

	return s.execExpectRow(ctx, query, id)
}

// SetVerificationCode overwrites the verification pair.
func (s *Store) SetVerificationCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const query = `
UPDATE users SET
  verification_code = $2,
  verification_code_expires_at = $3,
  updated_at = NOW()
WHERE id = $1`

	return s.execExpectRow(ctx, query, id, code, expiresAt)
}

// SetResetCode issues a fresh reset code: the pair is stored, the attempt
// counter zeroed, and the reset gate closed, all in one statement so the
// code and the gate can never coexist.
func (s *Store) SetResetCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const query = `
UPDATE users SET
  password_reset_code = $2,
  password_reset_code_expires_at = $3,
  reset_code_attempts = 0,
  can_reset_password = false,
  updated_at = NOW()
WHERE id = $1`

	return s.execExpectRow(ctx, query, id, code, expiresAt)
}

// IncrementResetAttempts bumps the counter server-side and returns the new
// value, staying correct under concurrent guesses.
func (s *Store) IncrementResetAttempts(ctx context.Context, id string) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const query = `
UPDATE users SET
  reset_code_attempts = reset_code_attempts + 1,
  updated_at = NOW()
WHERE id = $1
RETURNING reset_code_attempts`

	var attempts int
	if err := s.db.GetContext(ctx, &attempts, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, authcore.ErrUserNotFound
		}
		return 0, wrapUnavailable(err)
	}
	return attempts, nil
}

// GrantResetGate clears the pending code pair, zeroes the counter, and opens
// the gate in one update.
func (s *Store) GrantResetGate(ctx context.Context, id string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const query = `
UPDATE users SET
  password_reset_code = NULL,
  password_reset_code_expires_at = NULL,
  reset_code_attempts = 0,
  can_reset_password = true,
  updated_at = NOW()
WHERE id = $1`

	return s.execExpectRow(ctx, query, id)
}

// ConsumePasswordReset writes the new hash and closes the gate, conditional
// on the gate being open. The row-count check makes the gate single use even
// under concurrent reset calls.
func (s *Store) ConsumePasswordReset(ctx context.Context, id, newHash string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const query = `
UPDATE users SET
  password_hash = $2,
  can_reset_password = false,
  updated_at = NOW()
WHERE id = $1 AND can_reset_password = true`

	result, err := s.db.ExecContext(ctx, query, id, newHash)
	if err != nil {
		return wrapUnavailable(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapUnavailable(err)
	}
	if affected == 0 {
		return authcore.ErrNotVerified
	}
	return nil
}

// UpdatePasswordHash replaces the stored hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, newHash string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return s.execExpectRow(ctx, query, id, newHash)
}

// TouchLastLogin records the login instant.
func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const query = `UPDATE users SET last_login_at = $2, updated_at = NOW() WHERE id = $1`
	return s.execExpectRow(ctx, query, id, at)
}

// AssignDefaultRole grants the default role to a new account. Satisfies
// [authcore.RoleAssigner].
func (s *Store) AssignDefaultRole(ctx context.Context, userID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	const query = `INSERT INTO user_roles (user_id, role) VALUES ($1, 'user') ON CONFLICT DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Ping reports point-in-time database availability.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *Store) execExpectRow(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapUnavailable(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapUnavailable(err)
	}
	if affected == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %v", authcore.ErrUnavailable, err)
}

func rowToUser(row *userRow) *authcore.User {
	u := &authcore.User{
		ID:                row.ID,
		Email:             row.Email,
		Name:              row.Name,
		PasswordHash:      row.PasswordHash,
		IsEmailVerified:   row.IsEmailVerified,
		ResetCodeAttempts: row.ResetCodeAttempts,
		CanResetPassword:  row.CanResetPassword,
		CreatedAt:         row.CreatedAt,
	}
	if row.VerificationCode.Valid {
		u.VerificationCode = &row.VerificationCode.String
	}
	if row.VerificationCodeExpiresAt.Valid {
		t := row.VerificationCodeExpiresAt.Time
		u.VerificationCodeExpiresAt = &t
	}
	if row.PasswordResetCode.Valid {
		u.PasswordResetCode = &row.PasswordResetCode.String
	}
	if row.PasswordResetCodeExpiresAt.Valid {
		t := row.PasswordResetCodeExpiresAt.Time
		u.PasswordResetCodeExpiresAt = &t
	}
	if row.LastLoginAt.Valid {
		t := row.LastLoginAt.Time
		u.LastLoginAt = &t
	}
	return u
}
