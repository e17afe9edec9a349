package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/studydeck/authcore/notify"
)

// ForgotPassword starts the recovery flow. It always succeeds from the
// caller's point of view: an unknown email yields an empty result rather
// than an error, so the endpoint's status never reveals account existence.
// For a known account it issues a fresh reset code, resets the attempt
// counter, and closes any previously opened reset gate.
func (e *Engine) ForgotPassword(ctx context.Context, email string) (*ForgotPasswordResult, error) {
	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return &ForgotPasswordResult{}, nil
		}
		return nil, err
	}

	code, err := e.codes.Generate()
	if err != nil {
		return nil, err
	}
	if err := e.users.SetResetCode(ctx, user.ID, code.Value, code.ExpiresAt); err != nil {
		return nil, err
	}

	e.sendCode(ctx, user.Email, notify.TemplatePasswordResetCode, code.Value)
	return &ForgotPasswordResult{UserID: user.ID}, nil
}

// VerifyPasscode checks a presented reset code against the pending issuance.
// The attempt ceiling is evaluated before the code itself, so once five
// wrong guesses have accumulated even the correct code fails with
// [ErrTooManyAttempts] until a new code is requested. On a match the pending
// code is cleared and the single-use reset gate opens in the same update,
// keeping the code and the gate mutually exclusive.
func (e *Engine) VerifyPasscode(ctx context.Context, email, code string) error {
	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Do not reveal account existence on this endpoint.
			return ErrNoCodeRequested
		}
		return err
	}

	if user.PasswordResetCode == nil {
		return ErrNoCodeRequested
	}
	if user.PasswordResetCodeExpiresAt == nil || time.Now().After(*user.PasswordResetCodeExpiresAt) {
		return ErrCodeExpired
	}
	if user.ResetCodeAttempts >= e.config.ResetMaxAttempts {
		return ErrTooManyAttempts
	}
	if !codesEqual(*user.PasswordResetCode, code) {
		if _, err := e.users.IncrementResetAttempts(ctx, user.ID); err != nil {
			return err
		}
		e.codeFailureMetric("reset")
		return ErrInvalidCode
	}

	return e.users.GrantResetGate(ctx, user.ID)
}

// ResetPassword completes the recovery flow. It requires the gate opened by
// a prior successful [Engine.VerifyPasscode]; the gate is consumed with the
// hash write in one conditional update, so a second reset after one success
// fails with [ErrNotVerified].
func (e *Engine) ResetPassword(ctx context.Context, email, newPassword string) error {
	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrNotVerified
		}
		return err
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	return e.users.ConsumePasswordReset(ctx, user.ID, hash)
}

// ChangePassword is the authenticated variant: the caller's identity comes
// from a verified access token and the current password re-proves it.
// Existing sessions are left untouched, matching upstream behavior.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := e.hasher.Verify(current, user.PasswordHash)
	if err != nil || !ok {
		return ErrIncorrectPassword
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}
	return e.users.UpdatePasswordHash(ctx, user.ID, hash)
}

// Profile returns the caller-safe projection for an authenticated user.
func (e *Engine) Profile(ctx context.Context, userID string) (*PublicUser, error) {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}
