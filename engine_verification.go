package authcore

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/studydeck/authcore/notify"
)

// VerifyEmail moves a credential from unverified to verified when the
// presented code matches the stored pair and has not expired. On success the
// code pair is cleared together with the flag flip.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) (*PublicUser, error) {
	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsEmailVerified {
		return nil, ErrAlreadyVerified
	}
	if user.VerificationCode == nil || !codesEqual(*user.VerificationCode, code) {
		e.codeFailureMetric("verification")
		return nil, ErrInvalidCode
	}
	if user.VerificationCodeExpiresAt == nil || time.Now().After(*user.VerificationCodeExpiresAt) {
		e.codeFailureMetric("verification")
		return nil, ErrCodeExpired
	}

	if err := e.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, err
	}

	user.IsEmailVerified = true
	public := user.Public()
	return &public, nil
}

// ResendVerification issues a brand-new code pair, overwriting any previous
// one, and fails with [ErrAlreadyVerified] on a verified account.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return ErrAlreadyVerified
	}

	code, err := e.codes.Generate()
	if err != nil {
		return err
	}
	if err := e.users.SetVerificationCode(ctx, user.ID, code.Value, code.ExpiresAt); err != nil {
		return err
	}

	e.sendCode(ctx, user.Email, notify.TemplateVerificationCode, code.Value)
	return nil
}

func (e *Engine) codeFailureMetric(flow string) {
	e.metrics.IncCodeFailures(flow)
}

func codesEqual(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
