package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studydeck/authcore/notify"
)

// Signup creates a credential record for a new email, or overwrites an
// existing unverified one in place so an abandoned verification can be
// retried. An already verified account fails with
// [ErrDuplicateVerifiedAccount]. The verification code is delivered
// fire-and-forget: a send failure is logged and the account persists.
func (e *Engine) Signup(ctx context.Context, input SignupInput) (*SignupResult, error) {
	existing, err := e.users.GetByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if existing != nil && existing.IsEmailVerified {
		return nil, ErrDuplicateVerifiedAccount
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	code, err := e.codes.Generate()
	if err != nil {
		return nil, err
	}

	var user *User
	if existing != nil {
		existing.Name = input.Name
		existing.PasswordHash = hash
		existing.VerificationCode = &code.Value
		existing.VerificationCodeExpiresAt = &code.ExpiresAt
		if err := e.users.OverwriteUnverified(ctx, existing); err != nil {
			return nil, err
		}
		user = existing
	} else {
		created, err := e.users.Create(ctx, &User{
			Email:                     input.Email,
			Name:                      input.Name,
			PasswordHash:              hash,
			VerificationCode:          &code.Value,
			VerificationCodeExpiresAt: &code.ExpiresAt,
			CreatedAt:                 time.Now(),
		})
		if err != nil {
			return nil, err
		}
		if e.roles != nil {
			if err := e.roles.AssignDefaultRole(ctx, created.ID); err != nil {
				return nil, fmt.Errorf("assign default role: %w", err)
			}
		}
		user = created
	}

	e.sendCode(ctx, user.Email, notify.TemplateVerificationCode, code.Value)
	e.metrics.IncSignups()

	return &SignupResult{
		Message: "User registered successfully.",
		User:    user.Public(),
	}, nil
}
