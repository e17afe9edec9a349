package authcore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/studydeck/authcore/session"
)

// Login authenticates an email/password pair and establishes a new session:
// it mints a session identifier, signs a refresh token embedding it, stores
// the token's digest with the request's device metadata under the session
// key, and returns the token pair. The raw refresh token is returned exactly
// once and never persisted.
//
// An unknown email fails with [ErrUserNotFound]; a wrong password with
// [ErrInvalidCredentials]. Upstream does not mask the difference.
func (e *Engine) Login(ctx context.Context, email, plaintext string, reqCtx RequestContext) (*LoginResult, error) {
	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		e.metrics.IncLoginFailures()
		return nil, err
	}

	ok, err := e.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil || !ok {
		e.metrics.IncLoginFailures()
		return nil, ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	refresh, err := e.tokens.SignRefresh(user.ID, user.Email, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &session.Record{
		Hash:       session.Digest(refresh),
		UserAgent:  reqCtx.UserAgent,
		IP:         reqCtx.IP,
		CreatedAt:  now.Unix(),
		DeviceInfo: deviceLabel(reqCtx.UserAgent),
	}
	if err := e.sessions.Save(ctx, user.ID, sessionID, rec, e.config.RefreshTTL); err != nil {
		return nil, mapSessionErr(err)
	}

	access, accessExpiresAt, err := e.tokens.SignAccess(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	if err := e.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		// Best effort: a failed timestamp update must not undo the login.
		e.log.Warnw("last-login update failed", "user", user.ID, "err", err)
	}

	e.metrics.IncLogins()
	return &LoginResult{
		AccessToken:          access,
		RefreshToken:         refresh,
		AccessTokenExpiresAt: accessExpiresAt,
		User:                 user.Public(),
	}, nil
}
