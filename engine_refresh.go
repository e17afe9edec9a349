package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/studydeck/authcore/jwt"
	"github.com/studydeck/authcore/session"
)

// Refresh rotates a refresh token: the presented token's session record is
// atomically superseded by a record for a freshly minted session identifier,
// and a new token pair is returned. A token whose session record is gone —
// already rotated, logged out, or expired — fails with [ErrTokenNotValid],
// which is the replay detection: rotation makes every refresh token single
// use.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := e.parseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := e.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	nextSessionID := uuid.NewString()
	nextRefresh, err := e.tokens.SignRefresh(user.ID, user.Email, nextSessionID)
	if err != nil {
		return nil, err
	}

	_, err = e.sessions.Rotate(
		ctx,
		user.ID,
		claims.SessionID,
		nextSessionID,
		session.Digest(refreshToken),
		session.Digest(nextRefresh),
		e.config.RefreshTTL,
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrHashMismatch):
			// A live record with a different digest: someone else holds a
			// token with these claims.
			e.metrics.IncReplayDetections()
			e.log.Warnw("refresh digest mismatch", "user", user.ID, "session", claims.SessionID)
			return nil, ErrTokenNotValid
		case errors.Is(err, session.ErrNotFound):
			return nil, ErrTokenNotValid
		default:
			return nil, mapSessionErr(err)
		}
	}

	access, accessExpiresAt, err := e.tokens.SignAccess(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	e.metrics.IncRotations()
	return &RefreshResult{
		AccessToken:          access,
		RefreshToken:         nextRefresh,
		AccessTokenExpiresAt: accessExpiresAt,
	}, nil
}

// Logout validates a refresh token the same way rotation does and deletes
// its session record without minting a successor. The error surface is
// deliberately flat: any invalid, replayed, or already logged-out token
// fails with [ErrTokenNotValid], so a caller cannot probe whether a session
// existed.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	claims, err := e.parseRefresh(refreshToken)
	if err != nil {
		return err
	}

	user, err := e.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrTokenNotValid
		}
		return err
	}

	err = e.sessions.CompareAndDelete(ctx, user.ID, claims.SessionID, session.Digest(refreshToken))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrHashMismatch) {
			return ErrTokenNotValid
		}
		return mapSessionErr(err)
	}
	return nil
}

func (e *Engine) parseRefresh(refreshToken string) (*jwt.Claims, error) {
	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrWrongTokenType) {
			return nil, ErrInvalidTokenType
		}
		return nil, ErrTokenNotValid
	}
	return claims, nil
}
