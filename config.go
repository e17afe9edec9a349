package authcore

import (
	"errors"
	"time"
)

// RefreshTokenTTL is the refresh-token validity window. The session-record
// TTL in Redis is this same value; the two must never diverge, so both are
// fed from this single constant.
const RefreshTokenTTL = 30 * 24 * time.Hour

const (
	defaultAccessTTL        = 15 * time.Minute
	defaultCodeTTL          = 15 * time.Minute
	defaultCodeDigits       = 6
	defaultResetMaxAttempts = 5
)

// Config captures the tunable behavior of the [Engine]. The signing secret
// is injected here once at startup and passed down to the token codec; it is
// never read from process globals.
type Config struct {
	// JWTSecret signs access and refresh tokens (HS256). Mandatory.
	JWTSecret []byte
	// Issuer is stamped into the iss claim when non-empty.
	Issuer string
	// AccessTTL bounds the blast radius of a leaked stateless access token.
	// Defaults to 15 minutes.
	AccessTTL time.Duration
	// RefreshTTL is the refresh-token and session lifetime. Defaults to
	// [RefreshTokenTTL].
	RefreshTTL time.Duration
	// CodeTTL is the verification/reset code validity. Defaults to 15 minutes.
	CodeTTL time.Duration
	// CodeDigits is the one-time code width. Defaults to 6.
	CodeDigits int
	// ResetMaxAttempts is the wrong-guess ceiling per issued reset code.
	// Defaults to 5.
	ResetMaxAttempts int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.AccessTTL <= 0 {
		out.AccessTTL = defaultAccessTTL
	}
	if out.RefreshTTL <= 0 {
		out.RefreshTTL = RefreshTokenTTL
	}
	if out.CodeTTL <= 0 {
		out.CodeTTL = defaultCodeTTL
	}
	if out.CodeDigits <= 0 {
		out.CodeDigits = defaultCodeDigits
	}
	if out.ResetMaxAttempts <= 0 {
		out.ResetMaxAttempts = defaultResetMaxAttempts
	}
	return out
}

func (c *Config) validate() error {
	if len(c.JWTSecret) == 0 {
		return errors.New("authcore: JWT secret is required")
	}
	if c.AccessTTL >= c.RefreshTTL {
		return errors.New("authcore: access TTL must be shorter than refresh TTL")
	}
	return nil
}
