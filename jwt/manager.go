// Package jwt signs and verifies the compact claim sets used as access and
// refresh tokens. Access tokens are short-lived and stateless; refresh
// tokens additionally carry a session identifier joining them to the
// server-side session record.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const refreshTokenType = "refresh"

var (
	// ErrWrongTokenType is returned when a token's typ claim does not match
	// the expected kind (an access token presented for refresh, or vice
	// versa).
	ErrWrongTokenType = errors.New("wrong token type")
)

// Config holds the signing material and expiry policies. The secret is
// loaded once at startup and treated as immutable afterwards.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

// Claims is the signed claim set for both token kinds. TokenType and
// SessionID are only present on refresh tokens.
type Claims struct {
	Email     string `json:"email"`
	TokenType string `json:"typ,omitempty"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and parses tokens with a single HS256 secret.
type Manager struct {
	config Config
}

// NewManager validates the configuration and returns a [Manager]. A missing
// secret or non-positive TTL is a configuration error; callers must treat it
// as fatal before serving traffic.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: signing secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt: invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// SignAccess mints a short-lived access token for the given subject and
// returns it with its expiry instant.
func (m *Manager) SignAccess(userID, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.config.AccessTTL)

	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// SignRefresh mints a refresh token embedding the session identifier that
// joins it to its server-side session record.
func (m *Manager) SignRefresh(userID, email, sessionID string) (string, error) {
	now := time.Now()

	claims := Claims{
		Email:     email,
		TokenType: refreshTokenType,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.RefreshTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// ParseAccess verifies signature and expiry of an access token. Refresh
// tokens are rejected with [ErrWrongTokenType] so they can never be used to
// authorize a request directly.
func (m *Manager) ParseAccess(token string) (*Claims, error) {
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "" {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ParseRefresh verifies signature and expiry of a refresh token and requires
// the typ claim to equal "refresh".
func (m *Manager) ParseRefresh(token string) (*Claims, error) {
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != refreshTokenType {
		return nil, ErrWrongTokenType
	}
	if claims.SessionID == "" {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (m *Manager) parse(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
