package authcore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/studydeck/authcore/jwt"
	"github.com/studydeck/authcore/notify"
	"github.com/studydeck/authcore/otp"
	"github.com/studydeck/authcore/password"
	"github.com/studydeck/authcore/session"
)

// Engine orchestrates the authentication flows over its collaborators. It
// holds no mutable state of its own; every instance is safe for concurrent
// use once built.
type Engine struct {
	config   Config
	log      *zap.SugaredLogger
	users    UserStore
	sessions *session.Store
	tokens   *jwt.Manager
	hasher   *password.Hasher
	codes    *otp.Generator
	notifier notify.Sender
	roles    RoleAssigner
	metrics  *Metrics
}

// Deps are the collaborators the [Engine] composes. Users, Sessions, and
// Hasher are mandatory; Notifier, Roles, and Metrics may be nil (no
// notifications, no role grant, no counters).
type Deps struct {
	Log      *zap.SugaredLogger
	Users    UserStore
	Sessions *session.Store
	Hasher   *password.Hasher
	Notifier notify.Sender
	Roles    RoleAssigner
	Metrics  *Metrics
}

// New validates the configuration, builds the token codec from the injected
// signing secret, and returns a ready [Engine]. Configuration errors here
// are fatal by contract: the process must not serve traffic with a broken
// signing key.
func New(cfg Config, deps Deps) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Users == nil {
		return nil, errors.New("authcore: user store is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("authcore: session store is required")
	}
	if deps.Hasher == nil {
		return nil, errors.New("authcore: password hasher is required")
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.Issuer,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:   cfg,
		log:      deps.Log,
		users:    deps.Users,
		sessions: deps.Sessions,
		tokens:   tokens,
		hasher:   deps.Hasher,
		codes:    otp.NewGenerator(cfg.CodeDigits, cfg.CodeTTL),
		notifier: deps.Notifier,
		roles:    deps.Roles,
		metrics:  deps.Metrics,
	}, nil
}

// VerifyAccess validates an access token's signature and expiry and returns
// its claims. Access tokens are stateless: no store lookup happens here.
func (e *Engine) VerifyAccess(token string) (*jwt.Claims, error) {
	claims, err := e.tokens.ParseAccess(token)
	if err != nil {
		return nil, ErrTokenNotValid
	}
	return claims, nil
}

// mapSessionErr lifts session-store connectivity failures into the engine's
// [ErrUnavailable] class so the boundary maps them to 503.
func mapSessionErr(err error) error {
	if errors.Is(err, session.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (e *Engine) sendCode(ctx context.Context, address, template, code string) {
	if e.notifier == nil {
		return
	}
	// Fire and forget: delivery failure is logged, the surrounding state
	// change stands.
	err := e.notifier.Send(ctx, address, template, map[string]string{"code": code})
	if err != nil {
		e.log.Warnw("notification send failed", "template", template, "err", err)
	}
}
