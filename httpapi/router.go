// Package httpapi exposes the auth engine over HTTP. Routing and JSON
// codecs live here; every protocol invariant is enforced by the engine, so
// handlers only translate between wire shapes and engine calls.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/studydeck/authcore"
)

// Server wires the engine into an http.Handler.
type Server struct {
	engine *authcore.Engine
	log    *zap.SugaredLogger
	health []HealthCheck
}

// HealthCheck is a named connectivity probe run by /healthz.
type HealthCheck struct {
	Name  string
	Check func(r *http.Request) error
}

// NewServer returns a [Server] for the given engine.
func NewServer(engine *authcore.Engine, log *zap.SugaredLogger, health ...HealthCheck) *Server {
	return &Server{engine: engine, log: log, health: health}
}

// Router builds the HTTP routing table. gatherer may be nil to omit the
// metrics endpoint.
func (s *Server) Router(gatherer prometheus.Gatherer) http.Handler {
	r := mux.NewRouter()
	r.Use(securityHeaders)
	r.Use(requestLogging(s.log))

	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	auth.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	auth.HandleFunc("/verify-email", s.handleVerifyEmail).Methods(http.MethodPost)
	auth.HandleFunc("/resend-verification", s.handleResendVerification).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	auth.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	auth.HandleFunc("/forgot-password", s.handleForgotPassword).Methods(http.MethodPost)
	auth.HandleFunc("/verify-passcode", s.handleVerifyPasscode).Methods(http.MethodPost)
	auth.HandleFunc("/reset-password", s.handleResetPassword).Methods(http.MethodPost)
	auth.Handle("/reset-password", s.requireAccess(s.handleChangePassword)).Methods(http.MethodPatch)
	auth.Handle("/profile", s.requireAccess(s.handleProfile)).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}
