package authcore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus counters. All increment methods are
// nil-receiver safe so the engine runs without a registry in tests.
type Metrics struct {
	signups          prometheus.Counter
	logins           prometheus.Counter
	loginFailures    prometheus.Counter
	rotations        prometheus.Counter
	replayDetections prometheus.Counter
	codeFailures     *prometheus.CounterVec
}

// NewMetrics registers the engine counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		signups: factory.NewCounter(prometheus.CounterOpts{
			Name: "authcore_signups_total",
			Help: "Accounts created or overwritten via signup.",
		}),
		logins: factory.NewCounter(prometheus.CounterOpts{
			Name: "authcore_logins_total",
			Help: "Successful password logins.",
		}),
		loginFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "authcore_login_failures_total",
			Help: "Rejected password logins.",
		}),
		rotations: factory.NewCounter(prometheus.CounterOpts{
			Name: "authcore_refresh_rotations_total",
			Help: "Successful refresh-token rotations.",
		}),
		replayDetections: factory.NewCounter(prometheus.CounterOpts{
			Name: "authcore_refresh_replays_total",
			Help: "Refresh attempts whose digest mismatched a live session record.",
		}),
		codeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_code_failures_total",
			Help: "Rejected one-time codes by flow.",
		}, []string{"flow"}),
	}
}

// IncSignups counts a completed signup.
func (m *Metrics) IncSignups() {
	if m != nil {
		m.signups.Inc()
	}
}

// IncLogins counts a successful login.
func (m *Metrics) IncLogins() {
	if m != nil {
		m.logins.Inc()
	}
}

// IncLoginFailures counts a rejected login.
func (m *Metrics) IncLoginFailures() {
	if m != nil {
		m.loginFailures.Inc()
	}
}

// IncRotations counts a successful refresh rotation.
func (m *Metrics) IncRotations() {
	if m != nil {
		m.rotations.Inc()
	}
}

// IncReplayDetections counts a digest mismatch on a live session record.
func (m *Metrics) IncReplayDetections() {
	if m != nil {
		m.replayDetections.Inc()
	}
}

// IncCodeFailures counts a rejected one-time code for the given flow.
func (m *Metrics) IncCodeFailures(flow string) {
	if m != nil {
		m.codeFailures.WithLabelValues(flow).Inc()
	}
}
