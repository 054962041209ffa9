package identity

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts what the manager does. A nil *Metrics records nothing.
type Metrics struct {
	profileFetches  *prometheus.CounterVec
	profileRetries  prometheus.Counter
	coalescedLoads  prometheus.Counter
	discardedWrites prometheus.Counter
	authEvents      *prometheus.CounterVec
	signOuts        *prometheus.CounterVec
	signUpRollbacks prometheus.Counter
}

// NewMetrics registers the identity metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		profileFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "askbar_identity_profile_fetches_total",
			Help: "Profile fetches by outcome.",
		}, []string{"result"}),
		profileRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askbar_identity_read_retries_total",
			Help: "Retried provider and profile reads.",
		}),
		coalescedLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askbar_identity_profile_loads_coalesced_total",
			Help: "Profile loads skipped because one was already in flight.",
		}),
		discardedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askbar_identity_discarded_writes_total",
			Help: "Results dropped because the scope closed or the identity changed.",
		}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "askbar_identity_auth_events_total",
			Help: "Auth events handled, by kind.",
		}, []string{"kind"}),
		signOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "askbar_identity_sign_outs_total",
			Help: "Sign-outs by outcome.",
		}, []string{"result"}),
		signUpRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askbar_identity_sign_up_rollbacks_total",
			Help: "Sign-ups undone because the profile insert failed.",
		}),
	}

	reg.MustRegister(
		m.profileFetches,
		m.profileRetries,
		m.coalescedLoads,
		m.discardedWrites,
		m.authEvents,
		m.signOuts,
		m.signUpRollbacks,
	)
	return m
}

func (m *Metrics) profileFetch(result string) {
	if m != nil {
		m.profileFetches.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) retry() {
	if m != nil {
		m.profileRetries.Inc()
	}
}

func (m *Metrics) coalesced() {
	if m != nil {
		m.coalescedLoads.Inc()
	}
}

func (m *Metrics) discarded() {
	if m != nil {
		m.discardedWrites.Inc()
	}
}

func (m *Metrics) event(kind EventKind) {
	if m != nil {
		m.authEvents.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) signOut(result string) {
	if m != nil {
		m.signOuts.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) rollback() {
	if m != nil {
		m.signUpRollbacks.Inc()
	}
}
