package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the state machine's externally interesting transitions.
// Construct with a nil registerer in tests to get unregistered no-op-ish
// counters.
type Metrics struct {
	Bootstraps     *prometheus.CounterVec
	Resolutions    *prometheus.CounterVec
	Logins         *prometheus.CounterVec
	DirectoryLoads *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Bootstraps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keel",
			Subsystem: "identity",
			Name:      "bootstraps_total",
			Help:      "Bootstrap completions by outcome.",
		}, []string{"outcome"}), // authenticated | anonymous | failed
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keel",
			Subsystem: "identity",
			Name:      "resolutions_total",
			Help:      "Profile resolution completions by outcome.",
		}, []string{"outcome"}), // applied | failed | superseded
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keel",
			Subsystem: "identity",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}), // accepted | rejected
		DirectoryLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keel",
			Subsystem: "identity",
			Name:      "directory_loads_total",
			Help:      "Directory listing loads by result.",
		}, []string{"result"}), // ok | failed
	}
}
