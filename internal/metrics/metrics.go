// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors the protocol engine updates.
type Metrics struct {
	// ActiveSessions tracks live websocket sessions.
	ActiveSessions prometheus.Gauge
	// Broadcasts counts room fan-outs by packet kind.
	Broadcasts *prometheus.CounterVec
	// CoalescedDeltas counts unreliable deltas absorbed into a pending
	// burst buffer instead of being broadcast on arrival.
	CoalescedDeltas prometheus.Counter
	// Errors counts errors returned to clients by error type.
	Errors *prometheus.CounterVec
}

// New registers the engine collectors with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "syncroom",
			Name:      "active_sessions",
			Help:      "Number of live websocket sessions.",
		}),
		Broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncroom",
			Name:      "broadcasts_total",
			Help:      "Room broadcasts by packet kind.",
		}, []string{"kind"}),
		CoalescedDeltas: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "syncroom",
			Name:      "coalesced_deltas_total",
			Help:      "Unreliable deltas merged into a burst buffer.",
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncroom",
			Name:      "client_errors_total",
			Help:      "Errors returned to clients by type.",
		}, []string{"type"}),
	}
}
