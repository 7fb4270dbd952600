// Package monitoring collects Prometheus metrics for the bridge.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all bridge metric families.
type Metrics struct {
	registry prometheus.Registerer

	// Command pipeline
	CommandsEnqueued prometheus.Counter
	CommandsApplied  *prometheus.CounterVec

	// Event pipeline
	EventsQueued    *prometheus.CounterVec
	EventsDelivered prometheus.Counter

	// Render loop
	FrameDuration prometheus.Histogram

	// Views
	ViewsActive prometheus.Gauge

	// Security
	SecurityViolations *prometheus.CounterVec
}

// Violation kinds for SecurityViolations.
const (
	ViolationTokenMismatch  = "token_mismatch"
	ViolationPathEscape     = "path_escape"
	ViolationNetworkBlocked = "network_blocked"
)

// New creates a metrics collector registered on reg. A nil reg gets a
// private registry, which keeps independent bridge instances from colliding
// on metric names.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CommandsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "viewbridge_commands_enqueued_total",
			Help: "Total commands accepted into the command queue",
		}),
		CommandsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "viewbridge_commands_applied_total",
			Help: "Total commands applied on the render thread",
		}, []string{"kind"}),

		EventsQueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "viewbridge_events_queued_total",
			Help: "Total events queued for host delivery",
		}, []string{"kind"}),
		EventsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "viewbridge_events_delivered_total",
			Help: "Total events delivered through the host callback",
		}),

		FrameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "viewbridge_frame_duration_seconds",
			Help:    "Wall-clock duration of one render loop iteration before pacing",
			Buckets: []float64{.0005, .001, .002, .004, .008, .016, .033, .066, .1, .25},
		}),

		ViewsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "viewbridge_views_active",
			Help: "Number of live views",
		}),

		SecurityViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "viewbridge_security_violations_total",
			Help: "Blocked security violations by kind",
		}, []string{"kind"}),
	}
}

// ObserveFrame records one render loop iteration.
func (m *Metrics) ObserveFrame(d time.Duration) {
	m.FrameDuration.Observe(d.Seconds())
}

// Registerer returns the prometheus registerer the metrics are bound to.
func (m *Metrics) Registerer() prometheus.Registerer {
	return m.registry
}
