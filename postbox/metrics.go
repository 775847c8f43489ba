package postbox

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the postbox collectors. The CLI serves it next to the other
// package registries.
var Registry = prometheus.NewRegistry()

var (
	pendingEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zapbox",
		Subsystem: "postbox",
		Name:      "pending_events",
		Help:      "Events waiting for confirmation from at least one relay",
	})
	sendAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapbox",
			Subsystem: "postbox",
			Name:      "send_attempts_total",
			Help:      "Event sends, including retries, by relay",
		},
		[]string{"relay"},
	)
	confirmations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zapbox",
		Subsystem: "postbox",
		Name:      "confirmations_total",
		Help:      "OK responses received for queued events",
	})
)

func init() {
	Registry.MustRegister(pendingEvents, sendAttempts, confirmations)
}
