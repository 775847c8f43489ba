package zapstore

import (
	"github.com/prometheus/client_golang/prometheus"
)

var Registry = prometheus.NewRegistry()

var zapsInserted = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "zapbox",
	Subsystem: "zapstore",
	Name:      "zaps_inserted_total",
	Help:      "Validated zap receipts added to the store",
})

func init() { Registry.MustRegister(zapsInserted) }
