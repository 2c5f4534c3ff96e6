package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "watch",
		Name:      "events_total",
		Help:      "Filesystem events accepted after ignore filtering.",
	})
	metricFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "watch",
		Name:      "flushes_total",
		Help:      "Debounce windows that delivered at least one signal.",
	})
	metricSignals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "watch",
		Name:      "signals_total",
		Help:      "File signals delivered to the invalidator.",
	})
)
