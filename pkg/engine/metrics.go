package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricLoads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "engine",
		Name:      "loads_total",
		Help:      "Load cycles that ran the immediate phase.",
	})
	metricShortCircuits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "engine",
		Name:      "load_short_circuits_total",
		Help:      "Loads answered from the debounce window without recomputation.",
	})
	metricDeferredSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spyglass",
		Subsystem: "engine",
		Name:      "deferred_field_seconds",
		Help:      "Wall time spent acquiring one deferred field.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"field"})
	metricFormats = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "engine",
		Name:      "messages_formatted_total",
		Help:      "Messages turned into part sequences.",
	})
	metricMentionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "engine",
		Name:      "mention_read_failures_total",
		Help:      "Explicit file mentions whose content could not be read.",
	})
)
