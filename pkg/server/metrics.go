package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "server",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	metricRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "server",
		Name:      "rate_limited_total",
		Help:      "Message requests rejected by the rate limiter.",
	})
	metricStreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spyglass",
		Subsystem: "server",
		Name:      "stream_clients",
		Help:      "Connected WebSocket stream clients.",
	})
	metricStreamDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "server",
		Name:      "stream_dropped_events_total",
		Help:      "Events dropped because a stream client was slow.",
	})
)
