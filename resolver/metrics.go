package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// callsTotal counts resolver calls by operation and result
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foogate_resolver_calls_total",
		Help: "Total resolver calls by operation and result",
	}, []string{"operation", "result"})

	// callDuration tracks resolver latency, store round trip included
	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foogate_resolver_duration_seconds",
		Help:    "Resolver duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"operation"})
)
