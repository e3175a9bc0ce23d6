package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eta",
		Subsystem: "dispatch",
		Name:      "requests_total",
		Help:      "Playback requests by response disposition.",
	}, []string{"status"})

	CacheEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eta",
		Subsystem: "cache",
		Name:      "events_total",
		Help:      "Cache classification outcomes.",
	}, []string{"status"})

	ResolverFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eta",
		Subsystem: "resolver",
		Name:      "fetches_total",
		Help:      "Direct-link fetches by outcome.",
	}, []string{"outcome"})

	UpstreamBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eta",
		Subsystem: "splice",
		Name:      "upstream_bytes_total",
		Help:      "Bytes proxied from upstream storage.",
	})

	CacheServedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eta",
		Subsystem: "cache",
		Name:      "served_bytes_total",
		Help:      "Bytes served from local fragments.",
	})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		CacheEvents,
		ResolverFetches,
		UpstreamBytes,
		CacheServedBytes,
	)
}
