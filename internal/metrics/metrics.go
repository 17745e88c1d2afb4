package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "moto_client"

// Metrics holds the collectors shared by the transport, session, cache and mutation layers.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CacheReads      *prometheus.CounterVec
	CacheFetches    *prometheus.CounterVec
	TokenRefreshes  *prometheus.CounterVec
	Mutations       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves them unregistered,
// which is what tests and embedded callers without a metrics endpoint want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "HTTP requests sent to the API by method and outcome kind.",
		}, []string{"method", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		CacheReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "reads_total",
			Help:      "Cache reads by result (hit, miss).",
		}, []string{"result"}),
		CacheFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetches_total",
			Help:      "Completed cache fetches by outcome (applied, failed, discarded).",
		}, []string{"outcome"}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "token_refreshes_total",
			Help:      "Access token refreshes by outcome.",
		}, []string{"outcome"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mutation",
			Name:      "total",
			Help:      "Mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.RequestDuration, m.CacheReads, m.CacheFetches, m.TokenRefreshes, m.Mutations)
	}
	return m
}

func (m *Metrics) ObserveRequest(method, outcome string, d time.Duration) {
	m.Requests.WithLabelValues(method, outcome).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) CacheRead(result string) {
	m.CacheReads.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheFetch(outcome string) {
	m.CacheFetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TokenRefresh(outcome string) {
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Mutation(operation, outcome string) {
	m.Mutations.WithLabelValues(operation, outcome).Inc()
}
