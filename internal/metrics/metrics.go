// Package metrics exposes gateway counters in the Prometheus format.
//
// All helpers are safe to call on a nil *Metrics so components can be built
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "soulvan_gateway"

type Metrics struct {
	registry *prometheus.Registry

	upstreamCalls   *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
	pollResults     *prometheus.CounterVec
	gateRequests    *prometheus.CounterVec
	votes           prometheus.Counter
	proposals       prometheus.Gauge
	subscribers     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "JSON-RPC calls made to the upstream daemon by result.",
		}, []string{"result"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_call_seconds",
			Help:      "Latency of upstream JSON-RPC calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		pollResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_results_total",
			Help:      "Status poll outcomes per snapshot field.",
		}, []string{"field", "result"}),
		gateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_requests_total",
			Help:      "RPC requests seen by the method gate by class and outcome.",
		}, []string{"class", "outcome"}),
		votes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "governance_votes_total",
			Help:      "Votes accepted by the governance registry.",
		}),
		proposals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "governance_proposals",
			Help:      "Proposals held by the governance registry.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Connected status stream subscribers.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.upstreamCalls,
		m.upstreamLatency,
		m.pollResults,
		m.gateRequests,
		m.votes,
		m.proposals,
		m.subscribers,
	)
	return m
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveUpstream(started time.Time, err error) {
	if m == nil {
		return
	}
	m.upstreamLatency.Observe(time.Since(started).Seconds())
	m.upstreamCalls.WithLabelValues(result(err == nil)).Inc()
}

func (m *Metrics) PollResult(field string, ok bool) {
	if m == nil {
		return
	}
	m.pollResults.WithLabelValues(field, result(ok)).Inc()
}

func (m *Metrics) GateOutcome(class, outcome string) {
	if m == nil {
		return
	}
	m.gateRequests.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) VoteCast() {
	if m == nil {
		return
	}
	m.votes.Inc()
}

func (m *Metrics) ProposalCreated() {
	if m == nil {
		return
	}
	m.proposals.Inc()
}

func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
