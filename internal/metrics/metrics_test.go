package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpstream(time.Now(), nil)
		m.PollResult("blockchainInfo", false)
		m.GateOutcome("forward", "ok")
		m.VoteCast()
		m.ProposalCreated()
		m.SubscriberAdded()
		m.SubscriberRemoved()
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveUpstream(time.Now(), nil)
	m.ObserveUpstream(time.Now(), errors.New("down"))
	m.ObserveUpstream(time.Now(), errors.New("down"))
	m.VoteCast()
	m.SubscriberAdded()
	m.SubscriberAdded()
	m.SubscriberRemoved()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamCalls.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.upstreamCalls.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscribers))
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.GateOutcome("extension", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "soulvan_gateway_gate_requests_total")
}
