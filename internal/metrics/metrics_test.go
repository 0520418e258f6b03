package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestObserveCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveInbound("message:in:new", "accepted")
	m.ObserveInbound("message:in:new", "accepted")
	m.ObserveReply("audio", "sent")
	m.ObserveValidation(false, "too_short")
	m.ObserveHandoff()
	m.ObserveTurn("replied", 0.2)

	assert.Equal(t, 2.0, counterValue(t, reg, "concierge_webhook_inbound_total", map[string]string{"event": "message:in:new", "outcome": "accepted"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "concierge_dispatch_replies_total", map[string]string{"kind": "audio", "status": "sent"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "concierge_validator_results_total", map[string]string{"valid": "false", "reason": "too_short"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "concierge_quota_handoffs_total", nil))
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveTurn("replied", 0.1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `concierge_turn_total{outcome="replied"} 1`)
}

func TestNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveInbound("e", "o")
	m.ObserveTurn("o", 1)
	m.ObserveReply("text", "sent")
	m.ObserveValidation(true, "")
	m.ObserveHandoff()
	assert.NotNil(t, m.Handler())
}
