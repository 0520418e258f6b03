// Package metrics exposes Prometheus counters for the webhook and turn pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer      prometheus.Gatherer
	inboundTotal  *prometheus.CounterVec
	turnsTotal    *prometheus.CounterVec
	repliesTotal  *prometheus.CounterVec
	validations   *prometheus.CounterVec
	handoffsTotal prometheus.Counter
	turnLatency   prometheus.Histogram
}

// New registers the collectors on reg, or on the default registry when reg is nil.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Webhook deliveries by event and outcome",
		}, []string{"event", "outcome"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "turn",
			Name:      "total",
			Help:      "Processed conversational turns by outcome",
		}, []string{"outcome"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "dispatch",
			Name:      "replies_total",
			Help:      "Outbound replies by kind and status",
		}, []string{"kind", "status"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "validator",
			Name:      "results_total",
			Help:      "Free-text validation results by reason",
		}, []string{"valid", "reason"}),
		handoffsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "quota",
			Name:      "handoffs_total",
			Help:      "Chats handed to a human after exhausting their quota",
		}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "turn",
			Name:      "duration_seconds",
			Help:      "Duration of a conversational turn",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	m.gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer, m.gatherer = reg, reg
	}
	registerer.MustRegister(m.inboundTotal, m.turnsTotal, m.repliesTotal, m.validations, m.handoffsTotal, m.turnLatency)
	return m
}

func (m *Metrics) ObserveInbound(event, outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) ObserveTurn(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnLatency.Observe(seconds)
}

func (m *Metrics) ObserveReply(kind, status string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) ObserveValidation(valid bool, reason string) {
	if m == nil {
		return
	}
	label := "false"
	if valid {
		label = "true"
	}
	m.validations.WithLabelValues(label, reason).Inc()
}

func (m *Metrics) ObserveHandoff() {
	if m == nil {
		return
	}
	m.handoffsTotal.Inc()
}

// Handler serves the registry m was created with.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
