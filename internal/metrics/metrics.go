package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the bot exposes.
type Metrics struct {
	WAIncomingMessages *prometheus.CounterVec
	ParseRequests      *prometheus.CounterVec
	ParseLatency       *prometheus.HistogramVec
	WizardTurns        *prometheus.CounterVec
	Transactions       *prometheus.CounterVec
	Errors             *prometheus.CounterVec
}

// New registers all collectors on reg under the given namespace.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WAIncomingMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wa_incoming_messages_total",
			Help:      "Incoming WhatsApp messages by type.",
		}, []string{"type"}),
		ParseRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_requests_total",
			Help:      "Parse attempts by provider and outcome.",
		}, []string{"provider", "status"}),
		ParseLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_latency_seconds",
			Help:      "Provider parse latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		WizardTurns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_turns_total",
			Help:      "Wizard turns by resulting step.",
		}, []string{"step"}),
		Transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Confirmed bot transactions by type.",
		}, []string{"type"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Internal errors by area.",
		}, []string{"area"}),
	}
}
