// Package metrics exposes Prometheus instruments for parse runs and
// recurrence classification.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mailtx"

// Mail outcomes.
const (
	OutcomeParsed     = "parsed"
	OutcomeSuppressed = "suppressed"
	OutcomeUnmatched  = "unmatched"
	OutcomeEmpty      = "empty"
	OutcomeInvalid    = "invalid"
	OutcomePanic      = "panic"
	OutcomeFiltered   = "filtered"
)

// Metrics groups the instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// MailsTotal counts mails by outcome.
	// Labels: outcome (parsed, suppressed, unmatched, empty, invalid, panic, filtered)
	MailsTotal *prometheus.CounterVec

	// TransactionsTotal counts emitted transactions by source tag.
	TransactionsTotal *prometheus.CounterVec

	// RunDuration tracks how long a parse run takes.
	RunDuration prometheus.Histogram

	// RecurringPayments is the number of records from the last classification.
	// Labels: cadence
	RecurringPayments *prometheus.GaugeVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MailsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "parser",
				Name:      "mails_total",
				Help:      "Total number of mails processed by outcome",
			},
			[]string{"outcome"},
		),
		TransactionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "parser",
				Name:      "transactions_total",
				Help:      "Total number of transactions emitted by source",
			},
			[]string{"source"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "parser",
				Name:      "run_duration_seconds",
				Help:      "Duration of parse runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RecurringPayments: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "recurrence",
				Name:      "payments",
				Help:      "Recurring payments found by the last classification, by cadence",
			},
			[]string{"cadence"},
		),
	}
}

// Mail records one mail outcome.
func (m *Metrics) Mail(outcome string) {
	if m == nil {
		return
	}
	m.MailsTotal.WithLabelValues(outcome).Inc()
}

// Transaction records one emitted transaction.
func (m *Metrics) Transaction(source string) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues(source).Inc()
}

// ObserveRun records the duration of a parse run.
func (m *Metrics) ObserveRun(seconds float64) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(seconds)
}

// SetRecurring replaces the per-cadence record counts.
func (m *Metrics) SetRecurring(byCadence map[string]int) {
	if m == nil {
		return
	}
	m.RecurringPayments.Reset()
	for cadence, n := range byCadence {
		m.RecurringPayments.WithLabelValues(cadence).Set(float64(n))
	}
}
