package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Mail(OutcomeParsed)
	m.Mail(OutcomeParsed)
	m.Mail(OutcomeSuppressed)
	m.Transaction("rakuten_card")

	assert.InDelta(t, 2, testutil.ToFloat64(m.MailsTotal.WithLabelValues(OutcomeParsed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MailsTotal.WithLabelValues(OutcomeSuppressed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("rakuten_card")), 0)
}

func TestMetrics_SetRecurringResets(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetRecurring(map[string]int{"monthly": 3, "yearly": 1})
	m.SetRecurring(map[string]int{"monthly": 2})

	assert.Equal(t, 1, testutil.CollectAndCount(m.RecurringPayments))
	assert.InDelta(t, 2, testutil.ToFloat64(m.RecurringPayments.WithLabelValues("monthly")), 0)
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Mail(OutcomeParsed)
		m.Transaction("fuzzy")
		m.ObserveRun(0.1)
		m.SetRecurring(map[string]int{"monthly": 1})
	})
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
