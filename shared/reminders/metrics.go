package reminders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reminder system.
type Metrics struct {
	// RemindersSentTotal is the total number of reminders sent.
	RemindersSentTotal *prometheus.CounterVec

	// ReminderSendDuration is the time to send a reminder.
	ReminderSendDuration prometheus.Histogram

	// ReminderRetries is the total number of retry attempts.
	ReminderRetries prometheus.Counter
}

// NewMetrics creates and registers Prometheus metrics for reminders.
// Call it once per process.
func NewMetrics(namespace string) *Metrics {
	return newMetrics(promauto.With(prometheus.DefaultRegisterer), namespace)
}

func newMetrics(factory promauto.Factory, namespace string) *Metrics {
	return &Metrics{
		RemindersSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_sent_total",
				Help:      "Total number of reminders sent",
			},
			[]string{"status", "reminder_type"},
		),

		ReminderSendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reminder_send_duration_seconds",
				Help:      "Time to send a reminder",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5},
			},
		),

		ReminderRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_retries_total",
				Help:      "Total number of retry attempts",
			},
		),
	}
}

// IncSent increments the sent counter for a given status and type.
func (m *Metrics) IncSent(status string, reminderType ReminderType) {
	if m == nil {
		return
	}
	m.RemindersSentTotal.WithLabelValues(status, string(reminderType)).Inc()
}

// ObserveSendDuration records the time taken to send a reminder.
func (m *Metrics) ObserveSendDuration(seconds float64) {
	if m == nil {
		return
	}
	m.ReminderSendDuration.Observe(seconds)
}

// IncRetries increments the retry counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.ReminderRetries.Inc()
}
