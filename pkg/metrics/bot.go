package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BotMetrics records counters for the chat intake pipeline.
type BotMetrics struct {
	intakeEvents   *prometheus.CounterVec
	intakeDuration *prometheus.HistogramVec
	notifications  *prometheus.CounterVec
	ledgerExports  *prometheus.CounterVec
	webhookDropped *prometheus.CounterVec
}

// NewBotMetrics registers the intake metrics on the provided registerer.
func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	if reg == nil {
		return &BotMetrics{}
	}
	intakeEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_events_total",
		Help: "Intake events processed, by channel and outcome.",
	}, []string{"channel", "outcome"})
	intakeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intake_event_duration_seconds",
		Help:    "Duration of intake event handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Outbound notifications, by channel and outcome.",
	}, []string{"channel", "outcome"})
	ledgerExports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_exports_total",
		Help: "Ledger append attempts, by outcome.",
	}, []string{"outcome"})
	webhookDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_dropped_total",
		Help: "Webhook deliveries skipped as duplicates, by channel.",
	}, []string{"channel"})
	reg.MustRegister(intakeEvents, intakeDuration, notifications, ledgerExports, webhookDropped)
	return &BotMetrics{
		intakeEvents:   intakeEvents,
		intakeDuration: intakeDuration,
		notifications:  notifications,
		ledgerExports:  ledgerExports,
		webhookDropped: webhookDropped,
	}
}

// IncIntakeEvent increments the intake counter for a channel and outcome.
func (b *BotMetrics) IncIntakeEvent(channel, outcome string) {
	if b == nil || b.intakeEvents == nil {
		return
	}
	b.intakeEvents.WithLabelValues(normalizeLabel(channel), normalizeLabel(outcome)).Inc()
}

// ObserveIntakeDuration records how long one event took to handle.
func (b *BotMetrics) ObserveIntakeDuration(channel string, duration time.Duration) {
	if b == nil || b.intakeDuration == nil {
		return
	}
	b.intakeDuration.WithLabelValues(normalizeLabel(channel)).Observe(duration.Seconds())
}

// IncNotification increments the notification counter for a channel and outcome.
func (b *BotMetrics) IncNotification(channel, outcome string) {
	if b == nil || b.notifications == nil {
		return
	}
	b.notifications.WithLabelValues(normalizeLabel(channel), normalizeLabel(outcome)).Inc()
}

// IncLedgerExport increments the ledger export counter for an outcome.
func (b *BotMetrics) IncLedgerExport(outcome string) {
	if b == nil || b.ledgerExports == nil {
		return
	}
	b.ledgerExports.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWebhookDropped increments the duplicate-delivery counter for a channel.
func (b *BotMetrics) IncWebhookDropped(channel string) {
	if b == nil || b.webhookDropped == nil {
		return
	}
	b.webhookDropped.WithLabelValues(normalizeLabel(channel)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
