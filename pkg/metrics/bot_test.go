package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestBotMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewBotMetrics(reg)

	metrics.IncIntakeEvent("telegram", "handled")
	metrics.ObserveIntakeDuration("telegram", 120*time.Millisecond)
	metrics.IncNotification("whatsapp", "failed")
	metrics.IncLedgerExport("success")
	metrics.IncWebhookDropped("telegram")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "intake_events_total", "channel", "telegram"); err != nil {
		t.Fatalf("fetch intake events: %v", err)
	} else if got != 1 {
		t.Fatalf("expected intake_events_total=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "notifications_total", "channel", "whatsapp"); err != nil {
		t.Fatalf("fetch notifications: %v", err)
	} else if got != 1 {
		t.Fatalf("expected notifications_total=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ledger_exports_total", "outcome", "success"); err != nil {
		t.Fatalf("fetch ledger exports: %v", err)
	} else if got != 1 {
		t.Fatalf("expected ledger_exports_total=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "webhook_deliveries_dropped_total", "channel", "telegram"); err != nil {
		t.Fatalf("fetch dropped deliveries: %v", err)
	} else if got != 1 {
		t.Fatalf("expected webhook_deliveries_dropped_total=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "intake_event_duration_seconds", "channel", "telegram"); err != nil {
		t.Fatalf("fetch intake duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestBotMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewBotMetrics(nil)
	metrics.IncIntakeEvent("telegram", "handled")
	metrics.ObserveIntakeDuration("telegram", time.Second)
	metrics.IncNotification("telegram", "sent")
	metrics.IncLedgerExport("failure")
	metrics.IncWebhookDropped("whatsapp")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
