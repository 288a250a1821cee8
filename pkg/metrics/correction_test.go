package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCorrectionMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCorrectionMetrics(reg)
	metrics.ObserveDuration("fix", 250*time.Millisecond)
	metrics.IncRequest("fix", "ok")
	metrics.IncRepairPass()
	metrics.IncQuotaRejection("free")
	metrics.IncWebhookEvent("customer.subscription.updated", "applied")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "correction_requests_total", "task", "fix"); err != nil {
		t.Fatalf("fetch requests: %v", err)
	} else if got != 1 {
		t.Fatalf("expected requests=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "quota_rejections_total", "plan", "free"); err != nil {
		t.Fatalf("fetch rejections: %v", err)
	} else if got != 1 {
		t.Fatalf("expected rejections=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "stripe_webhook_events_total", "outcome", "applied"); err != nil {
		t.Fatalf("fetch webhook events: %v", err)
	} else if got != 1 {
		t.Fatalf("expected webhook events=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "correction_duration_seconds", "task", "fix"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestCorrectionMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewCorrectionMetrics(nil)
	metrics.ObserveDuration("fix", time.Second)
	metrics.IncRequest("fix", "ok")
	metrics.IncRepairPass()
	metrics.IncQuotaRejection("free")
	metrics.IncWebhookEvent("x", "skipped")
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
