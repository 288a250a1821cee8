package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CorrectionMetrics records request outcomes for the correction pipeline
// and the billing guardrails around it.
type CorrectionMetrics struct {
	duration        *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	repairPasses    prometheus.Counter
	quotaRejections *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
}

// NewCorrectionMetrics registers the correction metrics on the provided
// registerer.
func NewCorrectionMetrics(reg prometheus.Registerer) *CorrectionMetrics {
	if reg == nil {
		return &CorrectionMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "correction_duration_seconds",
		Help:    "End-to-end duration of correction requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "correction_requests_total",
		Help: "Correction requests by task and outcome.",
	}, []string{"task", "outcome"})
	repairPasses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "correction_repair_passes_total",
		Help: "Correction requests that needed a second cleanup pass.",
	})
	quotaRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_rejections_total",
		Help: "Requests rejected because the monthly plan limit was reached.",
	}, []string{"plan"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stripe_webhook_events_total",
		Help: "Stripe webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	reg.MustRegister(duration, requests, repairPasses, quotaRejections, webhookEvents)
	return &CorrectionMetrics{
		duration:        duration,
		requests:        requests,
		repairPasses:    repairPasses,
		quotaRejections: quotaRejections,
		webhookEvents:   webhookEvents,
	}
}

// ObserveDuration records the end-to-end latency for the given task.
func (c *CorrectionMetrics) ObserveDuration(task string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(task)).Observe(duration.Seconds())
}

// IncRequest counts one finished request with its outcome.
func (c *CorrectionMetrics) IncRequest(task, outcome string) {
	if c == nil || c.requests == nil {
		return
	}
	c.requests.WithLabelValues(normalizeLabel(task), normalizeLabel(outcome)).Inc()
}

// IncRepairPass counts a request whose primary output needed cleanup.
func (c *CorrectionMetrics) IncRepairPass() {
	if c == nil || c.repairPasses == nil {
		return
	}
	c.repairPasses.Inc()
}

// IncQuotaRejection counts a request turned away at the plan limit.
func (c *CorrectionMetrics) IncQuotaRejection(plan string) {
	if c == nil || c.quotaRejections == nil {
		return
	}
	c.quotaRejections.WithLabelValues(normalizeLabel(plan)).Inc()
}

// IncWebhookEvent counts one processed Stripe event.
func (c *CorrectionMetrics) IncWebhookEvent(eventType, outcome string) {
	if c == nil || c.webhookEvents == nil {
		return
	}
	c.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
