package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks the publisher loop.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	dead      *prometheus.CounterVec
	dlqRows   *prometheus.GaugeVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events published by event type.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Retryable outbox publish failures by event type.",
	}, []string{"event_type"})
	dead := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_dead_lettered_total",
		Help: "Outbox events moved to the DLQ by reason.",
	}, []string{"reason"})
	dlqRows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "outbox_dlq_rows",
		Help: "Rows currently held in outbox_dlq by reason.",
	}, []string{"reason"})
	reg.MustRegister(published, failed, dead, dlqRows)
	return &OutboxMetrics{published: published, failed: failed, dead: dead, dlqRows: dlqRows}
}

func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (o *OutboxMetrics) IncFailed(eventType string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (o *OutboxMetrics) IncDeadLettered(reason string) {
	if o == nil || o.dead == nil {
		return
	}
	o.dead.WithLabelValues(normalizeLabel(reason)).Inc()
}

// SetDLQDepth replaces the gauge contents with counts.
func (o *OutboxMetrics) SetDLQDepth(counts map[string]int64) {
	if o == nil || o.dlqRows == nil {
		return
	}
	o.dlqRows.Reset()
	for reason, n := range counts {
		o.dlqRows.WithLabelValues(normalizeLabel(reason)).Set(float64(n))
	}
}
