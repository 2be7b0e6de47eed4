package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the message pipeline.
type PipelineMetrics struct {
	inboundTotal    *prometheus.CounterVec
	outcomeTotal    *prometheus.CounterVec
	processLatency  *prometheus.HistogramVec
	escalationTotal *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "pipeline",
			Name:      "inbound_total",
			Help:      "Total inbound channel webhooks",
		}, []string{"channel", "status"}),
		outcomeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "pipeline",
			Name:      "outcome_total",
			Help:      "Message processing outcomes",
		}, []string{"outcome"}),
		processLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "support",
			Subsystem: "pipeline",
			Name:      "process_latency_seconds",
			Help:      "Latency of end-to-end message processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"intent"}),
		escalationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "pipeline",
			Name:      "escalation_total",
			Help:      "Escalations created by queue type",
		}, []string{"queue_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outcomeTotal, m.processLatency, m.escalationTotal)
	return m
}

func (m *PipelineMetrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *PipelineMetrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomeTotal.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) ObserveProcessLatency(intent string, seconds float64) {
	if m == nil {
		return
	}
	m.processLatency.WithLabelValues(intent).Observe(seconds)
}

func (m *PipelineMetrics) ObserveEscalation(queueType string) {
	if m == nil {
		return
	}
	m.escalationTotal.WithLabelValues(queueType).Inc()
}
