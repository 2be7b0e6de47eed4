package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPipelineMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveInbound("WHATSAPP", "accepted")
	m.ObserveInbound("WHATSAPP", "accepted")
	m.ObserveOutcome("replied")
	m.ObserveEscalation("COMPLAINT_QUEUE")
	m.ObserveProcessLatency("SUPPORT", 0.42)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.inboundTotal.WithLabelValues("WHATSAPP", "accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.outcomeTotal.WithLabelValues("replied")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.escalationTotal.WithLabelValues("COMPLAINT_QUEUE")))
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var m *PipelineMetrics

	assert.NotPanics(t, func() {
		m.ObserveInbound("WHATSAPP", "rejected")
		m.ObserveOutcome("failed")
		m.ObserveProcessLatency("GENERAL", 0.1)
		m.ObserveEscalation("GENERAL_QUEUE")
	})
}
