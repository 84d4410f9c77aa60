package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAccumulates(t *testing.T) {
	registry := NewRegistry()

	registry.IncrementCounter("reminders_sent_total", map[string]string{"kind": "individual"}, "Reminders sent")
	registry.IncrementCounter("reminders_sent_total", map[string]string{"kind": "individual"}, "Reminders sent")
	registry.AddToCounter("reminders_sent_total", 3, map[string]string{"kind": "individual"}, "Reminders sent")

	all := registry.GetAllMetrics()
	counters := all["counters"].(map[string]*Metric)
	require.Len(t, counters, 1)
	for _, counter := range counters {
		assert.Equal(t, float64(5), counter.Value)
		assert.Equal(t, Counter, counter.Type)
	}
}

func TestCounterLabelsSeparateSeries(t *testing.T) {
	registry := NewRegistry()

	registry.IncrementCounter("reminders_sent_total", map[string]string{"kind": "individual"}, "")
	registry.IncrementCounter("reminders_sent_total", map[string]string{"kind": "group"}, "")

	counters := registry.GetAllMetrics()["counters"].(map[string]*Metric)
	assert.Len(t, counters, 2)
}

func TestMetricKeyIsLabelOrderIndependent(t *testing.T) {
	a := metricKey("http_requests_total", map[string]string{"method": "GET", "endpoint": "/api/sessions"})
	b := metricKey("http_requests_total", map[string]string{"endpoint": "/api/sessions", "method": "GET"})
	assert.Equal(t, a, b)
}

func TestRecordTimer(t *testing.T) {
	registry := NewRegistry()

	registry.RecordTimer("scheduler_tick_duration", 100*time.Millisecond, nil, "Tick duration")
	registry.RecordTimer("scheduler_tick_duration", 300*time.Millisecond, nil, "Tick duration")

	timers := registry.GetAllMetrics()["timers"].(map[string]*TimerMetric)
	require.Len(t, timers, 1)

	timer := timers["scheduler_tick_duration"]
	assert.Equal(t, int64(2), timer.Count)
	assert.InDelta(t, 400, timer.Sum, 0.01)
	assert.InDelta(t, 100, timer.Min, 0.01)
	assert.InDelta(t, 300, timer.Max, 0.01)
	assert.InDelta(t, 200, timer.Average, 0.01)
}

func TestTimerPercentiles(t *testing.T) {
	registry := NewRegistry()

	for i := 1; i <= 100; i++ {
		registry.RecordTimer("op", time.Duration(i)*time.Millisecond, nil, "")
	}

	timer := registry.GetAllMetrics()["timers"].(map[string]*TimerMetric)["op"]
	assert.InDelta(t, 96, timer.P95, 1)
	assert.InDelta(t, 100, timer.P99, 1)
}

func TestSetGauge(t *testing.T) {
	registry := NewRegistry()

	registry.SetGauge("sessions_connected", 3, nil, "Connected sessions")
	registry.SetGauge("sessions_connected", 1, nil, "Connected sessions")

	gauges := registry.GetAllMetrics()["gauges"].(map[string]*Metric)
	require.Len(t, gauges, 1)
	assert.Equal(t, float64(1), gauges["sessions_connected"].Value)
}

func TestGetAllMetricsIncludesUptime(t *testing.T) {
	registry := NewRegistry()
	all := registry.GetAllMetrics()

	assert.Contains(t, all, "uptime_ms")
	assert.Contains(t, all, "timestamp")
}

func TestGlobalRegistry(t *testing.T) {
	IncrementCounter("global_test_counter", nil, "")
	counters := GetAllMetrics()["counters"].(map[string]*Metric)
	assert.Contains(t, counters, "global_test_counter")
}
