package pipeline

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.runStarted()
	m.runFinished()
	m.messageRelayed()
	m.nodeFinished("access_check", statusSuccess, time.Second)
}

func TestMetrics_RegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.runStarted()
	m.messageRelayed()
	m.messageRelayed()
	m.nodeFinished("access_check", statusSuccess, 250*time.Millisecond)
	m.nodeFinished("access_check", statusError, time.Second)
	m.runFinished()

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	byName := make(map[string]bool, len(families))
	for _, f := range families {
		byName[f.GetName()] = true
	}
	for _, name := range []string{
		"blackscope_node_runs_total",
		"blackscope_node_duration_seconds",
		"blackscope_messages_relayed_total",
		"blackscope_runs_active",
	} {
		if !byName[name] {
			t.Errorf("metric %s not registered", name)
		}
	}

	for _, f := range families {
		switch f.GetName() {
		case "blackscope_messages_relayed_total":
			if got := f.GetMetric()[0].GetCounter().GetValue(); got != 2 {
				t.Errorf("messages_relayed_total = %v, want 2", got)
			}
		case "blackscope_runs_active":
			if got := f.GetMetric()[0].GetGauge().GetValue(); got != 0 {
				t.Errorf("runs_active = %v, want 0 after run finished", got)
			}
		case "blackscope_node_runs_total":
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 node_runs_total series, got %d", len(f.GetMetric()))
			}
		}
	}
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected promauto to panic on duplicate registration")
		}
	}()
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	NewMetrics(reg)
}
