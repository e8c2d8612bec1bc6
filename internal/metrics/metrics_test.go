package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_total", "test counter", nil)

	c.Inc()
	c.Add(4)

	if c.Value() != 5 {
		t.Errorf("Value() = %d, want 5", c.Value())
	}
	if c.Type() != TypeCounter {
		t.Errorf("Type() = %v, want counter", c.Type())
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("test_gauge", "test gauge", nil)

	g.Set(10)
	g.Inc()
	g.Dec()
	g.Add(-3)

	if g.Value() != 7 {
		t.Errorf("Value() = %d, want 7", g.Value())
	}
}

func TestHistogramObserve(t *testing.T) {
	h := NewHistogram("test_seconds", "test histogram", nil, []float64{0.1, 1, 10})

	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)
	h.Observe(50)

	if h.Count() != 4 {
		t.Errorf("Count() = %d, want 4", h.Count())
	}
	want := 0.05 + 0.5 + 5 + 50
	if h.Sum() != want {
		t.Errorf("Sum() = %f, want %f", h.Sum(), want)
	}
	if mean := h.Mean(); mean != want/4 {
		t.Errorf("Mean() = %f, want %f", mean, want/4)
	}
}

func TestRegistryNamespacing(t *testing.T) {
	r := NewRegistry("snapfix", "daemon")

	c := r.RegisterCounter("cycles_total", "cycles", nil)
	if c.Name() != "snapfix_daemon_cycles_total" {
		t.Errorf("Name() = %q, want snapfix_daemon_cycles_total", c.Name())
	}

	// Re-registering returns the same counter.
	c.Inc()
	again := r.RegisterCounter("cycles_total", "cycles", nil)
	if again.Value() != 1 {
		t.Errorf("re-registered counter lost its value: %d", again.Value())
	}

	if r.GetCounter("cycles_total") != c {
		t.Error("GetCounter returned a different counter")
	}
}

func TestWritePrometheus(t *testing.T) {
	r := NewRegistry("snapfix", "")
	r.RegisterCounter("cycles_total", "cycles", nil).Add(3)
	r.RegisterGauge("undo_depth", "depth", nil).Set(2)
	h := r.RegisterHistogram("cycle_duration_seconds", "duration", nil, []float64{1, 10})
	h.Observe(0.5)

	var sb strings.Builder
	if err := r.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := sb.String()

	for _, want := range []string{
		"# TYPE snapfix_cycles_total counter",
		"snapfix_cycles_total 3",
		"snapfix_undo_depth 2",
		"snapfix_cycle_duration_seconds_count 1",
		`snapfix_cycle_duration_seconds_bucket{le="1.000000"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWritePrometheusSorted(t *testing.T) {
	r := NewRegistry("snapfix", "")
	r.RegisterCounter("undos_total", "undos", nil)
	r.RegisterCounter("cycles_total", "cycles", nil)

	var sb strings.Builder
	if err := r.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := sb.String()

	cycles := strings.Index(out, "snapfix_cycles_total")
	undos := strings.Index(out, "snapfix_undos_total")
	if cycles < 0 || undos < 0 || cycles > undos {
		t.Errorf("expected sorted output, got:\n%s", out)
	}
}

func TestDaemonMetricsRecordCycle(t *testing.T) {
	m := NewDaemonMetrics(nil)

	m.RecordCycle("success", "", 200*time.Millisecond)
	m.RecordCycle("failed", "correction-timeout", time.Second)
	m.RecordCycle("failed", "no-selection", time.Second)
	m.RecordCycle("no-changes", "", 100*time.Millisecond)
	m.RecordCycle("partial", "write-back-unconfirmed", time.Second)

	if m.CyclesTotal.Value() != 5 {
		t.Errorf("CyclesTotal = %d, want 5", m.CyclesTotal.Value())
	}
	if m.CyclesFailed.Value() != 2 {
		t.Errorf("CyclesFailed = %d, want 2", m.CyclesFailed.Value())
	}
	if m.CyclesNoChanges.Value() != 1 {
		t.Errorf("CyclesNoChanges = %d, want 1", m.CyclesNoChanges.Value())
	}
	if m.CyclesPartial.Value() != 1 {
		t.Errorf("CyclesPartial = %d, want 1", m.CyclesPartial.Value())
	}
	if m.CycleDuration.Count() != 5 {
		t.Errorf("CycleDuration count = %d, want 5", m.CycleDuration.Count())
	}

	byReason := m.Registry().GetCounter("cycle_failures_correction_timeout")
	if byReason == nil || byReason.Value() != 1 {
		t.Errorf("per-reason failure counter missing or wrong: %v", byReason)
	}
}

func TestDaemonMetricsRecordUndo(t *testing.T) {
	m := NewDaemonMetrics(nil)

	m.RecordUndo("success", 50*time.Millisecond)
	m.RecordUndo("failed", 50*time.Millisecond)
	m.SetUndoDepth(3)

	if m.UndosTotal.Value() != 2 {
		t.Errorf("UndosTotal = %d, want 2", m.UndosTotal.Value())
	}
	if m.UndosFailed.Value() != 1 {
		t.Errorf("UndosFailed = %d, want 1", m.UndosFailed.Value())
	}
	if m.UndoDepth.Value() != 3 {
		t.Errorf("UndoDepth = %d, want 3", m.UndoDepth.Value())
	}
}

func TestDaemonMetricsSnapshot(t *testing.T) {
	m := NewDaemonMetrics(nil)
	m.RecordCycle("success", "", time.Second)

	snap := m.Snapshot()

	if v, ok := snap["snapfix_cycles_total"].(uint64); !ok || v != 1 {
		t.Errorf("snapshot cycles_total = %v", snap["snapfix_cycles_total"])
	}
	if _, ok := snap["snapfix_uptime_seconds"]; !ok {
		t.Error("snapshot missing uptime_seconds")
	}
	if _, ok := snap["snapfix_cycle_duration_seconds_mean"]; !ok {
		t.Error("snapshot missing cycle duration mean")
	}
}

func TestDaemonMetricsPrometheusText(t *testing.T) {
	m := NewDaemonMetrics(nil)
	m.RecordCycle("success", "", time.Second)

	out := m.PrometheusText()

	for _, want := range []string{
		"# TYPE snapfix_cycles_total counter",
		"snapfix_cycles_total 1",
		"snapfix_cycle_duration_seconds_count 1",
		"# TYPE snapfix_uptime_seconds gauge",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q:\n%s", want, out)
		}
	}
}
