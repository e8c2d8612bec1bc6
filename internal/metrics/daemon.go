package metrics

import (
	"strings"
	"time"
)

// DaemonMetrics holds the snapfix daemon's metrics. Counts only: none
// of these carry selection or correction text.
type DaemonMetrics struct {
	registry *Registry

	// Counters
	CyclesTotal     *Counter
	CyclesFailed    *Counter
	CyclesNoChanges *Counter
	CyclesPartial   *Counter
	UndosTotal      *Counter
	UndosFailed     *Counter

	// Gauges
	UndoDepth     *Gauge
	UptimeSeconds *Gauge

	// Histograms
	CycleDuration *Histogram
	UndoDuration  *Histogram

	startTime time.Time
}

// NewDaemonMetrics creates and registers all daemon metrics. A nil
// registry gets a fresh one under the "snapfix" namespace.
func NewDaemonMetrics(registry *Registry) *DaemonMetrics {
	if registry == nil {
		registry = NewRegistry("snapfix", "")
	}

	return &DaemonMetrics{
		registry:  registry,
		startTime: time.Now(),

		CyclesTotal: registry.RegisterCounter(
			"cycles_total",
			"Total number of correction cycles started",
			nil,
		),
		CyclesFailed: registry.RegisterCounter(
			"cycles_failed_total",
			"Correction cycles that ended in failure",
			nil,
		),
		CyclesNoChanges: registry.RegisterCounter(
			"cycles_no_changes_total",
			"Correction cycles where the model returned the text unchanged",
			nil,
		),
		CyclesPartial: registry.RegisterCounter(
			"cycles_partial_total",
			"Correction cycles where write-back could not be confirmed",
			nil,
		),
		UndosTotal: registry.RegisterCounter(
			"undos_total",
			"Total number of undo operations attempted",
			nil,
		),
		UndosFailed: registry.RegisterCounter(
			"undos_failed_total",
			"Undo operations that ended in failure",
			nil,
		),

		UndoDepth: registry.RegisterGauge(
			"undo_depth",
			"Number of corrections currently held in the undo ledger",
			nil,
		),
		UptimeSeconds: registry.RegisterGauge(
			"uptime_seconds",
			"Number of seconds the daemon has been running",
			nil,
		),

		CycleDuration: registry.RegisterHistogram(
			"cycle_duration_seconds",
			"End to end duration of correction cycles in seconds",
			nil,
			DurationBuckets,
		),
		UndoDuration: registry.RegisterHistogram(
			"undo_duration_seconds",
			"Duration of undo operations in seconds",
			nil,
			DurationBuckets,
		),
	}
}

// Registry returns the underlying registry.
func (m *DaemonMetrics) Registry() *Registry {
	return m.registry
}

// RecordCycle records a finished correction cycle. Failures also bump a
// per-reason counter so a log dump shows which failure mode dominates.
func (m *DaemonMetrics) RecordCycle(outcome, reason string, d time.Duration) {
	m.CyclesTotal.Inc()
	m.CycleDuration.ObserveDuration(d)

	switch outcome {
	case "failed":
		m.CyclesFailed.Inc()
		m.recordFailureReason(reason)
	case "no-changes":
		m.CyclesNoChanges.Inc()
	case "partial":
		m.CyclesPartial.Inc()
	}
}

// RecordUndo records a finished undo operation.
func (m *DaemonMetrics) RecordUndo(outcome string, d time.Duration) {
	m.UndosTotal.Inc()
	m.UndoDuration.ObserveDuration(d)

	if outcome == "failed" {
		m.UndosFailed.Inc()
	}
}

// recordFailureReason registers a counter per failure reason on first
// use. Reason strings are hyphenated, metric names are not.
func (m *DaemonMetrics) recordFailureReason(reason string) {
	if reason == "" || reason == "none" {
		return
	}
	name := "cycle_failures_" + strings.ReplaceAll(reason, "-", "_")
	m.registry.RegisterCounter(name, "Correction cycles failed with reason "+reason, nil).Inc()
}

// SetUndoDepth updates the undo ledger depth gauge.
func (m *DaemonMetrics) SetUndoDepth(depth int) {
	m.UndoDepth.Set(int64(depth))
}

// UpdateUptime refreshes the uptime gauge.
func (m *DaemonMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(m.startTime).Seconds()))
}

// Snapshot refreshes derived gauges and returns the current value of
// every registered metric.
func (m *DaemonMetrics) Snapshot() map[string]interface{} {
	m.UpdateUptime()
	return m.registry.Snapshot()
}

// PrometheusText refreshes derived gauges and renders the registry in
// Prometheus text format.
func (m *DaemonMetrics) PrometheusText() string {
	m.UpdateUptime()
	var sb strings.Builder
	m.registry.WritePrometheus(&sb)
	return sb.String()
}
