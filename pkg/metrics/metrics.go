// Package metrics exposes Prometheus metrics for the reconciliation engine.
//
// Every method is safe to call on a nil *Metrics, so components take an
// optional *Metrics and skip instrumentation when none is configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rolesync"

// Label names.
const (
	LabelTrigger = "trigger"
	LabelOutcome = "outcome"
	LabelState   = "state"
	LabelAction  = "action"
	LabelKind    = "kind"
	LabelReason  = "reason"
)

// Outcome label values for reconciliations and sweep subjects.
const (
	OutcomeSuccess   = "success"
	OutcomeNoChanges = "no_changes"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Metrics holds every collector used by rolesync.
type Metrics struct {
	reconcileTotal    *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	stateTransitions  *prometheus.CounterVec
	roleChanges       *prometheus.CounterVec
	sourceFetchErrors prometheus.Counter
	persistenceErrors prometheus.Counter

	eventsTotal     *prometheus.CounterVec
	pendingGauge    prometheus.Gauge
	drainedTotal    prometheus.Counter
	autoSyncEnabled prometheus.Gauge

	sweepSubjects *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	sweepDBErrors prometheus.Counter

	mappingsGauge *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on registry.
// A nil registry leaves them unregistered, which tests use.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "total",
			Help:      "Completed reconciliations by trigger and outcome",
		}, []string{LabelTrigger, LabelOutcome}),

		reconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Wall time of one reconciliation",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{LabelTrigger}),

		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "state_transitions_total",
			Help:      "State machine transitions by entered state",
		}, []string{LabelState}),

		roleChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "roles_total",
			Help:      "Per-role outcomes (added, removed, failed)",
		}, []string{LabelAction}),

		sourceFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "source_fetch_errors_total",
			Help:      "Source community reads that failed",
		}),

		persistenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "persistence_errors_total",
			Help:      "Results that could not be recorded",
		}),

		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "events_total",
			Help:      "Role change events by detector decision",
		}, []string{LabelReason}),

		pendingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "pending",
			Help:      "Subjects waiting in the debounce queue",
		}),

		drainedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "drained_total",
			Help:      "Subjects dispatched from the debounce queue",
		}),

		autoSyncEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "auto_sync_enabled",
			Help:      "1 if automatic reconciliation is enabled",
		}),

		sweepSubjects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "subjects_total",
			Help:      "Subjects processed by full sweeps by outcome",
		}, []string{LabelOutcome}),

		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Wall time of a full sweep",
			Buckets:   []float64{1, 10, 30, 60, 300, 900, 1800, 3600},
		}),

		sweepDBErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "db_errors_total",
			Help:      "Buffered result flushes that failed",
		}),

		mappingsGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mappings",
			Name:      "loaded",
			Help:      "Mappings in the published index by state",
		}, []string{LabelState}),
	}

	if registry != nil {
		registry.MustRegister(
			m.reconcileTotal,
			m.reconcileDuration,
			m.stateTransitions,
			m.roleChanges,
			m.sourceFetchErrors,
			m.persistenceErrors,
			m.eventsTotal,
			m.pendingGauge,
			m.drainedTotal,
			m.autoSyncEnabled,
			m.sweepSubjects,
			m.sweepDuration,
			m.sweepDBErrors,
			m.mappingsGauge,
		)
	}
	return m
}

// ObserveReconcile records one finished reconciliation.
func (m *Metrics) ObserveReconcile(trigger, outcome string, d time.Duration, added, removed, failed int) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(trigger, outcome).Inc()
	m.reconcileDuration.WithLabelValues(trigger).Observe(d.Seconds())
	m.roleChanges.WithLabelValues("added").Add(float64(added))
	m.roleChanges.WithLabelValues("removed").Add(float64(removed))
	m.roleChanges.WithLabelValues("failed").Add(float64(failed))
}

// ObserveState counts entry into a reconcile state.
func (m *Metrics) ObserveState(state string) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) IncSourceFetchErrors() {
	if m == nil {
		return
	}
	m.sourceFetchErrors.Inc()
}

func (m *Metrics) IncPersistenceErrors() {
	if m == nil {
		return
	}
	m.persistenceErrors.Inc()
}

// ObserveEvent counts a detector decision, e.g. "queued" or "ignored_bot".
func (m *Metrics) ObserveEvent(reason string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pendingGauge.Set(float64(n))
}

func (m *Metrics) IncDrained() {
	if m == nil {
		return
	}
	m.drainedTotal.Inc()
}

func (m *Metrics) SetAutoSyncEnabled(on bool) {
	if m == nil {
		return
	}
	v := 0.0
	if on {
		v = 1
	}
	m.autoSyncEnabled.Set(v)
}

// ObserveSweepSubject counts one subject processed by a sweep.
func (m *Metrics) ObserveSweepSubject(outcome string) {
	if m == nil {
		return
	}
	m.sweepSubjects.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}

func (m *Metrics) IncSweepDBErrors() {
	if m == nil {
		return
	}
	m.sweepDBErrors.Inc()
}

// SetMappings publishes the mapping table size.
func (m *Metrics) SetMappings(enabled, disabled int) {
	if m == nil {
		return
	}
	m.mappingsGauge.WithLabelValues("enabled").Set(float64(enabled))
	m.mappingsGauge.WithLabelValues("disabled").Set(float64(disabled))
}
