package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_Registers(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObserveReconcile("auto", OutcomeSuccess, 120*time.Millisecond, 2, 1, 0)
	m.SetMappings(3, 1)

	mfs, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	want := map[string]bool{
		"rolesync_reconcile_total":            false,
		"rolesync_reconcile_duration_seconds": false,
		"rolesync_reconcile_roles_total":      false,
		"rolesync_mappings_loaded":            false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestObserveReconcile_Counts(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveReconcile("auto", OutcomeSuccess, time.Second, 2, 0, 1)
	m.ObserveReconcile("auto", OutcomeSuccess, time.Second, 1, 3, 0)
	m.ObserveReconcile("manual", OutcomeFailed, time.Second, 0, 0, 0)

	if got := testutil.ToFloat64(m.reconcileTotal.WithLabelValues("auto", OutcomeSuccess)); got != 2 {
		t.Errorf("auto success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.roleChanges.WithLabelValues("added")); got != 3 {
		t.Errorf("added = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.roleChanges.WithLabelValues("removed")); got != 3 {
		t.Errorf("removed = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.roleChanges.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
}

func TestGaugesAndCounters(t *testing.T) {
	m := NewMetrics(nil)

	m.SetPending(4)
	m.IncDrained()
	m.SetAutoSyncEnabled(true)
	m.ObserveEvent("queued")
	m.ObserveEvent("queued")
	m.IncSweepDBErrors()
	m.ObserveState("diff")

	if got := testutil.ToFloat64(m.pendingGauge); got != 4 {
		t.Errorf("pending = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.autoSyncEnabled); got != 1 {
		t.Errorf("auto sync = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues("queued")); got != 2 {
		t.Errorf("queued events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.sweepDBErrors); got != 1 {
		t.Errorf("db errors = %v, want 1", got)
	}

	m.SetAutoSyncEnabled(false)
	if got := testutil.ToFloat64(m.autoSyncEnabled); got != 0 {
		t.Errorf("auto sync = %v, want 0", got)
	}
}

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics

	m.ObserveReconcile("auto", OutcomeSuccess, time.Second, 1, 1, 1)
	m.ObserveState("apply")
	m.IncSourceFetchErrors()
	m.IncPersistenceErrors()
	m.ObserveEvent("queued")
	m.SetPending(1)
	m.IncDrained()
	m.SetAutoSyncEnabled(true)
	m.ObserveSweepSubject(OutcomeSkipped)
	m.ObserveSweep(time.Second)
	m.IncSweepDBErrors()
	m.SetMappings(1, 0)
}
