package timesync

import (
	"testing"
	"time"
)

func TestMonitorDisconnected(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	m := NewMonitor(NewEstimator(), NewRegistry(time.Hour, clk.now), clk.now)

	st := m.Status()
	if st.ConnectionHealth != HealthDisconnected {
		t.Errorf("health = %q, want disconnected", st.ConnectionHealth)
	}
	if st.QualityScore != 0 {
		t.Errorf("score = %d, want 0", st.QualityScore)
	}
	if st.LastSyncTime != nil {
		t.Error("expected no last sync time")
	}
	if len(st.Recommendations) == 0 {
		t.Error("expected a recommendation for the disconnected state")
	}
}

func TestMonitorHealthy(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	e := NewEstimator()
	r := NewRegistry(time.Hour, clk.now)
	m := NewMonitor(e, r, clk.now)

	r.Register("c1")
	for i := 0; i < 10; i++ {
		e.Observe("c1", 40, clk.t)
	}
	clk.advance(time.Minute)

	st := m.Status()
	if st.ConnectionHealth != HealthExcellent {
		t.Errorf("health = %q, want excellent", st.ConnectionHealth)
	}
	if st.QualityScore != 100 {
		t.Errorf("score = %d, want 100", st.QualityScore)
	}
	if st.SyncCount != 10 {
		t.Errorf("sync count = %d, want 10", st.SyncCount)
	}
	if st.AverageDriftMs != 40 {
		t.Errorf("average drift = %v, want 40", st.AverageDriftMs)
	}
	if st.Uptime != "1m0s" {
		t.Errorf("uptime = %q, want 1m0s", st.Uptime)
	}
}

func TestMonitorDegradedByDrift(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	e := NewEstimator()
	r := NewRegistry(time.Hour, clk.now)
	m := NewMonitor(e, r, clk.now)

	r.Register("c1")
	e.Observe("c1", 900, clk.t)

	st := m.Status()
	if st.QualityScore != 60 {
		t.Errorf("score = %d, want 60 (100 - 40 drift penalty)", st.QualityScore)
	}
	if st.ConnectionHealth != HealthDegraded {
		t.Errorf("health = %q, want degraded", st.ConnectionHealth)
	}
	if len(st.Recommendations) == 0 {
		t.Error("expected a resync recommendation for low-accuracy drift")
	}
}

func TestMonitorStaleness(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	e := NewEstimator()
	r := NewRegistry(time.Hour, clk.now)
	m := NewMonitor(e, r, clk.now)

	r.Register("c1")
	e.Observe("c1", 40, clk.t)
	clk.advance(10 * time.Minute)

	st := m.Status()
	if st.QualityScore != 80 {
		t.Errorf("score = %d, want 80 (100 - 20 staleness penalty)", st.QualityScore)
	}
	if st.LastSyncTime == nil {
		t.Fatal("expected last sync time")
	}
}
