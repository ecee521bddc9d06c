package metrics

import "testing"

func TestMetrics_IncAndSnapshot(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Inc(LoginSuccess)
	m.Inc(LoginSuccess)
	m.Inc(RefreshFailure)

	snap := m.Snapshot()
	if snap.Counters[LoginSuccess] != 2 {
		t.Errorf("LoginSuccess = %d", snap.Counters[LoginSuccess])
	}
	if snap.Counters[RefreshFailure] != 1 {
		t.Errorf("RefreshFailure = %d", snap.Counters[RefreshFailure])
	}
	if snap.Counters[Logout] != 0 {
		t.Errorf("Logout = %d", snap.Counters[Logout])
	}
}

func TestMetrics_DisabledIsNoOp(t *testing.T) {
	m := New(Config{})
	m.Inc(LoginSuccess)

	snap := m.Snapshot()
	if len(snap.Counters) != 0 {
		t.Errorf("disabled snapshot = %v", snap.Counters)
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	m.Inc(LoginSuccess) // must not panic
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Errorf("nil snapshot = %v", snap.Counters)
	}
}

func TestDefs_CoverEveryID(t *testing.T) {
	seen := make(map[ID]bool, IDCount)
	for _, def := range Defs {
		if def.Name == "" || def.Help == "" {
			t.Errorf("counter %d has empty name or help", def.ID)
		}
		if seen[def.ID] {
			t.Errorf("counter %d defined twice", def.ID)
		}
		seen[def.ID] = true
	}
	if len(seen) != int(IDCount) {
		t.Errorf("%d defs for %d counters", len(seen), IDCount)
	}
}
