package control

import "testing"

func TestRuntimeCountersAccumulate(t *testing.T) {
	rc := NewRuntimeCounters(nil)
	rc.AddEventsProcessed(2)
	rc.AddBytesSent(100)
	rc.AddConnectionsCreated(1)
	rc.AddConnectionsClosed(1)

	snap := rc.Snapshot()
	if snap.EventsProcessed != 2 {
		t.Fatalf("EventsProcessed = %d, want 2", snap.EventsProcessed)
	}
	if snap.BytesSent != 100 {
		t.Fatalf("BytesSent = %d, want 100", snap.BytesSent)
	}
	if snap.ConnectionsCreated != 1 || snap.ConnectionsClosed != 1 {
		t.Fatalf("connection counters = %+v, want 1/1", snap)
	}
}

func TestRuntimeCountersPublishToRegistry(t *testing.T) {
	reg := NewMetricsRegistry()
	rc := NewRuntimeCounters(reg)
	rc.AddErrors(3)

	snapshot := reg.GetSnapshot()
	if snapshot["bus.errors"] != int64(3) {
		t.Fatalf("registry snapshot bus.errors = %v, want 3", snapshot["bus.errors"])
	}
}
