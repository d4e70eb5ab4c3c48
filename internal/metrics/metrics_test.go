package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestRegistryTracksActiveWatches(t *testing.T) {
	registry := &Registry{}
	registry.IncWatchStarted()
	registry.IncWatchStarted()
	registry.IncWatchStopped()
	registry.IncWatchFailed()

	snapshot := registry.Snapshot()
	if snapshot.WatchesStarted != 2 {
		t.Fatalf("expected 2 started, got %d", snapshot.WatchesStarted)
	}
	if snapshot.ActiveWatches != 1 {
		t.Fatalf("expected 1 active, got %d", snapshot.ActiveWatches)
	}
	if snapshot.WatchesFailed != 1 {
		t.Fatalf("expected 1 failed, got %d", snapshot.WatchesFailed)
	}
}

func TestRegistryIgnoresNonPositiveCounts(t *testing.T) {
	registry := &Registry{}
	registry.IncRawEvents(0)
	registry.IncCoalesced(-3)

	snapshot := registry.Snapshot()
	if snapshot.RawEvents != 0 || snapshot.CoalescedEvents != 0 {
		t.Fatalf("unexpected counts: %+v", snapshot)
	}
}

func TestWritePrometheus(t *testing.T) {
	registry := &Registry{}
	registry.IncRawEvents(3)
	registry.IncForwarded()
	registry.IncEventPublished("ui_events")
	registry.IncEventDropped(`we"ird`)

	var output bytes.Buffer
	if err := registry.WritePrometheus(&output); err != nil {
		t.Fatalf("write prometheus: %v", err)
	}
	text := output.String()

	for _, expected := range []string{
		"marknote_raw_events_total 3",
		"marknote_notifications_forwarded_total 1",
		"# TYPE marknote_watches_active gauge",
		`marknote_bus_published_total{bus="ui_events"} 1`,
		`marknote_bus_dropped_total{bus="we\"ird"} 1`,
	} {
		if !strings.Contains(text, expected) {
			t.Fatalf("expected %q in output:\n%s", expected, text)
		}
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var registry *Registry
	registry.IncForwarded()
	registry.IncEventDropped("bus")
	if registry.Snapshot() != (Snapshot{}) {
		t.Fatal("expected empty snapshot")
	}
	if err := registry.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
