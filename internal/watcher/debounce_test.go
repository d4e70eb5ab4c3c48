package watcher

import (
	"testing"
	"time"

	"marknote/internal/metrics"
)

func TestDebouncerCoalescesEvents(t *testing.T) {
	registry := &metrics.Registry{}
	debouncer := newDebouncer(100*time.Millisecond, registry)
	start := time.Now()

	debouncer.add(RawEvent{Kind: KindCreate, Paths: []string{"/notes/a.md"}}, start)
	debouncer.add(RawEvent{Kind: KindModify, Paths: []string{"/notes/a.md"}}, start.Add(20*time.Millisecond))
	debouncer.add(RawEvent{Kind: KindModify, Paths: []string{"/notes/a.md"}}, start.Add(40*time.Millisecond))
	debouncer.add(RawEvent{Kind: KindModify, Paths: []string{"/notes/a.md"}}, start.Add(60*time.Millisecond))

	if events := debouncer.due(start.Add(100 * time.Millisecond)); len(events) != 0 {
		t.Fatalf("expected window to be extended, got %d events", len(events))
	}

	events := debouncer.due(start.Add(160 * time.Millisecond))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != KindCreate {
		t.Fatalf("expected create, got %q", events[0].Kind)
	}
	if len(events[0].Paths) != 1 || events[0].Paths[0] != "/notes/a.md" {
		t.Fatalf("unexpected paths: %v", events[0].Paths)
	}
	if debouncer.pending() != 0 {
		t.Fatalf("expected nothing pending, got %d", debouncer.pending())
	}
	if got := registry.Snapshot().CoalescedEvents; got != 3 {
		t.Fatalf("expected 3 coalesced events, got %d", got)
	}
}

func TestDebouncerEmitsOnePerPathInDeadlineOrder(t *testing.T) {
	debouncer := newDebouncer(50*time.Millisecond, nil)
	start := time.Now()

	debouncer.add(RawEvent{Kind: KindModify, Paths: []string{"/b"}}, start)
	debouncer.add(RawEvent{Kind: KindModify, Paths: []string{"/a"}}, start.Add(5*time.Millisecond))
	debouncer.add(RawEvent{Kind: KindModify, Paths: []string{"/b"}}, start.Add(10*time.Millisecond))
	debouncer.add(RawEvent{Kind: KindRemove, Paths: []string{"/c"}}, start.Add(5*time.Millisecond))

	if next, ok := debouncer.next(); !ok || !next.Equal(start.Add(55*time.Millisecond)) {
		t.Fatalf("unexpected next deadline %v (%v)", next, ok)
	}

	events := debouncer.due(start.Add(time.Second))
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	want := []string{"/a", "/c", "/b"}
	for i, event := range events {
		if event.Paths[0] != want[i] {
			t.Fatalf("event %d: expected %q, got %q", i, want[i], event.Paths[0])
		}
	}
}

func TestDebouncerRunReleasesAfterQuietWindow(t *testing.T) {
	debouncer := newDebouncer(30*time.Millisecond, nil)
	in := make(chan RawEvent)
	out := make(chan Event, 4)
	stop := make(chan struct{})
	defer close(stop)

	go debouncer.run(in, out, stop)

	in <- RawEvent{Kind: KindCreate, Paths: []string{"/notes/a.md"}}
	in <- RawEvent{Kind: KindModify, Paths: []string{"/notes/a.md"}}

	select {
	case event := <-out:
		if event.Kind != KindCreate {
			t.Fatalf("expected create, got %q", event.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced event")
	}

	select {
	case event := <-out:
		t.Fatalf("unexpected extra event %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerStopDiscardsPending(t *testing.T) {
	debouncer := newDebouncer(time.Hour, nil)
	in := make(chan RawEvent)
	out := make(chan Event, 1)
	stop := make(chan struct{})

	go debouncer.run(in, out, stop)
	in <- RawEvent{Kind: KindModify, Paths: []string{"/notes/a.md"}}
	close(stop)

	select {
	case event, ok := <-out:
		if ok {
			t.Fatalf("expected pending event to be discarded, got %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for output to close")
	}
}

func TestDebouncerFlushesWhenInputCloses(t *testing.T) {
	debouncer := newDebouncer(time.Hour, nil)
	in := make(chan RawEvent)
	out := make(chan Event, 2)
	stop := make(chan struct{})
	defer close(stop)

	go debouncer.run(in, out, stop)
	in <- RawEvent{Kind: KindModify, Paths: []string{"/notes/a.md"}}
	in <- RawEvent{Kind: KindRemove, Paths: []string{"/notes"}}
	close(in)

	var kinds []Kind
	timeout := time.After(time.Second)
	for {
		select {
		case event, ok := <-out:
			if !ok {
				if len(kinds) != 2 || kinds[0] != KindModify || kinds[1] != KindRemove {
					t.Fatalf("unexpected flushed kinds %v", kinds)
				}
				return
			}
			kinds = append(kinds, event.Kind)
		case <-timeout:
			t.Fatal("timed out waiting for flush")
		}
	}
}
