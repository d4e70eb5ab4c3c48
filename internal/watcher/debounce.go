package watcher

import (
	"sort"
	"time"

	"marknote/internal/metrics"
)

type pendingChange struct {
	event    Event
	deadline time.Time
	seq      uint64
}

// debouncer holds at most one pending change per path. Each raw event for a
// path pushes its deadline out by the window; a change is released once its
// path has been quiet for the whole window.
type debouncer struct {
	window  time.Duration
	entries map[string]*pendingChange
	seq     uint64
	metrics *metrics.Registry
}

func newDebouncer(window time.Duration, registry *metrics.Registry) *debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &debouncer{
		window:  window,
		entries: make(map[string]*pendingChange),
		metrics: registry,
	}
}

func (debouncer *debouncer) add(raw RawEvent, now time.Time) {
	if len(raw.Paths) == 0 {
		return
	}
	key := raw.Paths[0]
	entry, ok := debouncer.entries[key]
	if !ok {
		debouncer.seq++
		debouncer.entries[key] = &pendingChange{
			event: Event{
				Kind:  raw.Kind,
				Paths: append([]string(nil), raw.Paths...),
				Time:  raw.Time,
			},
			deadline: now.Add(debouncer.window),
			seq:      debouncer.seq,
		}
		return
	}

	entry.event.Kind = mergeKind(entry.event.Kind, raw.Kind)
	if len(raw.Paths) > len(entry.event.Paths) {
		entry.event.Paths = append([]string(nil), raw.Paths...)
	}
	if raw.Time.After(entry.event.Time) {
		entry.event.Time = raw.Time
	}
	entry.deadline = now.Add(debouncer.window)
	debouncer.metrics.IncCoalesced(1)
}

// next returns the earliest pending deadline.
func (debouncer *debouncer) next() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, entry := range debouncer.entries {
		if !found || entry.deadline.Before(earliest) {
			earliest = entry.deadline
			found = true
		}
	}
	return earliest, found
}

// due removes and returns every change whose deadline is not after now,
// ordered by deadline and then by arrival.
func (debouncer *debouncer) due(now time.Time) []Event {
	var ready []*pendingChange
	for key, entry := range debouncer.entries {
		if entry.deadline.After(now) {
			continue
		}
		ready = append(ready, entry)
		delete(debouncer.entries, key)
	}
	return ordered(ready)
}

// drain removes and returns every pending change regardless of deadline.
func (debouncer *debouncer) drain() []Event {
	ready := make([]*pendingChange, 0, len(debouncer.entries))
	for key, entry := range debouncer.entries {
		ready = append(ready, entry)
		delete(debouncer.entries, key)
	}
	return ordered(ready)
}

func (debouncer *debouncer) pending() int {
	return len(debouncer.entries)
}

func ordered(entries []*pendingChange) []Event {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].deadline.Equal(entries[j].deadline) {
			return entries[i].seq < entries[j].seq
		}
		return entries[i].deadline.Before(entries[j].deadline)
	})
	events := make([]Event, 0, len(entries))
	for _, entry := range entries {
		events = append(events, entry.event)
	}
	return events
}

// run coalesces raw events from in and writes released changes to out until
// stop is closed or in is closed. Pending changes are discarded on stop and
// flushed when in closes. out is closed on return.
func (debouncer *debouncer) run(in <-chan RawEvent, out chan<- Event, stop <-chan struct{}) {
	defer close(out)

	timer := time.NewTimer(debouncer.window)
	timer.Stop()
	defer timer.Stop()

	for {
		var fire <-chan time.Time
		if deadline, ok := debouncer.next(); ok {
			timer.Reset(time.Until(deadline))
			fire = timer.C
		}

		select {
		case <-stop:
			return
		case raw, ok := <-in:
			if !ok {
				debouncer.emit(debouncer.drain(), out, stop)
				return
			}
			debouncer.add(raw, time.Now())
		case <-fire:
			if !debouncer.emit(debouncer.due(time.Now()), out, stop) {
				return
			}
		}
	}
}

func (debouncer *debouncer) emit(events []Event, out chan<- Event, stop <-chan struct{}) bool {
	for _, event := range events {
		select {
		case out <- event:
		case <-stop:
			return false
		}
	}
	return true
}
