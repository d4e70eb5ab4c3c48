package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Registry holds process-wide counters for the watch pipeline and the UI
// event stream.
type Registry struct {
	watchesStarted   atomic.Int64
	watchesStopped   atomic.Int64
	watchesFailed    atomic.Int64
	watchesDark      atomic.Int64
	activeWatches    atomic.Int64
	rawEvents        atomic.Int64
	ignoredEvents    atomic.Int64
	coalescedEvents  atomic.Int64
	forwarded        atomic.Int64
	deliveryFailures atomic.Int64
	runtimeErrors    atomic.Int64
	buses            sync.Map
}

type busStats struct {
	published   atomic.Int64
	dropped     atomic.Int64
	subscribers atomic.Int64
}

// Snapshot is a point-in-time copy of the watch counters.
type Snapshot struct {
	WatchesStarted   int64 `json:"watches_started"`
	WatchesStopped   int64 `json:"watches_stopped"`
	WatchesFailed    int64 `json:"watches_failed"`
	WatchesDark      int64 `json:"watches_dark"`
	ActiveWatches    int64 `json:"active_watches"`
	RawEvents        int64 `json:"raw_events"`
	IgnoredEvents    int64 `json:"ignored_events"`
	CoalescedEvents  int64 `json:"coalesced_events"`
	Forwarded        int64 `json:"forwarded"`
	DeliveryFailures int64 `json:"delivery_failures"`
	RuntimeErrors    int64 `json:"runtime_errors"`
}

var Default = &Registry{}

func (r *Registry) IncWatchStarted() {
	if r == nil {
		return
	}
	r.watchesStarted.Add(1)
	r.activeWatches.Add(1)
}

func (r *Registry) IncWatchStopped() {
	if r == nil {
		return
	}
	r.watchesStopped.Add(1)
	r.activeWatches.Add(-1)
}

func (r *Registry) IncWatchFailed() {
	if r == nil {
		return
	}
	r.watchesFailed.Add(1)
}

// IncWatchDark counts a watch whose event source terminated on its own.
func (r *Registry) IncWatchDark() {
	if r == nil {
		return
	}
	r.watchesDark.Add(1)
}

func (r *Registry) IncRawEvents(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.rawEvents.Add(int64(count))
}

func (r *Registry) IncIgnoredEvent() {
	if r == nil {
		return
	}
	r.ignoredEvents.Add(1)
}

func (r *Registry) IncCoalesced(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.coalescedEvents.Add(int64(count))
}

func (r *Registry) IncForwarded() {
	if r == nil {
		return
	}
	r.forwarded.Add(1)
}

func (r *Registry) IncDeliveryFailure() {
	if r == nil {
		return
	}
	r.deliveryFailures.Add(1)
}

func (r *Registry) IncRuntimeError() {
	if r == nil {
		return
	}
	r.runtimeErrors.Add(1)
}

func (r *Registry) IncEventPublished(bus string) {
	if r == nil {
		return
	}
	r.bus(bus).published.Add(1)
}

func (r *Registry) IncEventDropped(bus string) {
	if r == nil {
		return
	}
	r.bus(bus).dropped.Add(1)
}

func (r *Registry) SetEventSubscribers(bus string, count int) {
	if r == nil {
		return
	}
	r.bus(bus).subscribers.Store(int64(count))
}

func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		WatchesStarted:   r.watchesStarted.Load(),
		WatchesStopped:   r.watchesStopped.Load(),
		WatchesFailed:    r.watchesFailed.Load(),
		WatchesDark:      r.watchesDark.Load(),
		ActiveWatches:    r.activeWatches.Load(),
		RawEvents:        r.rawEvents.Load(),
		IgnoredEvents:    r.ignoredEvents.Load(),
		CoalescedEvents:  r.coalescedEvents.Load(),
		Forwarded:        r.forwarded.Load(),
		DeliveryFailures: r.deliveryFailures.Load(),
		RuntimeErrors:    r.runtimeErrors.Load(),
	}
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	snapshot := r.Snapshot()
	writeCounter(writer, "marknote_watches_started_total", "Directory watches started", snapshot.WatchesStarted)
	writeCounter(writer, "marknote_watches_stopped_total", "Directory watches stopped or replaced", snapshot.WatchesStopped)
	writeCounter(writer, "marknote_watches_failed_total", "Directory watch start failures", snapshot.WatchesFailed)
	writeCounter(writer, "marknote_watches_dark_total", "Directory watches whose event source terminated", snapshot.WatchesDark)
	writeGauge(writer, "marknote_watches_active", "Directory watches currently active", snapshot.ActiveWatches)
	writeCounter(writer, "marknote_raw_events_total", "Raw filesystem notifications received", snapshot.RawEvents)
	writeCounter(writer, "marknote_ignored_events_total", "Raw notifications dropped by ignore patterns", snapshot.IgnoredEvents)
	writeCounter(writer, "marknote_coalesced_events_total", "Raw notifications merged into a pending change", snapshot.CoalescedEvents)
	writeCounter(writer, "marknote_notifications_forwarded_total", "Change notifications delivered to the UI", snapshot.Forwarded)
	writeCounter(writer, "marknote_delivery_failures_total", "Change notifications the UI did not accept", snapshot.DeliveryFailures)
	writeCounter(writer, "marknote_watch_runtime_errors_total", "Errors reported by the filesystem watcher", snapshot.RuntimeErrors)

	names := r.busNames()
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	writeHelp(writer, "marknote_bus_published_total", "Events published on a bus")
	fmt.Fprintln(writer, "# TYPE marknote_bus_published_total counter")
	for _, name := range names {
		fmt.Fprintf(writer, "marknote_bus_published_total{bus=%s} %d\n", formatLabel(name), r.bus(name).published.Load())
	}
	writeHelp(writer, "marknote_bus_dropped_total", "Events dropped for slow subscribers")
	fmt.Fprintln(writer, "# TYPE marknote_bus_dropped_total counter")
	for _, name := range names {
		fmt.Fprintf(writer, "marknote_bus_dropped_total{bus=%s} %d\n", formatLabel(name), r.bus(name).dropped.Load())
	}
	writeHelp(writer, "marknote_bus_subscribers", "Current bus subscribers")
	fmt.Fprintln(writer, "# TYPE marknote_bus_subscribers gauge")
	for _, name := range names {
		fmt.Fprintf(writer, "marknote_bus_subscribers{bus=%s} %d\n", formatLabel(name), r.bus(name).subscribers.Load())
	}
	return nil
}

func (r *Registry) bus(name string) *busStats {
	if strings.TrimSpace(name) == "" {
		name = "unknown"
	}
	value, _ := r.buses.LoadOrStore(name, &busStats{})
	return value.(*busStats)
}

func (r *Registry) busNames() []string {
	var names []string
	r.buses.Range(func(key, _ any) bool {
		if name, ok := key.(string); ok {
			names = append(names, name)
		}
		return true
	})
	return names
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func writeGauge(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s gauge\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
