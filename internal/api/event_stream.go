package api

import (
	"context"

	"marknote/internal/event"
	"marknote/internal/metrics"
	"marknote/internal/watcher"
)

const uiEventsBusName = "ui_events"

// DefaultMaxEventClients caps concurrent /ws/events connections.
const DefaultMaxEventClients = 32

// FileChange is the message pushed to UI clients on /ws/events.
type FileChange struct {
	Event string   `json:"event"`
	Kind  string   `json:"kind"`
	Paths []string `json:"paths"`
}

// EventStream fans change notifications out to connected UI clients. It is
// the watcher.Emitter of the running server.
type EventStream struct {
	bus *event.Bus[FileChange]
}

type EventStreamOptions struct {
	Registry *metrics.Registry
	// MaxClients defaults to DefaultMaxEventClients; negative means no cap.
	MaxClients int
}

func NewEventStream(ctx context.Context, options EventStreamOptions) *EventStream {
	maxClients := options.MaxClients
	if maxClients == 0 {
		maxClients = DefaultMaxEventClients
	}
	if maxClients < 0 {
		maxClients = 0
	}
	return &EventStream{
		bus: event.NewBus[FileChange](ctx, event.BusOptions{
			Name:           uiEventsBusName,
			MaxSubscribers: maxClients,
			Registry:       options.Registry,
		}),
	}
}

// Emit publishes without waiting for clients. It reports
// watcher.ErrNoListeners when no client is connected.
func (stream *EventStream) Emit(name string, notification watcher.Notification) error {
	if stream == nil || stream.bus.SubscriberCount() == 0 {
		return watcher.ErrNoListeners
	}
	stream.bus.Publish(FileChange{
		Event: name,
		Kind:  notification.Kind,
		Paths: notification.Paths,
	})
	return nil
}

// Subscribe registers a client. With kinds set, the client only receives
// changes of those kinds. It fails with event.ErrSubscriberLimit when the
// stream is full.
func (stream *EventStream) Subscribe(kinds []watcher.Kind) (<-chan FileChange, func(), error) {
	if stream == nil {
		return nil, func() {}, event.ErrBusClosed
	}
	if len(kinds) == 0 {
		return stream.bus.SubscribeFiltered(nil)
	}
	wanted := make(map[string]struct{}, len(kinds))
	for _, kind := range kinds {
		wanted[string(kind)] = struct{}{}
	}
	return stream.bus.SubscribeFiltered(func(change FileChange) bool {
		_, ok := wanted[change.Kind]
		return ok
	})
}

func (stream *EventStream) Listeners() int {
	if stream == nil {
		return 0
	}
	return stream.bus.SubscriberCount()
}

func (stream *EventStream) Close() {
	if stream == nil {
		return
	}
	stream.bus.Close()
}
