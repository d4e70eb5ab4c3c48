package watcher

import (
	"time"

	"marknote/internal/logging"
	"marknote/internal/metrics"
)

// Kind categorizes a filesystem change.
type Kind string

const (
	KindCreate Kind = "create"
	KindModify Kind = "modify"
	KindRemove Kind = "remove"
	KindRename Kind = "rename"
	KindOther  Kind = "other"
)

// EventName is the UI event name used for change notifications.
const EventName = "file-change"

const DefaultDebounce = 500 * time.Millisecond

// RawEvent is a single notification reported by the operating system.
type RawEvent struct {
	Kind  Kind
	Paths []string
	Time  time.Time
}

// Event is the coalesced change for one path after its debounce window closed.
type Event struct {
	Kind  Kind
	Paths []string
	Time  time.Time
}

// Notification is the payload pushed to the UI for each Event.
type Notification struct {
	Kind  string   `json:"kind"`
	Paths []string `json:"paths"`
}

func (event Event) Notification() Notification {
	paths := make([]string, len(event.Paths))
	copy(paths, event.Paths)
	return Notification{
		Kind:  string(event.Kind),
		Paths: paths,
	}
}

// Emitter delivers notifications to the UI boundary. Delivery is fire and
// forget; an error only gets logged.
type Emitter interface {
	Emit(name string, notification Notification) error
}

type EmitterFunc func(name string, notification Notification) error

func (fn EmitterFunc) Emit(name string, notification Notification) error {
	return fn(name, notification)
}

// Options configures a Session.
type Options struct {
	Logger   *logging.Logger
	Metrics  *metrics.Registry
	Debounce time.Duration
	Ignore   []string
	// EventBuffer sizes the channel between the debouncer and the forwarder.
	EventBuffer int
}

// State is the lifecycle state of the session's watch.
type State string

const (
	StateInactive State = "inactive"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopping State = "stopping"
)

// Status is a guarded snapshot of the session.
type Status struct {
	State  State  `json:"state"`
	Active bool   `json:"active"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}
