package watcher

import (
	"errors"
	"fmt"
	"strconv"

	"marknote/internal/logging"
	"marknote/internal/metrics"
)

// forwarder pushes debounced events to the UI emitter in the order they
// arrive. Delivery failures are logged and never stop the loop.
type forwarder struct {
	emitter Emitter
	logger  *logging.Logger
	metrics *metrics.Registry
	root    string
}

// run delivers events until the channel closes or stop is closed. Nothing is
// delivered once stop is closed, even if events are still buffered.
func (forwarder *forwarder) run(events <-chan Event, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			select {
			case <-stop:
				return
			default:
			}
			forwarder.deliver(event)
		}
	}
}

func (forwarder *forwarder) deliver(event Event) {
	notification := event.Notification()
	err := forwarder.emit(notification)
	if err == nil {
		forwarder.metrics.IncForwarded()
		return
	}

	forwarder.metrics.IncDeliveryFailure()
	fields := map[string]string{
		"root":  forwarder.root,
		"kind":  notification.Kind,
		"paths": strconv.Itoa(len(notification.Paths)),
		"error": err.Error(),
	}
	if errors.Is(err, ErrNoListeners) {
		forwarder.logger.Debug("file change not delivered", fields)
		return
	}
	forwarder.logger.Warn("file change delivery failed", fields)
}

func (forwarder *forwarder) emit(notification Notification) (err error) {
	if forwarder.emitter == nil {
		return ErrNoListeners
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("emitter panic: %v", recovered)
		}
	}()
	return forwarder.emitter.Emit(EventName, notification)
}
