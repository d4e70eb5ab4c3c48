package event

import (
	"context"
	"errors"
	"sync"

	"marknote/internal/metrics"
)

const defaultSubscriberBufferSize = 64

var (
	ErrBusClosed       = errors.New("event bus closed")
	ErrSubscriberLimit = errors.New("event bus subscriber limit reached")
)

type BusOptions struct {
	Name                 string
	SubscriberBufferSize int
	MaxSubscribers       int
	Registry             *metrics.Registry
}

// Bus fans published values out to subscriber channels. Publishing never
// blocks: a subscriber whose buffer is full misses the value.
type Bus[T any] struct {
	mu          sync.Mutex
	subscribers map[uint64]subscription[T]
	nextSubID   uint64
	closed      bool
	closeOnce   sync.Once
	options     BusOptions
	registry    *metrics.Registry
}

type subscription[T any] struct {
	ch     chan T
	filter func(T) bool
}

func NewBus[T any](ctx context.Context, opts BusOptions) *Bus[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.SubscriberBufferSize <= 0 {
		opts.SubscriberBufferSize = defaultSubscriberBufferSize
	}
	if opts.Name == "" {
		opts.Name = "event_bus"
	}
	bus := &Bus[T]{
		subscribers: make(map[uint64]subscription[T]),
		options:     opts,
		registry:    opts.Registry,
	}
	if bus.registry == nil {
		bus.registry = metrics.Default
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			bus.Close()
		}()
	}
	return bus
}

// Subscribe returns a closed channel when the bus rejects the subscriber.
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	ch, cancel, _ := b.SubscribeFiltered(nil)
	return ch, cancel
}

// SubscribeFiltered registers a subscriber that only receives values the
// filter accepts. The returned cancel func closes the channel. A rejected
// subscriber gets a closed channel and ErrBusClosed or ErrSubscriberLimit.
func (b *Bus[T]) SubscribeFiltered(filter func(T) bool) (<-chan T, func(), error) {
	if b == nil {
		ch := make(chan T)
		close(ch)
		return ch, func() {}, ErrBusClosed
	}

	ch := make(chan T, b.options.SubscriberBufferSize)

	b.mu.Lock()
	var rejected error
	switch {
	case b.closed:
		rejected = ErrBusClosed
	case b.options.MaxSubscribers > 0 && len(b.subscribers) >= b.options.MaxSubscribers:
		rejected = ErrSubscriberLimit
	}
	if rejected != nil {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}, rejected
	}
	b.nextSubID++
	id := b.nextSubID
	b.subscribers[id] = subscription[T]{ch: ch, filter: filter}
	count := len(b.subscribers)
	b.mu.Unlock()

	b.registry.SetEventSubscribers(b.options.Name, count)
	return ch, func() {
		b.removeSubscriber(id)
	}, nil
}

func (b *Bus[T]) Publish(value T) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.registry.IncEventPublished(b.options.Name)
	for _, sub := range b.subscribers {
		if !b.filterAllows(sub, value) {
			continue
		}
		select {
		case sub.ch <- value:
		default:
			b.registry.IncEventDropped(b.options.Name)
		}
	}
}

func (b *Bus[T]) Close() {
	if b == nil {
		return
	}
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		subscribers := b.subscribers
		b.subscribers = make(map[uint64]subscription[T])
		b.mu.Unlock()

		for _, sub := range subscribers {
			close(sub.ch)
		}
		b.registry.SetEventSubscribers(b.options.Name, 0)
	})
}

func (b *Bus[T]) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Bus[T]) Name() string {
	if b == nil {
		return ""
	}
	return b.options.Name
}

func (b *Bus[T]) removeSubscriber(id uint64) {
	b.mu.Lock()
	existing, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(existing.ch)
	}
	count := len(b.subscribers)
	b.mu.Unlock()

	if ok {
		b.registry.SetEventSubscribers(b.options.Name, count)
	}
}

// filterAllows runs with b.mu held; a panicking filter only skips the value.
func (b *Bus[T]) filterAllows(sub subscription[T], value T) (allowed bool) {
	if sub.filter == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			allowed = false
		}
	}()
	return sub.filter(value)
}
