package event

import (
	"context"
	"testing"

	"marknote/internal/metrics"
)

type benchChange struct {
	Kind  string
	Paths []string
}

func BenchmarkPublishWithoutSubscribers(b *testing.B) {
	bus := NewBus[benchChange](context.Background(), BusOptions{Name: "bench", Registry: &metrics.Registry{}})
	b.Cleanup(bus.Close)
	change := benchChange{Kind: "modify", Paths: []string{"/notes/a.md"}}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Publish(change)
	}
}

func BenchmarkPublishToSlowSubscribers(b *testing.B) {
	bus := NewBus[benchChange](context.Background(), BusOptions{
		Name:                 "bench",
		SubscriberBufferSize: 1,
		Registry:             &metrics.Registry{},
	})
	b.Cleanup(bus.Close)

	for i := 0; i < 8; i++ {
		_, cancel := bus.Subscribe()
		b.Cleanup(cancel)
	}
	change := benchChange{Kind: "create", Paths: []string{"/notes/b.md"}}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Publish(change)
	}
}
