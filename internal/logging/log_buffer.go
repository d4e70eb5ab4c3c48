package logging

import (
	"sync"
	"time"
)

// LogBuffer keeps the most recent entries in a fixed-size ring.
type LogBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	start   int
	count   int
}

// Query selects buffered entries. Zero fields match everything; Limit keeps
// the newest matches.
type Query struct {
	MinLevel Level
	Since    time.Time
	Limit    int
}

func (q Query) Matches(entry LogEntry) bool {
	if q.MinLevel != "" && !LevelAtLeast(entry.Level, q.MinLevel) {
		return false
	}
	return q.Since.IsZero() || !entry.Timestamp.Before(q.Since)
}

func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = 1
	}
	return &LogBuffer{
		entries: make([]LogEntry, size),
	}
}

func (b *LogBuffer) Add(entry LogEntry) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	slot := (b.start + b.count) % len(b.entries)
	b.entries[slot] = entry
	if b.count < len(b.entries) {
		b.count++
		return
	}
	b.start = (b.start + 1) % len(b.entries)
}

// List returns the buffered entries oldest first.
func (b *LogBuffer) List() []LogEntry {
	return b.Select(Query{})
}

// Select returns the entries matching query, oldest first.
func (b *LogBuffer) Select(query Query) []LogEntry {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []LogEntry
	for i := 0; i < b.count; i++ {
		entry := b.entries[(b.start+i)%len(b.entries)]
		if query.Matches(entry) {
			out = append(out, entry)
		}
	}
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[len(out)-query.Limit:]
	}
	return out
}
