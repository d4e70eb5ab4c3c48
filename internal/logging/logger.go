package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"marknote/internal/event"
)

const (
	DefaultBufferSize = 500
	logBusName        = "logs"
)

// Logger writes leveled entries with string fields to an output writer, a
// bounded in-memory buffer and any live subscribers.
type Logger struct {
	buffer   *LogBuffer
	output   *log.Logger
	minLevel Level
	fields   map[string]string
	stream   *event.Bus[LogEntry]
}

func NewLogger(buffer *LogBuffer, minLevel Level) *Logger {
	return NewLoggerWithOutput(buffer, minLevel, os.Stdout)
}

func NewLoggerWithOutput(buffer *LogBuffer, minLevel Level, output io.Writer) *Logger {
	if buffer == nil {
		buffer = NewLogBuffer(DefaultBufferSize)
	}
	if output == nil {
		output = io.Discard
	}
	return &Logger{
		buffer:   buffer,
		output:   log.New(output, "", log.LstdFlags),
		minLevel: normalizeLevel(minLevel),
		stream:   event.NewBus[LogEntry](context.Background(), event.BusOptions{Name: logBusName}),
	}
}

// Discard returns a logger that keeps entries in a small buffer and writes nothing.
func Discard() *Logger {
	return NewLoggerWithOutput(NewLogBuffer(64), LevelInfo, io.Discard)
}

func (l *Logger) Buffer() *LogBuffer {
	if l == nil {
		return nil
	}
	return l.buffer
}

// Subscribe streams new entries the filter accepts; a nil filter accepts
// all. Slow subscribers miss entries.
func (l *Logger) Subscribe(filter func(LogEntry) bool) (<-chan LogEntry, func(), error) {
	if l == nil {
		return nil, func() {}, event.ErrBusClosed
	}
	return l.stream.SubscribeFiltered(filter)
}

// With returns a logger sharing the same sinks with extra base fields.
func (l *Logger) With(fields map[string]string) *Logger {
	if l == nil {
		return nil
	}
	derived := *l
	derived.fields = mergeFields(l.fields, fields)
	return &derived
}

func (l *Logger) Debug(message string, fields map[string]string) {
	l.Log(LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]string) {
	l.Log(LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]string) {
	l.Log(LevelWarning, message, fields)
}

func (l *Logger) Error(message string, fields map[string]string) {
	l.Log(LevelError, message, fields)
}

// Log records message at level if the logger accepts that level.
func (l *Logger) Log(level Level, message string, fields map[string]string) {
	if l == nil || !LevelAtLeast(level, l.minLevel) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Context:   mergeFields(l.fields, fields),
	}
	l.buffer.Add(entry)
	l.stream.Publish(entry)
	l.output.Print(formatEntry(entry))
}

func normalizeLevel(level Level) Level {
	switch level {
	case LevelDebug, LevelInfo, LevelWarning, LevelError:
		return level
	default:
		return LevelInfo
	}
}

func levelRank(level Level) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

func ParseLevel(value string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warning", "warn":
		return LevelWarning, true
	case "error":
		return LevelError, true
	default:
		return "", false
	}
}

func LevelAtLeast(level, minLevel Level) bool {
	if minLevel == "" {
		return true
	}
	return levelRank(level) >= levelRank(minLevel)
}

func mergeFields(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(extra))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range extra {
		merged[key] = value
	}
	return merged
}

func formatEntry(entry LogEntry) string {
	var builder strings.Builder
	builder.WriteString("level=")
	builder.WriteString(string(entry.Level))
	builder.WriteString(" msg=")
	builder.WriteString(strconv.Quote(entry.Message))

	keys := make([]string, 0, len(entry.Context))
	for key := range entry.Context {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&builder, " %s=%s", key, strconv.Quote(entry.Context[key]))
	}
	return builder.String()
}
