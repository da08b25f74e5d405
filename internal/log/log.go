// Package log provides the structured log sink shared by every component.
//
// Entries carry a level, a category, and a formatted message. They are kept in
// a bounded in-memory ring so the Logs tab can show a snapshot and follow an
// append stream; nothing is written to disk. Oldest entries are silently
// dropped once the ring is full.
package log

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zjrosen/switchyard/internal/pubsub"
)

// DefaultCapacity is the ring size of the package-level sink.
const DefaultCapacity = 500

// Level classifies the severity of a log entry.
type Level string

// Log levels, ordered debug < info < warn < error.
const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Severity returns a comparable rank for level filtering.
func (l Level) Severity() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// Category identifies the component a log entry came from.
type Category string

// Log categories.
const (
	CatGit      Category = "git"
	CatTerminal Category = "terminal"
	CatOrch     Category = "orchestrator"
	CatTracker  Category = "tracker"
	CatStore    Category = "store"
	CatDB       Category = "db"
	CatUI       Category = "ui"
	CatGitHub   Category = "github"
	CatConfig   Category = "config"
)

// Entry is an immutable log record.
type Entry struct {
	Time     time.Time
	Level    Level
	Category Category
	Message  string
}

// Timestamp returns the entry time formatted as ISO-8601.
func (e Entry) Timestamp() string {
	return e.Time.Format(time.RFC3339)
}

// Sink is a bounded circular buffer of log entries with an append stream.
type Sink struct {
	mu       sync.Mutex
	entries  []Entry
	start    int
	count    int
	capacity int
	broker   *pubsub.Broker[Entry]
	now      func() time.Time
}

// NewSink creates a sink holding at most capacity entries.
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Sink{
		entries:  make([]Entry, capacity),
		capacity: capacity,
		broker:   pubsub.NewBroker[Entry](),
		now:      time.Now,
	}
}

// Append records an entry. Key/value pairs are rendered into the message as
// "key=value" suffixes; a trailing unpaired key is rendered bare.
func (s *Sink) Append(level Level, cat Category, msg string, keyvals ...any) {
	entry := Entry{
		Level:    level,
		Category: cat,
		Message:  formatMessage(msg, keyvals...),
	}

	s.mu.Lock()
	entry.Time = s.now()
	idx := (s.start + s.count) % s.capacity
	s.entries[idx] = entry
	if s.count < s.capacity {
		s.count++
	} else {
		s.start = (s.start + 1) % s.capacity
	}
	s.mu.Unlock()

	s.broker.Publish(entry)
}

// Snapshot returns the stored entries, oldest first.
func (s *Sink) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, s.count)
	for i := 0; i < s.count; i++ {
		out = append(out, s.entries[(s.start+i)%s.capacity])
	}
	return out
}

// Len returns the number of stored entries.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Clear drops all stored entries. Subscribers are unaffected.
func (s *Sink) Clear() {
	s.mu.Lock()
	s.start = 0
	s.count = 0
	s.mu.Unlock()
}

// Subscribe returns a stream of entries appended after this call.
func (s *Sink) Subscribe() *pubsub.Subscription[Entry] {
	return s.broker.Subscribe()
}

func formatMessage(msg string, keyvals ...any) string {
	if len(keyvals) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) {
			fmt.Fprintf(&b, " %v=%v", keyvals[i], keyvals[i+1])
		} else {
			fmt.Fprintf(&b, " %v", keyvals[i])
		}
	}
	return b.String()
}

// defaultSink backs the package-level logging functions.
var defaultSink = NewSink(DefaultCapacity)

// Default returns the package-level sink (consumed by the Logs tab).
func Default() *Sink { return defaultSink }

// Debug logs a debug entry to the default sink.
func Debug(cat Category, msg string, keyvals ...any) {
	defaultSink.Append(LevelDebug, cat, msg, keyvals...)
}

// Info logs an info entry to the default sink.
func Info(cat Category, msg string, keyvals ...any) {
	defaultSink.Append(LevelInfo, cat, msg, keyvals...)
}

// Warn logs a warning entry to the default sink.
func Warn(cat Category, msg string, keyvals ...any) {
	defaultSink.Append(LevelWarn, cat, msg, keyvals...)
}

// Error logs an error entry to the default sink.
func Error(cat Category, msg string, keyvals ...any) {
	defaultSink.Append(LevelError, cat, msg, keyvals...)
}

// ErrorErr logs an error entry with the error appended as a field.
func ErrorErr(cat Category, msg string, err error, keyvals ...any) {
	kvs := append([]any{"error", err}, keyvals...)
	defaultSink.Append(LevelError, cat, msg, kvs...)
}
