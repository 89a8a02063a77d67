// Package logbuf keeps recent log records in memory so they can be shown
// in the terminal monitor or inspected by tests.
package logbuf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Entry is a single formatted log record.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   string
}

// Buffer is a thread-safe circular buffer of log entries.
type Buffer struct {
	mutex   sync.RWMutex
	entries []Entry
	index   int
	count   int
}

// New creates a buffer holding at most size entries.
func New(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{entries: make([]Entry, size)}
}

// Add inserts an entry, overwriting the oldest one when full.
func (b *Buffer) Add(entry Entry) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.entries[b.index] = entry
	b.index = (b.index + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
}

// Recent returns up to max entries, newest first. max <= 0 returns all of them.
func (b *Buffer) Recent(max int) []Entry {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]Entry, n)
	for i := 0; i < n; i++ {
		result[i] = b.entries[(b.index-1-i+len(b.entries))%len(b.entries)]
	}
	return result
}

// Len returns the number of stored entries.
func (b *Buffer) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.count
}

// Count returns how many stored entries have the given level and message.
func (b *Buffer) Count(level slog.Level, message string) int {
	n := 0
	for _, e := range b.Recent(0) {
		if e.Level == level && e.Message == message {
			n++
		}
	}
	return n
}

// Clear removes all entries.
func (b *Buffer) Clear() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.count = 0
	b.index = 0
}

// Handler is a slog.Handler that records into a Buffer.
type Handler struct {
	buffer *Buffer
	level  slog.Leveler
	attrs  string
	group  string
}

// NewHandler creates a handler writing records at or above level to buffer.
func NewHandler(buffer *Buffer, level slog.Leveler) *Handler {
	return &Handler{buffer: buffer, level: level}
}

// NewLogger is a shorthand for slog.New(NewHandler(buffer, level)).
func NewLogger(buffer *Buffer, level slog.Leveler) *slog.Logger {
	return slog.New(NewHandler(buffer, level))
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, record slog.Record) error {
	var sb strings.Builder
	sb.WriteString(h.attrs)
	record.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&sb, a)
		return true
	})

	h.buffer.Add(Entry{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Attrs:   strings.TrimSpace(sb.String()),
	})
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	var sb strings.Builder
	sb.WriteString(h.attrs)
	for _, a := range attrs {
		h.writeAttr(&sb, a)
	}
	clone.attrs = sb.String()
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	clone.group = name
	return &clone
}

func (h *Handler) writeAttr(sb *strings.Builder, a slog.Attr) {
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	fmt.Fprintf(sb, " %s=%v", key, a.Value)
}

// Format renders an entry as a single display line.
func Format(entry Entry) string {
	var level string
	switch entry.Level {
	case slog.LevelDebug:
		level = "DBG"
	case slog.LevelInfo:
		level = "INF"
	case slog.LevelWarn:
		level = "WRN"
	case slog.LevelError:
		level = "ERR"
	default:
		level = "???"
	}

	line := fmt.Sprintf("%s [%s] %s", entry.Time.Format("15:04:05"), level, entry.Message)
	if entry.Attrs != "" {
		line += " " + entry.Attrs
	}
	return line
}
