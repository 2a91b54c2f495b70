package logger

import (
	"encoding/json"
	"sync"
)

const defaultBufferSize = 1000

// Broadcaster is the interface for broadcasting messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// LogEntry represents a parsed log entry for streaming.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LogBroadcaster implements io.Writer, buffering zerolog output and
// forwarding each entry to the attached hub.
type LogBroadcaster struct {
	buffer *RingBuffer[LogEntry]

	mu  sync.RWMutex
	hub Broadcaster
}

// NewLogBroadcaster creates a new log broadcaster.
// Hub may be nil initially and attached later with SetHub.
func NewLogBroadcaster(hub Broadcaster, bufferSize int) *LogBroadcaster {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &LogBroadcaster{
		hub:    hub,
		buffer: NewRingBuffer[LogEntry](bufferSize),
	}
}

// SetHub attaches the broadcaster hub for streaming entries.
func (b *LogBroadcaster) SetHub(hub Broadcaster) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hub = hub
}

// Write implements io.Writer. It receives JSON log entries from zerolog.
// Malformed lines are dropped silently; logging must never fail the caller.
func (b *LogBroadcaster) Write(p []byte) (n int, err error) {
	n = len(p)

	entry, ok := parseLogEntry(p)
	if !ok {
		return n, nil
	}

	b.buffer.Push(entry)

	b.mu.RLock()
	hub := b.hub
	b.mu.RUnlock()

	if hub != nil {
		_ = hub.Broadcast("logs:entry", entry)
	}

	return n, nil
}

// RecentLogs returns all buffered log entries, oldest first.
func (b *LogBroadcaster) RecentLogs() []LogEntry {
	return b.buffer.Items()
}

// parseLogEntry decodes one zerolog JSON line into a LogEntry. The known
// fields are lifted out; everything else lands in Fields.
func parseLogEntry(data []byte) (LogEntry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, false
	}

	entry := LogEntry{}

	if v, ok := raw["time"].(string); ok {
		entry.Timestamp = v
		delete(raw, "time")
	}
	if v, ok := raw["level"].(string); ok {
		entry.Level = v
		delete(raw, "level")
	}
	if v, ok := raw["component"].(string); ok {
		entry.Component = v
		delete(raw, "component")
	}
	if v, ok := raw["message"].(string); ok {
		entry.Message = v
		delete(raw, "message")
	}

	if len(raw) > 0 {
		entry.Fields = raw
	}

	return entry, true
}
