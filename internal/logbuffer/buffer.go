/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer provides an in-memory ring buffer for capturing logs.
package logbuffer

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
)

// LogEntry represents a single log entry.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Raw       string         `json:"raw,omitempty"`
}

// Buffer is a thread-safe ring buffer for log entries.
type Buffer struct {
	mu       sync.RWMutex
	entries  []LogEntry
	capacity int
	head     int
	count    int
}

// New creates a new log buffer with the specified capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Buffer{
		entries:  make([]LogEntry, capacity),
		capacity: capacity,
	}
}

// Add adds a log entry to the buffer.
func (b *Buffer) Add(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// GetAll returns all log entries in chronological order.
func (b *Buffer) GetAll() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]LogEntry, b.count)
	if b.count == 0 {
		return result
	}

	start := 0
	if b.count == b.capacity {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		result[i] = b.entries[(start+i)%b.capacity]
	}
	return result
}

// QueryParams filters log entries.
type QueryParams struct {
	Level      string    // Filter by level (debug, info, warn, error)
	Component  string    // Filter by component
	Search     string    // Search in message
	Since      time.Time // Only entries after this time
	Limit      int       // Max entries to return (0 = all)
	Descending bool      // Return newest first
}

// Query returns log entries matching the filter criteria.
func (b *Buffer) Query(params QueryParams) []LogEntry {
	all := b.GetAll()

	var filtered []LogEntry
	for _, entry := range all {
		if params.Level != "" && entry.Level != params.Level {
			continue
		}
		if params.Component != "" && entry.Component != params.Component {
			continue
		}
		if !params.Since.IsZero() && entry.Timestamp.Before(params.Since) {
			continue
		}
		if params.Search != "" && !matchesSearch(entry, params.Search) {
			continue
		}
		filtered = append(filtered, entry)
	}

	if params.Descending {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}

	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[:params.Limit]
	}
	return filtered
}

func matchesSearch(entry LogEntry, search string) bool {
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(entry.Message), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(entry.Component), needle) {
		return true
	}
	for _, v := range entry.Fields {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// Stats returns buffer statistics.
type Stats struct {
	Capacity   int            `json:"capacity"`
	Count      int            `json:"count"`
	LevelCount map[string]int `json:"level_count"`
}

func (b *Buffer) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := Stats{
		Capacity:   b.capacity,
		LevelCount: make(map[string]int),
	}
	for i := 0; i < b.count; i++ {
		idx := i
		if b.count == b.capacity {
			idx = (b.head + i) % b.capacity
		}
		stats.Count++
		stats.LevelCount[b.entries[idx].Level]++
	}
	return stats
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
}

// Writer wraps the buffer to implement io.Writer for zerolog.
type Writer struct {
	buffer   *Buffer
	fallback io.Writer
}

// NewWriter creates a writer that captures logs to the buffer.
func NewWriter(buffer *Buffer, fallback io.Writer) *Writer {
	return &Writer{buffer: buffer, fallback: fallback}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (n int, err error) {
	var rawEntry map[string]any
	if err := json.Unmarshal(p, &rawEntry); err == nil {
		entry := LogEntry{
			Timestamp: time.Now(),
			Fields:    make(map[string]any),
			Raw:       string(p),
		}

		if lvl, ok := rawEntry["level"].(string); ok {
			entry.Level = lvl
			delete(rawEntry, "level")
		}
		if msg, ok := rawEntry["message"].(string); ok {
			entry.Message = msg
			delete(rawEntry, "message")
		}
		if comp, ok := rawEntry["component"].(string); ok {
			entry.Component = comp
			delete(rawEntry, "component")
		}
		if ts, ok := rawEntry["time"].(string); ok {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				entry.Timestamp = t
			}
			delete(rawEntry, "time")
		}
		for k, v := range rawEntry {
			entry.Fields[k] = v
		}

		w.buffer.Add(entry)
	}

	if w.fallback != nil {
		return w.fallback.Write(p)
	}
	return len(p), nil
}
