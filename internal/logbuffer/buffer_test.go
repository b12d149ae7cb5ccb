package logbuffer

import (
	"testing"
	"time"
)

func TestRingBufferWrapsAround(t *testing.T) {
	b := New(3)
	for i, msg := range []string{"one", "two", "three", "four"} {
		b.Add(LogEntry{Message: msg, Timestamp: time.Unix(int64(i), 0)})
	}

	all := b.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Message != "two" || all[2].Message != "four" {
		t.Fatalf("unexpected order after wrap: %+v", all)
	}
}

func TestQueryFilters(t *testing.T) {
	b := New(10)
	b.Add(LogEntry{Level: "info", Component: "store", Message: "state loaded"})
	b.Add(LogEntry{Level: "error", Component: "stream", Message: "client aborted"})
	b.Add(LogEntry{Level: "info", Component: "stream", Message: "stream complete"})

	errs := b.Query(QueryParams{Level: "error"})
	if len(errs) != 1 || errs[0].Message != "client aborted" {
		t.Fatalf("unexpected level filter result: %+v", errs)
	}

	stream := b.Query(QueryParams{Component: "stream", Descending: true})
	if len(stream) != 2 || stream[0].Message != "stream complete" {
		t.Fatalf("unexpected component filter result: %+v", stream)
	}

	search := b.Query(QueryParams{Search: "ABORTED"})
	if len(search) != 1 {
		t.Fatalf("expected case-insensitive search hit, got %+v", search)
	}

	limited := b.Query(QueryParams{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("expected limit applied, got %d entries", len(limited))
	}
}

func TestWriterParsesZerologJSON(t *testing.T) {
	b := New(10)
	w := NewWriter(b, nil)

	line := []byte(`{"level":"warn","component":"store","message":"state file corrupt, starting empty","path":"/tmp/x.json"}`)
	if _, err := w.Write(line); err != nil {
		t.Fatalf("write: %v", err)
	}

	all := b.GetAll()
	if len(all) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(all))
	}
	e := all[0]
	if e.Level != "warn" || e.Component != "store" {
		t.Fatalf("unexpected parsed entry: %+v", e)
	}
	if e.Fields["path"] != "/tmp/x.json" {
		t.Fatalf("expected extra fields preserved, got %+v", e.Fields)
	}
}

func TestStatsCountsLevels(t *testing.T) {
	b := New(10)
	b.Add(LogEntry{Level: "info"})
	b.Add(LogEntry{Level: "info"})
	b.Add(LogEntry{Level: "error"})

	stats := b.Stats()
	if stats.Count != 3 || stats.LevelCount["info"] != 2 || stats.LevelCount["error"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
