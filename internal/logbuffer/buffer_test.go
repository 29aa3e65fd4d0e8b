/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logbuffer

import (
	"testing"
	"time"
)

func entry(level, component, message string) LogEntry {
	return LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Component: component,
		Message:   message,
	}
}

func TestRingBufferWrapsAround(t *testing.T) {
	buf := New(3)

	buf.Add(entry("info", "api", "one"))
	buf.Add(entry("info", "api", "two"))
	buf.Add(entry("info", "api", "three"))
	buf.Add(entry("info", "api", "four"))

	all := buf.GetAll()
	if len(all) != 3 {
		t.Fatalf("entries = %d, want 3", len(all))
	}
	if all[0].Message != "two" || all[2].Message != "four" {
		t.Errorf("oldest entry not evicted: %q .. %q", all[0].Message, all[2].Message)
	}
}

func TestQueryFilters(t *testing.T) {
	buf := New(16)
	buf.Add(entry("info", "api", "request served"))
	buf.Add(entry("error", "player", "resolution failed"))
	buf.Add(entry("info", "player", "track started"))

	byLevel := buf.Query(QueryParams{Level: "error"})
	if len(byLevel) != 1 || byLevel[0].Component != "player" {
		t.Errorf("level filter = %v", byLevel)
	}

	byComponent := buf.Query(QueryParams{Component: "player"})
	if len(byComponent) != 2 {
		t.Errorf("component filter = %d entries, want 2", len(byComponent))
	}

	bySearch := buf.Query(QueryParams{Search: "RESOLUTION"})
	if len(bySearch) != 1 {
		t.Errorf("case-insensitive search = %d entries, want 1", len(bySearch))
	}

	newest := buf.Query(QueryParams{Descending: true, Limit: 1})
	if len(newest) != 1 || newest[0].Message != "track started" {
		t.Errorf("descending limit = %v", newest)
	}
}

func TestStatsAndClear(t *testing.T) {
	buf := New(16)
	buf.Add(entry("info", "api", "one"))
	buf.Add(entry("info", "api", "two"))
	buf.Add(entry("warn", "api", "three"))

	stats := buf.Stats()
	if stats.Count != 3 || stats.LevelCount["info"] != 2 || stats.LevelCount["warn"] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	buf.Clear()
	if got := len(buf.GetAll()); got != 0 {
		t.Errorf("entries after clear = %d", got)
	}
}

func TestWriterParsesStructuredLogs(t *testing.T) {
	buf := New(16)
	w := NewWriter(buf, nil)

	line := []byte(`{"level":"info","component":"player","message":"track started","track_id":"t1","time":"2026-01-02T15:04:05Z"}`)
	n, err := w.Write(line)
	if err != nil || n != len(line) {
		t.Fatalf("write = (%d, %v)", n, err)
	}

	all := buf.GetAll()
	if len(all) != 1 {
		t.Fatalf("entries = %d, want 1", len(all))
	}
	got := all[0]
	if got.Level != "info" || got.Component != "player" || got.Message != "track started" {
		t.Errorf("parsed entry = %+v", got)
	}
	if got.Fields["track_id"] != "t1" {
		t.Errorf("fields = %v", got.Fields)
	}
	if got.Timestamp.Year() != 2026 {
		t.Errorf("timestamp not taken from log line: %v", got.Timestamp)
	}

	// Non-JSON noise is passed through without being indexed
	if _, err := w.Write([]byte("plain text line\n")); err != nil {
		t.Fatalf("plain write: %v", err)
	}
	if got := len(buf.GetAll()); got != 1 {
		t.Errorf("entries after plain write = %d, want 1", got)
	}
}
