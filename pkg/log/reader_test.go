package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.blog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, event)
	}
}

func TestReaderIteratesEvents(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), SessionID: "session-1", Direction: DirectionTX, Layer: LayerChannel, Category: CategoryLine},
		{Timestamp: time.Now(), SessionID: "session-2", Direction: DirectionRX, Layer: LayerProto, Category: CategoryExchange},
		{Timestamp: time.Now(), SessionID: "session-3", Direction: DirectionTX, Layer: LayerBridge, Category: CategoryState},
	}
	path := createTestLogFile(t, events)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 3 {
		t.Fatalf("got %d events, want 3", len(read))
	}
	if read[0].SessionID != "session-1" {
		t.Errorf("first event SessionID = %q, want %q", read[0].SessionID, "session-1")
	}
	if read[2].SessionID != "session-3" {
		t.Errorf("last event SessionID = %q, want %q", read[2].SessionID, "session-3")
	}
}

func TestReaderHandlesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.blog")
	logger, _ := NewFileLogger(path)
	logger.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	event, err := reader.Next()
	if err != io.EOF {
		t.Errorf("expected io.EOF, got err=%v, event=%+v", err, event)
	}
}

func TestReaderEOFAfterLastEvent(t *testing.T) {
	path := createTestLogFile(t, []Event{
		{Timestamp: time.Now(), SessionID: "session-1"},
	})

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Next(); err != nil {
		t.Fatalf("first Next failed: %v", err)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after all events, got %v", err)
	}
}

func TestReaderFilterBySessionID(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), SessionID: "session-A", Layer: LayerChannel},
		{Timestamp: time.Now(), SessionID: "session-B", Layer: LayerProto},
		{Timestamp: time.Now(), SessionID: "session-A", Layer: LayerBridge},
		{Timestamp: time.Now(), SessionID: "session-C", Layer: LayerChannel},
	}
	path := createTestLogFile(t, events)

	reader, err := NewFilteredReader(path, Filter{SessionID: "session-A"})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 2 {
		t.Fatalf("got %d events, want 2", len(read))
	}
	for _, e := range read {
		if e.SessionID != "session-A" {
			t.Errorf("event has SessionID=%q, want %q", e.SessionID, "session-A")
		}
	}
}

func TestReaderFilterByLayer(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), SessionID: "session-1", Layer: LayerChannel},
		{Timestamp: time.Now(), SessionID: "session-2", Layer: LayerProto},
		{Timestamp: time.Now(), SessionID: "session-3", Layer: LayerProto},
		{Timestamp: time.Now(), SessionID: "session-4", Layer: LayerBridge},
	}
	path := createTestLogFile(t, events)

	layer := LayerProto
	reader, err := NewFilteredReader(path, Filter{Layer: &layer})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 2 {
		t.Fatalf("got %d events, want 2", len(read))
	}
	for _, e := range read {
		if e.Layer != LayerProto {
			t.Errorf("event has Layer=%v, want %v", e.Layer, LayerProto)
		}
	}
}

func TestReaderFilterByDirection(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), SessionID: "session-1", Direction: DirectionRX},
		{Timestamp: time.Now(), SessionID: "session-2", Direction: DirectionTX},
		{Timestamp: time.Now(), SessionID: "session-3", Direction: DirectionRX},
	}
	path := createTestLogFile(t, events)

	dir := DirectionTX
	reader, err := NewFilteredReader(path, Filter{Direction: &dir})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 1 {
		t.Fatalf("got %d events, want 1", len(read))
	}
	if read[0].SessionID != "session-2" {
		t.Errorf("SessionID = %q, want %q", read[0].SessionID, "session-2")
	}
}

func TestReaderFilterByTimeRange(t *testing.T) {
	baseTime := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: baseTime.Add(-1 * time.Hour), SessionID: "session-1"},
		{Timestamp: baseTime, SessionID: "session-2"},
		{Timestamp: baseTime.Add(30 * time.Minute), SessionID: "session-3"},
		{Timestamp: baseTime.Add(2 * time.Hour), SessionID: "session-4"},
	}
	path := createTestLogFile(t, events)

	start := baseTime.Add(-5 * time.Minute)
	end := baseTime.Add(1 * time.Hour)
	reader, err := NewFilteredReader(path, Filter{TimeStart: &start, TimeEnd: &end})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 2 {
		t.Fatalf("got %d events, want 2 (events within time range)", len(read))
	}
	if read[0].SessionID != "session-2" || read[1].SessionID != "session-3" {
		t.Errorf("got sessions %q, %q", read[0].SessionID, read[1].SessionID)
	}
}

func TestReaderFilterByPort(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), SessionID: "session-1", Port: "/dev/ttyUSB0"},
		{Timestamp: time.Now(), SessionID: "session-2", Port: "/dev/ttyACM0"},
	}
	path := createTestLogFile(t, events)

	reader, err := NewFilteredReader(path, Filter{Port: "/dev/ttyACM0"})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 1 || read[0].SessionID != "session-2" {
		t.Fatalf("got %+v, want only session-2", read)
	}
}

func TestReaderCombinedFilters(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), SessionID: "session-A", Direction: DirectionRX, Layer: LayerChannel},
		{Timestamp: time.Now(), SessionID: "session-A", Direction: DirectionTX, Layer: LayerProto},
		{Timestamp: time.Now(), SessionID: "session-B", Direction: DirectionRX, Layer: LayerProto},
		{Timestamp: time.Now(), SessionID: "session-A", Direction: DirectionRX, Layer: LayerProto},
	}
	path := createTestLogFile(t, events)

	layer := LayerProto
	dir := DirectionRX
	reader, err := NewFilteredReader(path, Filter{
		SessionID: "session-A",
		Layer:     &layer,
		Direction: &dir,
	})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 1 {
		t.Fatalf("got %d events, want 1", len(read))
	}
	if read[0].SessionID != "session-A" || read[0].Layer != LayerProto || read[0].Direction != DirectionRX {
		t.Error("event doesn't match all filter criteria")
	}
}
