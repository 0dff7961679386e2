package journal

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/osmium-labs/chassis/pkg/logger"
)

func TestRingBuffer_AppendFillsDefaults(t *testing.T) {
	rb := NewRingBuffer(8)
	rb.Append(Record{Type: RecordServiceRegistered, Component: "audio"})

	recent := rb.Recent(1)
	if len(recent) != 1 {
		t.Fatalf("Recent(1) returned %d records", len(recent))
	}
	rec := recent[0]
	if rec.ID == "" {
		t.Error("ID not filled in")
	}
	if rec.Timestamp.IsZero() {
		t.Error("Timestamp not filled in")
	}
	if rec.Severity != SeverityInfo {
		t.Errorf("Severity = %q, want info default", rec.Severity)
	}
}

func TestRingBuffer_WrapsAtCapacity(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Append(Record{Type: RecordAppTick, Message: fmt.Sprintf("tick-%d", i)})
	}

	if rb.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", rb.Count())
	}

	recent := rb.Recent(10)
	if len(recent) != 3 {
		t.Fatalf("Recent(10) returned %d records", len(recent))
	}
	// Newest first.
	for i, want := range []string{"tick-4", "tick-3", "tick-2"} {
		if recent[i].Message != want {
			t.Errorf("Recent[%d].Message = %q, want %q", i, recent[i].Message, want)
		}
	}
}

func TestRingBuffer_SubscribeAndUnsubscribe(t *testing.T) {
	rb := NewRingBuffer(8)

	var got []RecordType
	unsub := rb.Subscribe(func(rec Record) {
		got = append(got, rec.Type)
	})

	rb.Append(Record{Type: RecordLayerPushed})
	unsub()
	rb.Append(Record{Type: RecordLayerPopped})

	if len(got) != 1 || got[0] != RecordLayerPushed {
		t.Errorf("handler saw %v, want only layer.pushed", got)
	}
}

func TestRingBuffer_SubscribeFiltered(t *testing.T) {
	rb := NewRingBuffer(8)

	var errors int
	rb.SubscribeFiltered(func(rec Record) bool {
		return rec.Severity == SeverityError
	}, func(Record) {
		errors++
	})

	rb.Append(Record{Type: RecordAppTick, Severity: SeverityDebug})
	rb.Append(Record{Type: RecordServiceInitFailed, Severity: SeverityError})
	rb.Append(Record{Type: RecordServiceInitialized})

	if errors != 1 {
		t.Errorf("filtered handler fired %d times, want 1", errors)
	}
}

func TestRingBuffer_RecentByComponentAndType(t *testing.T) {
	rb := NewRingBuffer(16)
	rb.Append(Record{Type: RecordServiceRegistered, Component: "audio"})
	rb.Append(Record{Type: RecordServiceRegistered, Component: "render"})
	rb.Append(Record{Type: RecordServiceInitialized, Component: "audio"})

	byComponent := rb.RecentByComponent("audio", 10)
	if len(byComponent) != 2 {
		t.Fatalf("RecentByComponent(audio) returned %d, want 2", len(byComponent))
	}
	if byComponent[0].Type != RecordServiceInitialized {
		t.Errorf("newest audio record = %v, want service.initialized", byComponent[0].Type)
	}

	byType := rb.RecentByType(RecordServiceRegistered, 10)
	if len(byType) != 2 {
		t.Fatalf("RecentByType returned %d, want 2", len(byType))
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Append(Record{Type: RecordAppStarted})
	rb.Clear()

	if rb.Count() != 0 {
		t.Errorf("Count() after Clear = %d, want 0", rb.Count())
	}
	if rb.Recent(1) != nil {
		t.Error("Recent after Clear returned records")
	}
}

func TestDiscard_DropsRecords(t *testing.T) {
	var sink Sink = Discard{}
	sink.Append(Record{Type: RecordAppStarted}) // must not panic
}

func TestBridge_ForwardsToLogger(t *testing.T) {
	log := logger.New(logger.LoggingConfig{Level: "debug", Format: "text"})
	var buf bytes.Buffer
	log.SetWriter(&buf)

	rb := NewRingBuffer(4)
	rb.Subscribe(Bridge(log.Named("kernel")))

	rb.Append(Record{
		Type:      RecordServiceInitFailed,
		Severity:  SeverityError,
		Component: "audio",
		Message:   "init blew up",
		Error:     "boom",
		Duration:  5 * time.Millisecond,
	})

	out := buf.String()
	for _, want := range []string{"init blew up", "service.init_failed", "audio", "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %q", want, out)
		}
	}
}
