// Package journal provides the kernel's structured lifecycle record log.
// Every observable kernel transition (registration, layer push, init,
// shutdown, errors) is appended here; log sinks attach through Subscribe
// rather than being called directly by kernel code.
package journal

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecordType classifies a kernel record.
type RecordType string

const (
	// Service lifecycle
	RecordServiceRegistered   RecordType = "service.registered"
	RecordServiceInitializing RecordType = "service.initializing"
	RecordServiceInitialized  RecordType = "service.initialized"
	RecordServiceInitFailed   RecordType = "service.init_failed"
	RecordServiceStopping     RecordType = "service.stopping"
	RecordServiceStopped      RecordType = "service.stopped"
	RecordServiceStopFailed   RecordType = "service.stop_failed"

	// Layer stack
	RecordLayerPushed       RecordType = "layer.pushed"
	RecordLayerPopped       RecordType = "layer.popped"
	RecordLayerAttachFailed RecordType = "layer.attach_failed"
	RecordLayerDetachFailed RecordType = "layer.detach_failed"
	RecordStackShutdown     RecordType = "stack.shutdown"

	// Envelope flow
	RecordEnvelopeEmitted    RecordType = "envelope.emitted"
	RecordEnvelopeConsumed   RecordType = "envelope.consumed"
	RecordEnvelopeSuppressed RecordType = "envelope.suppressed"

	// Orchestrator
	RecordAppStarted       RecordType = "app.started"
	RecordAppTick          RecordType = "app.tick"
	RecordAppCloseRequest  RecordType = "app.close_requested"
	RecordAppShutdownBegin RecordType = "app.shutdown"
	RecordAppTerminated    RecordType = "app.terminated"
)

// Severity indicates the importance of a record.
type Severity string

const (
	SeverityDebug   Severity = "debug"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Record is one structured kernel log entry.
type Record struct {
	ID        string        `json:"id"`
	Type      RecordType    `json:"type"`
	Severity  Severity      `json:"severity"`
	Timestamp time.Time     `json:"timestamp"`
	Component string        `json:"component,omitempty"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
}

// Handler processes records as they are appended.
type Handler func(Record)

// Filter decides whether a record should reach a handler.
type Filter func(Record) bool

// Sink is the write side of the journal, consumed by kernel components.
type Sink interface {
	Append(Record)
}

// Discard is a Sink that drops all records.
type Discard struct{}

// Append implements Sink.
func (Discard) Append(Record) {}

// RingBuffer is a fixed-capacity record log with subscription support. It
// is safe for concurrent use; the kernel itself appends from a single
// goroutine but subscribed sinks may be inspected from others.
type RingBuffer struct {
	mu       sync.RWMutex
	records  []Record
	size     int
	head     int
	count    int
	handlers []handlerEntry
	nextID   int64
}

type handlerEntry struct {
	id      int64
	filter  Filter
	handler Handler
}

// DefaultCapacity is the record capacity used when none is given.
const DefaultCapacity = 512

// NewRingBuffer creates a journal holding up to capacity records.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingBuffer{
		records: make([]Record, capacity),
		size:    capacity,
	}
}

// Append stores the record and notifies subscribed handlers. Missing ID and
// timestamp fields are filled in.
func (rb *RingBuffer) Append(rec Record) {
	rb.mu.Lock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Severity == "" {
		rec.Severity = SeverityInfo
	}

	rb.records[rb.head] = rec
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}

	handlers := make([]handlerEntry, len(rb.handlers))
	copy(handlers, rb.handlers)
	rb.mu.Unlock()

	// Handlers run outside the lock so they may query the journal.
	for _, h := range handlers {
		if h.filter == nil || h.filter(rec) {
			h.handler(rec)
		}
	}
}

// Subscribe registers a handler for all records and returns an unsubscribe
// function.
func (rb *RingBuffer) Subscribe(handler Handler) func() {
	return rb.SubscribeFiltered(nil, handler)
}

// SubscribeFiltered registers a handler receiving only records accepted by
// the filter.
func (rb *RingBuffer) SubscribeFiltered(filter Filter, handler Handler) func() {
	rb.mu.Lock()
	id := rb.nextID
	rb.nextID++
	rb.handlers = append(rb.handlers, handlerEntry{id: id, filter: filter, handler: handler})
	rb.mu.Unlock()

	return func() {
		rb.mu.Lock()
		defer rb.mu.Unlock()
		for i, h := range rb.handlers {
			if h.id == id {
				rb.handlers = append(rb.handlers[:i], rb.handlers[i+1:]...)
				return
			}
		}
	}
}

// Recent returns up to n records, newest first.
func (rb *RingBuffer) Recent(n int) []Record {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || rb.count == 0 {
		return nil
	}
	if n > rb.count {
		n = rb.count
	}

	result := make([]Record, n)
	for i := 0; i < n; i++ {
		idx := (rb.head - 1 - i + rb.size) % rb.size
		result[i] = rb.records[idx]
	}
	return result
}

// RecentByComponent returns up to n records for one component, newest first.
func (rb *RingBuffer) RecentByComponent(component string, n int) []Record {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || rb.count == 0 {
		return nil
	}

	var result []Record
	for i := 0; i < rb.count && len(result) < n; i++ {
		idx := (rb.head - 1 - i + rb.size) % rb.size
		if rb.records[idx].Component == component {
			result = append(result, rb.records[idx])
		}
	}
	return result
}

// RecentByType returns up to n records of one type, newest first.
func (rb *RingBuffer) RecentByType(rt RecordType, n int) []Record {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || rb.count == 0 {
		return nil
	}

	var result []Record
	for i := 0; i < rb.count && len(result) < n; i++ {
		idx := (rb.head - 1 - i + rb.size) % rb.size
		if rb.records[idx].Type == rt {
			result = append(result, rb.records[idx])
		}
	}
	return result
}

// Count returns the number of stored records.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Clear drops all stored records. Subscriptions are kept.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.records = make([]Record, rb.size)
	rb.head = 0
	rb.count = 0
}
