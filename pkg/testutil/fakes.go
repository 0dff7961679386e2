// Package testutil provides shared fakes for kernel tests: scripted
// services and layers that record the order of lifecycle calls and can be
// told to fail on demand.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/osmium-labs/chassis/internal/kernel/event"
)

// CallLog records call entries in order. Share one log across several fakes
// to assert cross-component ordering.
type CallLog struct {
	mu      sync.Mutex
	entries []string
}

// NewCallLog creates an empty call log.
func NewCallLog() *CallLog {
	return &CallLog{}
}

// Record appends an entry.
func (c *CallLog) Record(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the recorded entries.
func (c *CallLog) Entries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.entries))
	copy(out, c.entries)
	return out
}

// Reset drops all recorded entries.
func (c *CallLog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

// FakeService is a scripted service.Service implementation.
type FakeService struct {
	ServiceName string
	InitErr     error
	ShutdownErr error
	Log         *CallLog

	InitCalls     int
	ShutdownCalls int
}

// NewFakeService creates a fake service recording into the given log.
func NewFakeService(name string, log *CallLog) *FakeService {
	return &FakeService{ServiceName: name, Log: log}
}

// Name implements service.Service.
func (f *FakeService) Name() string { return f.ServiceName }

// OnInitialize implements service.Service.
func (f *FakeService) OnInitialize(context.Context) error {
	f.InitCalls++
	if f.Log != nil {
		f.Log.Record("init:%s", f.ServiceName)
	}
	return f.InitErr
}

// OnShutdown implements service.Service.
func (f *FakeService) OnShutdown(context.Context) error {
	f.ShutdownCalls++
	if f.Log != nil {
		f.Log.Record("shutdown:%s", f.ServiceName)
	}
	return f.ShutdownErr
}

// FakeLayer is a scripted layer implementation. ConsumeType, when non-zero,
// makes the layer consume every envelope of that type it sees.
type FakeLayer struct {
	LayerName   string
	AttachErr   error
	DetachErr   error
	ConsumeType event.Type
	Log         *CallLog

	AttachCalls int
	DetachCalls int
	Updates     []time.Duration
	Events      []*event.Envelope
}

// NewFakeLayer creates a fake layer recording into the given log.
func NewFakeLayer(name string, log *CallLog) *FakeLayer {
	return &FakeLayer{LayerName: name, Log: log}
}

// Name implements layer.Layer.
func (f *FakeLayer) Name() string { return f.LayerName }

// OnAttach implements layer.Layer.
func (f *FakeLayer) OnAttach() error {
	f.AttachCalls++
	if f.Log != nil {
		f.Log.Record("attach:%s", f.LayerName)
	}
	return f.AttachErr
}

// OnDetach implements layer.Layer.
func (f *FakeLayer) OnDetach() error {
	f.DetachCalls++
	if f.Log != nil {
		f.Log.Record("detach:%s", f.LayerName)
	}
	return f.DetachErr
}

// OnUpdate implements layer.Layer.
func (f *FakeLayer) OnUpdate(dt time.Duration) {
	f.Updates = append(f.Updates, dt)
	if f.Log != nil {
		f.Log.Record("update:%s", f.LayerName)
	}
}

// OnEvent implements layer.Layer.
func (f *FakeLayer) OnEvent(env *event.Envelope) {
	f.Events = append(f.Events, env)
	if f.Log != nil {
		f.Log.Record("event:%s:%s", f.LayerName, env.Name())
	}
	if f.ConsumeType != event.TypeNone && env.Type() == f.ConsumeType {
		env.Consume()
	}
}

// UniqueName returns a prefixed identity that will not collide across tests.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}
