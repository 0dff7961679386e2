package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/osmium-labs/chassis/internal/kernel/journal"
	"github.com/osmium-labs/chassis/internal/kernel/state"
)

// registration pairs a service with its lifecycle status. The status is
// owned here, not by the service: it flips only when a hook completes.
type registration struct {
	svc    Service
	status state.Status
}

// Registry owns the mapping from service identity to instance. Identities
// are unique; insertion order is the authoritative init and shutdown order.
type Registry struct {
	order []string
	regs  map[string]*registration
	jrnl  journal.Sink
}

// NewRegistry creates an empty registry reporting to the given journal.
// A nil sink discards records.
func NewRegistry(jrnl journal.Sink) *Registry {
	if jrnl == nil {
		jrnl = journal.Discard{}
	}
	return &Registry{
		regs: make(map[string]*registration),
		jrnl: jrnl,
	}
}

// Register adds a service under its name. A duplicate name is rejected and
// the original registration stays bound.
func (r *Registry) Register(svc Service) error {
	name := svc.Name()
	if _, exists := r.regs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateService, name)
	}

	r.regs[name] = &registration{svc: svc, status: state.StatusRegistered}
	r.order = append(r.order, name)

	r.jrnl.Append(journal.Record{
		Type:      journal.RecordServiceRegistered,
		Component: name,
		Message:   fmt.Sprintf("service %s registered (position %d)", name, len(r.order)-1),
	})
	return nil
}

// Get returns the instance bound to the given name.
func (r *Registry) Get(name string) (Service, error) {
	reg, ok := r.regs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	return reg.svc, nil
}

// Status returns the lifecycle status of the named service, or
// StatusUnknown if it is not registered.
func (r *Registry) Status(name string) state.Status {
	reg, ok := r.regs[name]
	if !ok {
		return state.StatusUnknown
	}
	return reg.status
}

// Initialized reports whether the named service's init hook has completed.
func (r *Registry) Initialized(name string) bool {
	return r.Status(name).IsReady()
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	return len(r.order)
}

// Names returns the identities in registration order. The slice is a copy.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Info is a read-only snapshot of one registration.
type Info struct {
	Name   string       `json:"name"`
	Status state.Status `json:"status"`
}

// Snapshot returns registration info in insertion order.
func (r *Registry) Snapshot() []Info {
	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Info{Name: name, Status: r.regs[name].status})
	}
	return out
}

// Initialize awaits each service's init hook in registration order. The
// first failure stops the pass: earlier services stay initialized, later
// ones are never touched, and the originating error is returned wrapped
// with the failing service's name.
func (r *Registry) Initialize(ctx context.Context) error {
	for _, name := range r.order {
		reg := r.regs[name]
		reg.status = state.StatusInitializing
		r.jrnl.Append(journal.Record{
			Type:      journal.RecordServiceInitializing,
			Severity:  journal.SeverityDebug,
			Component: name,
		})

		start := time.Now()
		if err := reg.svc.OnInitialize(ctx); err != nil {
			reg.status = state.StatusFailed
			r.jrnl.Append(journal.Record{
				Type:      journal.RecordServiceInitFailed,
				Severity:  journal.SeverityError,
				Component: name,
				Error:     err.Error(),
				Duration:  time.Since(start),
			})
			return fmt.Errorf("initialize service %s: %w", name, err)
		}

		reg.status = state.StatusReady
		r.jrnl.Append(journal.Record{
			Type:      journal.RecordServiceInitialized,
			Component: name,
			Duration:  time.Since(start),
		})
	}
	return nil
}

// Shutdown awaits each service's shutdown hook in registration order. A
// failing hook does not stop the pass; all failures are joined into the
// returned error.
func (r *Registry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, name := range r.order {
		reg := r.regs[name]
		reg.status = state.StatusStopping
		r.jrnl.Append(journal.Record{
			Type:      journal.RecordServiceStopping,
			Severity:  journal.SeverityDebug,
			Component: name,
		})

		start := time.Now()
		if err := reg.svc.OnShutdown(ctx); err != nil {
			reg.status = state.StatusStopFailed
			errs = append(errs, fmt.Errorf("shutdown service %s: %w", name, err))
			r.jrnl.Append(journal.Record{
				Type:      journal.RecordServiceStopFailed,
				Severity:  journal.SeverityError,
				Component: name,
				Error:     err.Error(),
				Duration:  time.Since(start),
			})
			continue
		}

		reg.status = state.StatusStopped
		r.jrnl.Append(journal.Record{
			Type:      journal.RecordServiceStopped,
			Component: name,
			Duration:  time.Since(start),
		})
	}
	return errors.Join(errs...)
}
