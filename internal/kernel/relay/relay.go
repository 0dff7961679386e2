// Package relay provides the write-access indirection for broadcasting
// envelopes. Components emit through a relay bound once at bootstrap to the
// orchestrator's delivery function, so none of them needs a reference to
// the orchestrator itself.
package relay

import (
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/osmium-labs/chassis/internal/kernel/event"
	"github.com/osmium-labs/chassis/internal/kernel/journal"
)

var (
	// ErrNotBound is returned by Emit before a forwarding function is bound.
	ErrNotBound = errors.New("relay not bound")

	// ErrAlreadyBound is returned when Bind is called a second time.
	ErrAlreadyBound = errors.New("relay already bound")

	// ErrFloodSuppressed is returned when the flood guard drops an envelope.
	ErrFloodSuppressed = errors.New("envelope suppressed by flood guard")
)

// ForwardFunc delivers an envelope into the layer stack.
type ForwardFunc func(*event.Envelope)

// Option configures a Relay.
type Option func(*Relay)

// WithRateLimit installs a flood guard: emissions beyond r per second (with
// the given burst) are dropped instead of delivered. By default there is no
// limit and every emission is forwarded.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(rl *Relay) {
		rl.guard = rate.NewLimiter(r, burst)
	}
}

// Relay forwards envelopes to a single bound function, synchronously.
type Relay struct {
	fn    ForwardFunc
	guard *rate.Limiter
	jrnl  journal.Sink
}

// New creates an unbound relay reporting to the given journal. A nil sink
// discards records.
func New(jrnl journal.Sink, opts ...Option) *Relay {
	if jrnl == nil {
		jrnl = journal.Discard{}
	}
	r := &Relay{jrnl: jrnl}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bind attaches the forwarding function. Binding twice is a developer
// error; the original binding stays in place.
func (r *Relay) Bind(fn ForwardFunc) error {
	if r.fn != nil {
		return ErrAlreadyBound
	}
	if fn == nil {
		return fmt.Errorf("bind relay: nil forward function")
	}
	r.fn = fn
	return nil
}

// Bound reports whether a forwarding function has been attached.
func (r *Relay) Bound() bool {
	return r.fn != nil
}

// Emit forwards the envelope synchronously through the bound function.
// Propagation completes (or is stopped by consumption) before Emit returns.
func (r *Relay) Emit(env *event.Envelope) error {
	if r.fn == nil {
		return ErrNotBound
	}

	if r.guard != nil && !r.guard.Allow() {
		r.jrnl.Append(journal.Record{
			Type:      journal.RecordEnvelopeSuppressed,
			Severity:  journal.SeverityWarning,
			Component: env.Name(),
			Message:   fmt.Sprintf("flood guard dropped %s", env),
		})
		return fmt.Errorf("%w: %s", ErrFloodSuppressed, env.Name())
	}

	r.fn(env)
	return nil
}
