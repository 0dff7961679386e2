// Package event defines the consumable message envelope propagated through
// the layer stack, together with its category and type vocabulary.
package event

import (
	"fmt"
	"strings"
)

// Category is a bitmask over a fixed set of domain flags. An envelope may
// belong to several categories at once.
type Category uint32

const (
	// CategoryApplication marks envelopes concerning the application itself.
	CategoryApplication Category = 1 << iota

	// CategoryLifecycle marks envelopes about component lifecycle changes.
	CategoryLifecycle

	// CategoryTimer marks envelopes produced by time-driven sources.
	CategoryTimer

	// CategoryResource marks envelopes carrying resource usage information.
	CategoryResource

	// CategoryCustom marks application-defined envelopes.
	CategoryCustom
)

// CategoryNone is the empty category set.
const CategoryNone Category = 0

var categoryNames = []struct {
	flag Category
	name string
}{
	{CategoryApplication, "application"},
	{CategoryLifecycle, "lifecycle"},
	{CategoryTimer, "timer"},
	{CategoryResource, "resource"},
	{CategoryCustom, "custom"},
}

// Has returns true if every flag in c is set.
func (c Category) Has(flags Category) bool {
	return c&flags == flags
}

// Any returns true if the two sets intersect.
func (c Category) Any(flags Category) bool {
	return c&flags != 0
}

// String renders the set as a pipe-joined list of flag names.
func (c Category) String() string {
	if c == CategoryNone {
		return "none"
	}
	var parts []string
	for _, cn := range categoryNames {
		if c.Has(cn.flag) {
			parts = append(parts, cn.name)
		}
	}
	if parts == nil {
		return fmt.Sprintf("category(%#x)", uint32(c))
	}
	return strings.Join(parts, "|")
}

// Type is the closed discriminator used for envelope dispatch.
type Type int32

const (
	// TypeNone is the zero type; envelopes should not normally carry it.
	TypeNone Type = iota

	// TypeAppStarted signals that the orchestrator entered its run loop.
	TypeAppStarted

	// TypeAppClosing signals that shutdown has begun.
	TypeAppClosing

	// TypeTick carries an update-tick notification.
	TypeTick

	// TypeScheduleFired signals that a scheduled job came due.
	TypeScheduleFired

	// TypeResourceSample carries a process resource usage sample.
	TypeResourceSample

	// TypeCustom is the discriminator for application-defined envelopes.
	TypeCustom
)

// String returns the string representation of the type.
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeAppStarted:
		return "app.started"
	case TypeAppClosing:
		return "app.closing"
	case TypeTick:
		return "tick"
	case TypeScheduleFired:
		return "schedule.fired"
	case TypeResourceSample:
		return "resource.sample"
	case TypeCustom:
		return "custom"
	default:
		return fmt.Sprintf("type(%d)", t)
	}
}

// Envelope is a single-use, categorized, typed message. Category and type
// are fixed at construction; the consumed flag is one-way. Envelopes are
// discarded after one propagation pass and never reused across ticks.
type Envelope struct {
	name     string
	typ      Type
	category Category
	consumed bool
}

// New constructs an envelope with the given diagnostic name, type, and
// category set.
func New(name string, typ Type, category Category) *Envelope {
	return &Envelope{name: name, typ: typ, category: category}
}

// Name returns the diagnostic name.
func (e *Envelope) Name() string { return e.name }

// Type returns the dispatch discriminator.
func (e *Envelope) Type() Type { return e.typ }

// Category returns the category set.
func (e *Envelope) Category() Category { return e.category }

// Consume marks the envelope as fully handled, halting further propagation.
// The flag never reverts.
func (e *Envelope) Consume() { e.consumed = true }

// IsConsumed reports whether the envelope has been consumed.
func (e *Envelope) IsConsumed() bool { return e.consumed }

// String renders the envelope for diagnostics.
func (e *Envelope) String() string {
	suffix := ""
	if e.consumed {
		suffix = " (consumed)"
	}
	return fmt.Sprintf("%s [%s/%s]%s", e.name, e.typ, e.category, suffix)
}
