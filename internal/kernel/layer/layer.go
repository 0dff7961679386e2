// Package layer implements the ordered processing pipeline: an ordered
// sequence of layers partitioned into regular and overlay groups, with
// bottom-to-top update propagation and top-to-bottom, consumption-stoppable
// event propagation.
package layer

import (
	"time"

	"github.com/osmium-labs/chassis/internal/kernel/event"
)

// Layer is the contract every processing stage implements. All hooks are
// synchronous and run on the tick goroutine.
type Layer interface {
	// Name returns a diagnostic name for the layer.
	Name() string

	// OnAttach runs when the layer enters the stack.
	OnAttach() error

	// OnDetach runs when the layer leaves the stack.
	OnDetach() error

	// OnUpdate receives the elapsed time since the previous tick.
	OnUpdate(dt time.Duration)

	// OnEvent receives a propagating envelope. Consuming the envelope stops
	// further propagation.
	OnEvent(env *event.Envelope)
}
