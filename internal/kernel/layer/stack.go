package layer

import (
	"errors"
	"fmt"
	"time"

	"github.com/osmium-labs/chassis/internal/kernel/event"
	"github.com/osmium-labs/chassis/internal/kernel/journal"
)

// Stack holds one ordered layer sequence plus a cut index. Entries before
// the cut are regular layers, entries at or after it are overlays. Updates
// run front to back (regulars then overlays); events run back to front and
// stop at the first consumer.
type Stack struct {
	layers []Layer
	cut    int
	jrnl   journal.Sink
}

// NewStack creates an empty stack reporting to the given journal. A nil
// sink discards records.
func NewStack(jrnl journal.Sink) *Stack {
	if jrnl == nil {
		jrnl = journal.Discard{}
	}
	return &Stack{jrnl: jrnl}
}

// PushLayer inserts a regular layer just before the cut and attaches it.
// Regular layers keep first-pushed-first-in-sequence order among
// themselves, always ahead of every overlay. If the attach hook fails the
// insertion is rolled back and the error returned; detach is not called.
func (s *Stack) PushLayer(l Layer) error {
	s.layers = append(s.layers, nil)
	copy(s.layers[s.cut+1:], s.layers[s.cut:])
	s.layers[s.cut] = l
	s.cut++

	if err := l.OnAttach(); err != nil {
		s.cut--
		s.layers = append(s.layers[:s.cut], s.layers[s.cut+1:]...)
		s.jrnl.Append(journal.Record{
			Type:      journal.RecordLayerAttachFailed,
			Severity:  journal.SeverityError,
			Component: l.Name(),
			Error:     err.Error(),
		})
		return fmt.Errorf("attach layer %s: %w", l.Name(), err)
	}

	s.jrnl.Append(journal.Record{
		Type:      journal.RecordLayerPushed,
		Component: l.Name(),
		Message:   fmt.Sprintf("layer %s pushed at %d", l.Name(), s.cut-1),
	})
	return nil
}

// PushOverlay appends an overlay past the cut and attaches it. If the
// attach hook fails the append is rolled back and the error returned.
func (s *Stack) PushOverlay(l Layer) error {
	s.layers = append(s.layers, l)

	if err := l.OnAttach(); err != nil {
		s.layers = s.layers[:len(s.layers)-1]
		s.jrnl.Append(journal.Record{
			Type:      journal.RecordLayerAttachFailed,
			Severity:  journal.SeverityError,
			Component: l.Name(),
			Error:     err.Error(),
		})
		return fmt.Errorf("attach overlay %s: %w", l.Name(), err)
	}

	s.jrnl.Append(journal.Record{
		Type:      journal.RecordLayerPushed,
		Component: l.Name(),
		Message:   fmt.Sprintf("overlay %s pushed at %d", l.Name(), len(s.layers)-1),
	})
	return nil
}

// PopLayer removes a regular layer. A layer that is absent or sits in the
// overlay partition is left alone: no removal, no detach, no error.
func (s *Stack) PopLayer(l Layer) error {
	for i := 0; i < s.cut; i++ {
		if s.layers[i] == l {
			return s.remove(i, true)
		}
	}
	return nil
}

// PopOverlay removes an overlay. A layer that is absent or sits in the
// regular partition is left alone.
func (s *Stack) PopOverlay(l Layer) error {
	for i := s.cut; i < len(s.layers); i++ {
		if s.layers[i] == l {
			return s.remove(i, false)
		}
	}
	return nil
}

func (s *Stack) remove(i int, regular bool) error {
	l := s.layers[i]
	err := l.OnDetach()
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	if regular {
		s.cut--
	}

	if err != nil {
		s.jrnl.Append(journal.Record{
			Type:      journal.RecordLayerDetachFailed,
			Severity:  journal.SeverityError,
			Component: l.Name(),
			Error:     err.Error(),
		})
		return fmt.Errorf("detach layer %s: %w", l.Name(), err)
	}

	s.jrnl.Append(journal.Record{
		Type:      journal.RecordLayerPopped,
		Component: l.Name(),
	})
	return nil
}

// OnUpdate propagates one tick bottom to top: regular layers in push order,
// then overlays in push order.
func (s *Stack) OnUpdate(dt time.Duration) {
	for _, l := range s.layers {
		l.OnUpdate(dt)
	}
}

// OnEvent propagates an envelope top to bottom: overlays first, then
// regular layers. The consumed flag is checked before each delivery and
// propagation stops as soon as it is set.
func (s *Stack) OnEvent(env *event.Envelope) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if env.IsConsumed() {
			return
		}
		s.layers[i].OnEvent(env)
	}
}

// Shutdown detaches every layer in current order, then clears the sequence
// and resets the cut. A failing detach does not stop the pass; all
// failures are joined into the returned error.
func (s *Stack) Shutdown() error {
	var errs []error
	for _, l := range s.layers {
		if err := l.OnDetach(); err != nil {
			errs = append(errs, fmt.Errorf("detach layer %s: %w", l.Name(), err))
			s.jrnl.Append(journal.Record{
				Type:      journal.RecordLayerDetachFailed,
				Severity:  journal.SeverityError,
				Component: l.Name(),
				Error:     err.Error(),
			})
		}
	}

	detached := len(s.layers)
	s.layers = nil
	s.cut = 0

	rec := journal.Record{
		Type:    journal.RecordStackShutdown,
		Message: fmt.Sprintf("stack shutdown: %d layers detached, %d failures", detached, len(errs)),
	}
	if len(errs) > 0 {
		rec.Severity = journal.SeverityError
	}
	s.jrnl.Append(rec)

	return errors.Join(errs...)
}

// Len returns the number of layers in the stack.
func (s *Stack) Len() int {
	return len(s.layers)
}

// RegularLen returns the number of regular layers.
func (s *Stack) RegularLen() int {
	return s.cut
}

// OverlayLen returns the number of overlays.
func (s *Stack) OverlayLen() int {
	return len(s.layers) - s.cut
}

// Layers returns a read-only snapshot of the sequence in update order.
func (s *Stack) Layers() []Layer {
	out := make([]Layer, len(s.layers))
	copy(out, s.layers)
	return out
}
