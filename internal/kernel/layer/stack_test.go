package layer

import (
	"errors"
	"testing"
	"time"

	"github.com/osmium-labs/chassis/internal/kernel/event"
	"github.com/osmium-labs/chassis/internal/kernel/journal"
	"github.com/osmium-labs/chassis/pkg/testutil"
)

func buildStack(t *testing.T, log *testutil.CallLog) (*Stack, *testutil.FakeLayer, *testutil.FakeLayer, *testutil.FakeLayer) {
	t.Helper()
	s := NewStack(nil)
	a := testutil.NewFakeLayer("A", log)
	b := testutil.NewFakeLayer("B", log)
	c := testutil.NewFakeLayer("C", log)

	if err := s.PushLayer(a); err != nil {
		t.Fatalf("PushLayer(A) failed: %v", err)
	}
	if err := s.PushLayer(b); err != nil {
		t.Fatalf("PushLayer(B) failed: %v", err)
	}
	if err := s.PushOverlay(c); err != nil {
		t.Fatalf("PushOverlay(C) failed: %v", err)
	}
	return s, a, b, c
}

func TestStack_UpdateOrderBottomToTop(t *testing.T) {
	log := testutil.NewCallLog()
	s, _, _, _ := buildStack(t, log)
	log.Reset()

	s.OnUpdate(16 * time.Millisecond)

	want := []string{"update:A", "update:B", "update:C"}
	got := log.Entries()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStack_RegularsAlwaysAheadOfOverlays(t *testing.T) {
	s := NewStack(nil)
	c := testutil.NewFakeLayer("C", nil)
	a := testutil.NewFakeLayer("A", nil)

	// Overlay pushed first, regular second: regular still updates first.
	if err := s.PushOverlay(c); err != nil {
		t.Fatalf("PushOverlay failed: %v", err)
	}
	if err := s.PushLayer(a); err != nil {
		t.Fatalf("PushLayer failed: %v", err)
	}

	order := s.Layers()
	if order[0].Name() != "A" || order[1].Name() != "C" {
		t.Errorf("sequence = [%s %s], want [A C]", order[0].Name(), order[1].Name())
	}
	if s.RegularLen() != 1 || s.OverlayLen() != 1 {
		t.Errorf("partition sizes = %d/%d, want 1/1", s.RegularLen(), s.OverlayLen())
	}
}

func TestStack_EventOrderTopToBottom(t *testing.T) {
	log := testutil.NewCallLog()
	s, _, _, _ := buildStack(t, log)
	log.Reset()

	env := event.New("probe", event.TypeCustom, event.CategoryCustom)
	s.OnEvent(env)

	want := []string{"event:C:probe", "event:B:probe", "event:A:probe"}
	got := log.Entries()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStack_ConsumptionStopsPropagation(t *testing.T) {
	log := testutil.NewCallLog()
	s, a, b, c := buildStack(t, log)
	b.ConsumeType = event.TypeCustom
	log.Reset()

	env := event.New("probe", event.TypeCustom, event.CategoryCustom)
	s.OnEvent(env)

	if !env.IsConsumed() {
		t.Fatal("envelope not consumed")
	}
	if len(c.Events) != 1 || len(b.Events) != 1 {
		t.Error("C and B should each have seen the envelope once")
	}
	if len(a.Events) != 0 {
		t.Error("A saw the envelope despite consumption above it")
	}
}

func TestStack_PopWrongSideIsNoOp(t *testing.T) {
	s, a, _, c := buildStack(t, nil)

	// PopLayer on an overlay: no removal, no detach.
	if err := s.PopLayer(c); err != nil {
		t.Fatalf("PopLayer(overlay) returned error: %v", err)
	}
	if c.DetachCalls != 0 {
		t.Error("overlay detached through PopLayer")
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}

	// PopOverlay on a regular layer: symmetric no-op.
	if err := s.PopOverlay(a); err != nil {
		t.Fatalf("PopOverlay(regular) returned error: %v", err)
	}
	if a.DetachCalls != 0 {
		t.Error("regular layer detached through PopOverlay")
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestStack_PopRetractsCut(t *testing.T) {
	s, a, b, c := buildStack(t, nil)

	if err := s.PopLayer(a); err != nil {
		t.Fatalf("PopLayer failed: %v", err)
	}
	if a.DetachCalls != 1 {
		t.Error("detach not called on pop")
	}
	if s.RegularLen() != 1 || s.OverlayLen() != 1 {
		t.Errorf("partition sizes = %d/%d, want 1/1", s.RegularLen(), s.OverlayLen())
	}

	// B is still a regular layer, C still an overlay.
	if err := s.PopOverlay(c); err != nil {
		t.Fatalf("PopOverlay failed: %v", err)
	}
	if err := s.PopLayer(b); err != nil {
		t.Fatalf("PopLayer failed: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStack_PopAbsentLayer(t *testing.T) {
	s, _, _, _ := buildStack(t, nil)
	stranger := testutil.NewFakeLayer("X", nil)

	if err := s.PopLayer(stranger); err != nil {
		t.Fatalf("PopLayer(absent) returned error: %v", err)
	}
	if err := s.PopOverlay(stranger); err != nil {
		t.Fatalf("PopOverlay(absent) returned error: %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestStack_AttachFailureRollsBack(t *testing.T) {
	s := NewStack(nil)
	bad := testutil.NewFakeLayer("bad", nil)
	bad.AttachErr = errors.New("no resources")

	if err := s.PushLayer(bad); err == nil {
		t.Fatal("PushLayer with failing attach succeeded")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after failed attach, want 0", s.Len())
	}

	if err := s.PushOverlay(bad); err == nil {
		t.Fatal("PushOverlay with failing attach succeeded")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after failed overlay attach, want 0", s.Len())
	}
	if bad.DetachCalls != 0 {
		t.Error("detach called for a layer that never attached")
	}
}

func TestStack_ShutdownDetachesEverythingOnce(t *testing.T) {
	s, a, b, c := buildStack(t, nil)
	b.DetachErr = errors.New("stuck")

	err := s.Shutdown()
	if err == nil {
		t.Fatal("Shutdown returned nil despite a failing detach")
	}

	for _, l := range []*testutil.FakeLayer{a, b, c} {
		if l.DetachCalls != 1 {
			t.Errorf("layer %s detached %d times, want 1", l.Name(), l.DetachCalls)
		}
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after shutdown, want 0", s.Len())
	}
	if s.RegularLen() != 0 || s.OverlayLen() != 0 {
		t.Error("cut not reset after shutdown")
	}

	// A fresh push works after shutdown.
	if err := s.PushLayer(testutil.NewFakeLayer("fresh", nil)); err != nil {
		t.Fatalf("PushLayer after shutdown failed: %v", err)
	}
	if s.RegularLen() != 1 {
		t.Errorf("RegularLen() = %d, want 1", s.RegularLen())
	}
}

func TestStack_ShutdownCleanReportsSuccess(t *testing.T) {
	s, _, _, _ := buildStack(t, nil)
	if err := s.Shutdown(); err != nil {
		t.Fatalf("clean Shutdown returned error: %v", err)
	}
}

func TestStack_JournalsPushesAndPops(t *testing.T) {
	jrnl := journal.NewRingBuffer(16)
	s := NewStack(jrnl)
	a := testutil.NewFakeLayer("A", nil)

	if err := s.PushLayer(a); err != nil {
		t.Fatalf("PushLayer failed: %v", err)
	}
	if err := s.PopLayer(a); err != nil {
		t.Fatalf("PopLayer failed: %v", err)
	}

	if len(jrnl.RecentByType(journal.RecordLayerPushed, 1)) != 1 {
		t.Error("journal missing layer.pushed record")
	}
	if len(jrnl.RecentByType(journal.RecordLayerPopped, 1)) != 1 {
		t.Error("journal missing layer.popped record")
	}
}

func TestStack_LayersSnapshotIsACopy(t *testing.T) {
	s, _, b, _ := buildStack(t, nil)

	snap := s.Layers()
	snap[0] = b

	if s.Layers()[0].Name() != "A" {
		t.Error("mutating the snapshot altered the stack")
	}
}
