package service

import (
	"context"
	"errors"
	"testing"

	"github.com/osmium-labs/chassis/internal/kernel/journal"
	"github.com/osmium-labs/chassis/internal/kernel/state"
	"github.com/osmium-labs/chassis/pkg/testutil"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)
	svc := testutil.NewFakeService("audio", nil)

	if err := r.Register(svc); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := r.Get("audio")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != svc {
		t.Error("Get returned a different instance")
	}
	if r.Status("audio") != state.StatusRegistered {
		t.Errorf("Status = %v, want registered", r.Status("audio"))
	}
}

func TestRegistry_DuplicateKeepsOriginal(t *testing.T) {
	r := NewRegistry(nil)
	first := testutil.NewFakeService("audio", nil)
	second := testutil.NewFakeService("audio", nil)

	if err := r.Register(first); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	err := r.Register(second)
	if !errors.Is(err, ErrDuplicateService) {
		t.Fatalf("duplicate Register error = %v, want ErrDuplicateService", err)
	}

	got, err := r.Get("audio")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != first {
		t.Error("duplicate registration replaced the original instance")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Get("ghost")
	if !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("error = %v, want ErrServiceNotFound", err)
	}
	// The identity must be named in the error.
	if got := err.Error(); got != "service not found: ghost" {
		t.Errorf("error message = %q", got)
	}
}

func TestRegistry_InitializeInRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil)
	log := testutil.NewCallLog()
	for _, name := range []string{"s1", "s2", "s3"} {
		if err := r.Register(testutil.NewFakeService(name, log)); err != nil {
			t.Fatalf("Register %s failed: %v", name, err)
		}
	}

	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	want := []string{"init:s1", "init:s2", "init:s3"}
	got := log.Entries()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	for _, name := range []string{"s1", "s2", "s3"} {
		if !r.Initialized(name) {
			t.Errorf("service %s not marked initialized", name)
		}
	}
}

func TestRegistry_InitializeStopsAtFirstFailure(t *testing.T) {
	r := NewRegistry(nil)
	log := testutil.NewCallLog()
	boom := errors.New("boom")

	s1 := testutil.NewFakeService("s1", log)
	s2 := testutil.NewFakeService("s2", log)
	s2.InitErr = boom
	s3 := testutil.NewFakeService("s3", log)

	for _, svc := range []*testutil.FakeService{s1, s2, s3} {
		if err := r.Register(svc); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	err := r.Initialize(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Initialize error = %v, want wrapped boom", err)
	}

	if s3.InitCalls != 0 {
		t.Error("service after the failure was initialized")
	}
	if !r.Initialized("s1") {
		t.Error("service before the failure lost its initialized state")
	}
	if r.Status("s2") != state.StatusFailed {
		t.Errorf("failing service status = %v, want failed", r.Status("s2"))
	}
	if r.Status("s3") != state.StatusRegistered {
		t.Errorf("untouched service status = %v, want registered", r.Status("s3"))
	}
}

func TestRegistry_ShutdownContinuesThroughFailures(t *testing.T) {
	r := NewRegistry(nil)
	log := testutil.NewCallLog()

	s1 := testutil.NewFakeService("s1", log)
	s2 := testutil.NewFakeService("s2", log)
	s2.ShutdownErr = errors.New("stuck")
	s3 := testutil.NewFakeService("s3", log)

	for _, svc := range []*testutil.FakeService{s1, s2, s3} {
		if err := r.Register(svc); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	log.Reset()

	err := r.Shutdown(context.Background())
	if err == nil {
		t.Fatal("Shutdown returned nil despite a failing hook")
	}

	want := []string{"shutdown:s1", "shutdown:s2", "shutdown:s3"}
	got := log.Entries()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if r.Status("s2") != state.StatusStopFailed {
		t.Errorf("failing service status = %v, want stop-failed", r.Status("s2"))
	}
	if r.Status("s3") != state.StatusStopped {
		t.Errorf("last service status = %v, want stopped", r.Status("s3"))
	}
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(testutil.NewFakeService("s1", nil)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	snap := r.Snapshot()
	snap[0].Name = "mutated"
	names := r.Names()
	names[0] = "mutated"

	if r.Names()[0] != "s1" {
		t.Error("mutating snapshots altered registry state")
	}
}

func TestRegistry_JournalsLifecycle(t *testing.T) {
	jrnl := journal.NewRingBuffer(32)
	r := NewRegistry(jrnl)

	svc := testutil.NewFakeService("audio", nil)
	if err := r.Register(svc); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	for _, rt := range []journal.RecordType{
		journal.RecordServiceRegistered,
		journal.RecordServiceInitialized,
		journal.RecordServiceStopped,
	} {
		if len(jrnl.RecentByType(rt, 1)) != 1 {
			t.Errorf("journal missing %s record", rt)
		}
	}
}
