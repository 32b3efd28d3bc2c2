package uploadengine

import (
	"context"
	"testing"
)

func TestPartJobFactorySuccessPassesPart(t *testing.T) {
	store := NewPartStore()
	store.Init(10, 10)
	part, _ := store.NextPart()

	transport := newFakeTransport()
	reader := newFakeReader(10)
	factory := NewPartJobFactory(store, transport, reader, nil)

	var settledWith bool
	var called bool
	job := factory.Make(context.Background(), part, "upload-1", func(quiescent bool) {
		called = true
		settledWith = quiescent
	})
	job()

	if !called {
		t.Fatal("onSettled was not called")
	}
	if !settledWith {
		t.Fatal("onSettled should report quiescent=true, store has nothing else on duty")
	}
	if got := store.DoneBytes(); got != 10 {
		t.Fatalf("DoneBytes() = %d, want 10", got)
	}
}

func TestPartJobFactoryUnsuccessfulResponseFailsPart(t *testing.T) {
	store := NewPartStore()
	store.Init(10, 10)
	part, _ := store.NextPart()

	transport := newFakeTransport()
	transport.failParts[part.Index] = 1 // one (false, nil) response
	reader := newFakeReader(10)
	factory := NewPartJobFactory(store, transport, reader, nil)

	job := factory.Make(context.Background(), part, "upload-1", func(quiescent bool) {})
	job()

	snap := store.Snapshot()
	if snap.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", snap.Failed)
	}
	if store.DoneBytes() != 0 {
		t.Fatalf("DoneBytes() = %d, want 0", store.DoneBytes())
	}
}

func TestPartJobFactoryTransportErrorFailsPart(t *testing.T) {
	store := NewPartStore()
	store.Init(10, 10)
	part, _ := store.NextPart()

	transport := newFakeTransport()
	transport.transportErrParts[part.Index] = 1
	reader := newFakeReader(10)
	factory := NewPartJobFactory(store, transport, reader, nil)

	job := factory.Make(context.Background(), part, "upload-1", func(quiescent bool) {})
	job()

	if snap := store.Snapshot(); snap.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", snap.Failed)
	}
}

func TestPartJobFactoryAbortedContextSkipsSettlement(t *testing.T) {
	store := NewPartStore()
	store.Init(10, 10)
	part, _ := store.NextPart()

	transport := newFakeTransport()
	reader := newFakeReader(10)
	factory := NewPartJobFactory(store, transport, reader, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	job := factory.Make(ctx, part, "upload-1", func(quiescent bool) { called = true })
	job()

	if called {
		t.Fatal("onSettled must not be called for an aborted attempt")
	}
	// Part is still on duty: an abort never mutates the store on its own,
	// Pause/Abort do that separately.
	if snap := store.Snapshot(); snap.OnDuty != 1 {
		t.Fatalf("OnDuty = %d, want 1 (untouched by the aborted job)", snap.OnDuty)
	}
}
