package uploadengine

import (
	"context"
	"testing"
	"time"
)

func newTestController(t *testing.T, fileSize, partSize int64, transport *fakeTransport) (*Controller, *recordingObserver) {
	t.Helper()
	queue, err := NewJobQueue(4)
	if err != nil {
		t.Fatalf("NewJobQueue: %v", err)
	}
	t.Cleanup(queue.Close)

	reader := newFakeReader(fileSize)
	observer := &recordingObserver{}
	c := NewController(UploadFile{Name: "test.bin", Size: fileSize}, partSize, queue, transport, reader, nil, observer)
	return c, observer
}

func waitForStatus(t *testing.T, c *Controller, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Status() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("controller never reached status %q, stuck at %q", want, c.Status())
}

func TestControllerHappyPathReachesDone(t *testing.T) {
	transport := newFakeTransport()
	c, observer := newTestController(t, 25, 10, transport)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, c, StatusDone)

	snap := c.Snapshot()
	if snap.Progress != 100 {
		t.Fatalf("Progress = %v, want 100", snap.Progress)
	}
	if snap.Artifact == nil {
		t.Fatal("expected an artifact once done")
	}
	if observer.count() == 0 {
		t.Fatal("observer should have received at least one projection")
	}
}

func TestControllerPauseThenResumeCompletes(t *testing.T) {
	transport := newFakeTransport()
	transport.delay = 20 * time.Millisecond
	c, _ := newTestController(t, 1000, 10, transport)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := c.Status(); got != StatusPaused {
		t.Fatalf("Status() = %q, want paused", got)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start (resume): %v", err)
	}
	waitForStatus(t, c, StatusDone)
}

func TestControllerFailedPartMovesToFailedThenRetrySucceeds(t *testing.T) {
	transport := newFakeTransport()
	transport.failParts[2] = 1 // part index 2 fails once (ok=false), no retry configured here
	c, _ := newTestController(t, 30, 10, transport)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, c, StatusFailed)

	if err := c.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	waitForStatus(t, c, StatusDone)
}

func TestControllerAbortRejectsLaterStart(t *testing.T) {
	transport := newFakeTransport()
	transport.delay = 20 * time.Millisecond
	c, _ := newTestController(t, 1000, 10, transport)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Abort(context.Background()); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if !transport.cancelled {
		t.Fatal("Abort should call transport.Cancel")
	}
	if got := c.Status(); got != StatusPaused {
		t.Fatalf("Status() after Abort = %q, want paused", got)
	}
	if !c.Aborted() {
		t.Fatal("Aborted() should be true after Abort")
	}

	if err := c.Start(context.Background()); err != ErrInvariantViolation {
		t.Fatalf("Start after Abort = %v, want ErrInvariantViolation", err)
	}
	if err := c.Retry(context.Background()); err != ErrInvariantViolation {
		t.Fatalf("Retry after Abort = %v, want ErrInvariantViolation", err)
	}
}

func TestControllerAbortIsNoOpWhenAlreadyDone(t *testing.T) {
	transport := newFakeTransport()
	c, _ := newTestController(t, 25, 10, transport)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, c, StatusDone)

	if err := c.Abort(context.Background()); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if got := c.Status(); got != StatusDone {
		t.Fatalf("Status() after Abort on a done upload = %q, want done (unchanged)", got)
	}
	if transport.cancelled {
		t.Fatal("Abort on an already-done upload should not call transport.Cancel")
	}
}

func TestControllerRetryAfterFinalizeFailureRecallsFinalizeOnly(t *testing.T) {
	transport := newFakeTransport()
	transport.finalizeErr = context.DeadlineExceeded
	transport.finalizeFailCount = 1
	c, _ := newTestController(t, 30, 10, transport)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, c, StatusFailed)

	snap := c.Snapshot()
	if snap.Progress != 100 {
		t.Fatalf("Progress before retry = %v, want 100 (every part already passed)", snap.Progress)
	}
	uploadsBefore := transport.totalUploadCalls()

	if err := c.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	waitForStatus(t, c, StatusDone)

	if got := transport.totalUploadCalls(); got != uploadsBefore {
		t.Fatalf("Retry after a finalize failure re-sent parts: uploads went from %d to %d", uploadsBefore, got)
	}
	if transport.finalizeCallCount() != 2 {
		t.Fatalf("finalizeCallCount() = %d, want 2 (one failure, one retry)", transport.finalizeCallCount())
	}
}

func TestControllerCreateFailurePreventsDispatch(t *testing.T) {
	transport := newFakeTransport()
	transport.createErr = context.DeadlineExceeded
	c, _ := newTestController(t, 100, 10, transport)

	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("expected Start to fail when Create fails")
	}
	if _, ok := err.(*CreateFailure); !ok {
		t.Fatalf("err = %v (%T), want *CreateFailure", err, err)
	}
	if got := transport.totalUploadCalls(); got != 0 {
		t.Fatalf("UploadPart calls after a failed Create = %d, want 0", got)
	}
}

func TestControllerStartIsNoOpWhenAlreadyActive(t *testing.T) {
	transport := newFakeTransport()
	c, _ := newTestController(t, 100000, 1000, transport)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	_ = c.Pause()
}
