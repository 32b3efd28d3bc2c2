package uploadengine

import (
	"context"
	"sync"

	"github.com/rescale/blobup/internal/ratelimit"
)

// Controller drives one file through the upload state machine: idle ->
// active -> (paused | failed | done), with paused and failed both
// resumable via Start (failed requires a prior Retry to requeue the
// parts that failed) — except once Abort has run, which is terminal and
// rejects every later Start/Retry/Pause.
type Controller struct {
	mu sync.Mutex

	file     UploadFile
	partSize int64

	store     *PartStore
	queue     *JobQueue
	transport TransportAdapter
	reader    PartReader
	factory   *PartJobFactory
	observer  StatusObserver

	baseCtx context.Context

	status   Status
	uploadID string
	artifact *PersistedArtifact

	tokens     map[*Part]context.CancelFunc
	finalizing bool
	aborted    bool
}

// NewController builds a controller for file, reading part bytes through
// reader and uploading them through transport via queue. limiter may be
// nil. observer may be nil to disable status notifications.
func NewController(file UploadFile, partSize int64, queue *JobQueue, transport TransportAdapter, reader PartReader, limiter *ratelimit.RateLimiter, observer StatusObserver) *Controller {
	store := NewPartStore()
	c := &Controller{
		file:      file,
		partSize:  partSize,
		store:     store,
		queue:     queue,
		transport: transport,
		reader:    reader,
		observer:  observer,
		status:    StatusIdle,
		tokens:    make(map[*Part]context.CancelFunc),
	}
	c.factory = NewPartJobFactory(store, transport, reader, limiter)
	return c
}

// Status returns the controller's current coarse state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Aborted reports whether Abort has run. Once true, Status() reports
// StatusPaused (Abort leaves the controller paused, never failed) unless
// Abort raced a completed upload, in which case it was a no-op and the
// controller is still StatusDone.
func (c *Controller) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// Snapshot returns the current observable projection.
func (c *Controller) Snapshot() StatusProjection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() StatusProjection {
	var progress float64
	if fs := c.store.FileSize(); fs > 0 {
		progress = float64(c.store.DoneBytes()) / float64(fs) * 100
	} else if c.status == StatusDone {
		progress = 100
	}
	return StatusProjection{
		FileName: c.file.Name,
		Progress: progress,
		Status:   c.status,
		Artifact: c.artifact,
	}
}

func (c *Controller) publishLocked() {
	if c.observer == nil {
		return
	}
	snap := c.snapshotLocked()
	c.observer.ObserveStatus(snap)
}

// Start transitions idle->active (creating the upload on the backend
// first) or paused/failed->active (resuming dispatch of whatever the
// store still has queued). A no-op if already active. Returns
// ErrInvariantViolation if the controller was aborted or has already
// completed.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.aborted || c.status == StatusDone {
		c.mu.Unlock()
		return ErrInvariantViolation
	}
	if c.status == StatusActive {
		c.mu.Unlock()
		return nil
	}

	c.baseCtx = ctx
	first := c.status == StatusIdle
	c.mu.Unlock()

	if first {
		uploadID, err := c.transport.Create(ctx, c.file)
		if err != nil {
			return &CreateFailure{Err: err}
		}
		c.mu.Lock()
		c.uploadID = uploadID
		c.mu.Unlock()
		c.store.Init(c.file.Size, c.partSize)
	}

	c.mu.Lock()
	c.status = StatusActive
	c.finalizing = false
	c.publishLocked()
	c.mu.Unlock()

	c.dispatch(ctx)
	return nil
}

// dispatch drains every part currently in the store's toSend bucket,
// handing each to the shared JobQueue with its own cancellation token.
func (c *Controller) dispatch(ctx context.Context) {
	for {
		part, ok := c.store.NextPart()
		if !ok {
			return
		}
		pctx, cancel := context.WithCancel(ctx)

		c.mu.Lock()
		c.tokens[part] = cancel
		c.mu.Unlock()

		job := c.factory.Make(pctx, part, c.currentUploadID(), func(quiescent bool) {
			c.onPartSettled(part, quiescent)
		})
		c.queue.Enqueue(job)
	}
}

func (c *Controller) currentUploadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploadID
}

func (c *Controller) onPartSettled(part *Part, quiescent bool) {
	c.mu.Lock()
	if cancel, ok := c.tokens[part]; ok {
		cancel()
		delete(c.tokens, part)
	}
	c.publishLocked()

	if !quiescent || c.finalizing || c.status != StatusActive {
		c.mu.Unlock()
		return
	}
	c.finalizing = true
	ctx := c.baseCtx
	c.mu.Unlock()

	c.finalize(ctx)
}

// finalize runs once the store has gone quiescent with no part left on
// duty. If any part ended up in the failed bucket the upload moves to
// failed (resumable via Retry); otherwise it calls transport.Finalize.
func (c *Controller) finalize(ctx context.Context) {
	snap := c.store.Snapshot()

	if snap.Failed > 0 || !c.store.Complete() {
		c.mu.Lock()
		c.status = StatusFailed
		c.finalizing = false
		c.publishLocked()
		c.mu.Unlock()
		return
	}

	artifact, err := c.transport.Finalize(ctx, c.file.Name, c.currentUploadID())

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.status = StatusFailed
		c.finalizing = false
		c.publishLocked()
		return
	}
	c.artifact = &artifact
	c.status = StatusDone
	c.publishLocked()
}

// Pause cancels every in-flight part upload and requeues them, leaving
// the controller resumable via Start. A no-op unless the controller is
// currently active.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return ErrInvariantViolation
	}
	if c.status != StatusActive {
		c.mu.Unlock()
		return nil
	}
	tokens := c.tokens
	c.tokens = make(map[*Part]context.CancelFunc)
	c.status = StatusPaused
	c.finalizing = false
	c.mu.Unlock()

	for _, cancel := range tokens {
		cancel()
	}
	c.store.Pause()

	c.mu.Lock()
	c.publishLocked()
	c.mu.Unlock()
	return nil
}

// Retry resumes a failed upload. If any part is still outstanding
// (doneBytes < fileSize) it requeues the failed bucket and resumes
// dispatch via Start. If every part already passed — the prior failure
// was transport.Finalize rejecting the upload — it re-calls Finalize only,
// without re-sending any part. Valid from the failed state; a no-op from
// any other non-terminal state.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return ErrInvariantViolation
	}
	if c.status != StatusFailed {
		c.mu.Unlock()
		return nil
	}
	complete := c.store.Complete()
	c.mu.Unlock()

	if complete {
		c.mu.Lock()
		c.status = StatusActive
		c.finalizing = true
		c.publishLocked()
		c.mu.Unlock()
		c.finalize(ctx)
		return nil
	}

	c.store.Retry()
	return c.Start(ctx)
}

// Abort is terminal: it behaves like Pause (cancels every in-flight part,
// leaving the controller StatusPaused) and then best-effort tells the
// backend to discard the partial upload, and permanently rejects any
// later Start/Pause/Retry with ErrInvariantViolation. A no-op once Abort
// has already run, and a no-op against a controller that already reached
// StatusDone — a completed upload's terminal state is never overwritten.
func (c *Controller) Abort(ctx context.Context) error {
	c.mu.Lock()
	if c.aborted || c.status == StatusDone {
		c.mu.Unlock()
		return nil
	}
	c.aborted = true
	tokens := c.tokens
	c.tokens = make(map[*Part]context.CancelFunc)
	uploadID := c.uploadID
	hadUpload := c.status != StatusIdle
	c.status = StatusPaused
	c.finalizing = false
	c.publishLocked()
	c.mu.Unlock()

	for _, cancel := range tokens {
		cancel()
	}
	c.store.Pause()

	if hadUpload && uploadID != "" {
		_ = c.transport.Cancel(ctx, uploadID)
	}
	return nil
}
