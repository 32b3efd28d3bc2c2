// Package transfer tracks every UploadController the process has created
// and fans their StatusProjections out onto the shared event bus for the
// CLI and any other observer to consume.
package transfer

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rescale/blobup/internal/events"
	"github.com/rescale/blobup/internal/ratelimit"
	"github.com/rescale/blobup/internal/uploadengine"
)

// entry is the registry's bookkeeping for one tracked upload, including
// the state needed to smooth a progress stream into a speed estimate.
type entry struct {
	taskID     string
	fileName   string
	size       int64
	controller *uploadengine.Controller
	createdAt  time.Time

	mu             sync.Mutex
	lastProgress   float64
	lastUpdateTime time.Time
	speed          float64
}

// Registry is a process-wide directory of UploadControllers, keyed by a
// registry-assigned task ID distinct from the backend's upload ID (which
// doesn't exist until Create succeeds). One Registry normally backs one
// running process; it is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	order    []string
	eventBus *events.EventBus
}

// NewRegistry creates a registry that publishes onto eventBus. eventBus
// may be nil to disable publishing (useful in tests).
func NewRegistry(eventBus *events.EventBus) *Registry {
	return &Registry{
		entries:  make(map[string]*entry),
		eventBus: eventBus,
	}
}

// Track creates a new UploadController for file and registers it under a
// fresh task ID. The controller is wired to publish through this registry;
// callers still own calling Start/Pause/Retry/Abort on the returned
// controller.
func (r *Registry) Track(file uploadengine.UploadFile, partSize int64, queue *uploadengine.JobQueue, transport uploadengine.TransportAdapter, reader uploadengine.PartReader, limiter *ratelimit.RateLimiter) (string, *uploadengine.Controller) {
	taskID := uuid.NewString()
	e := &entry{
		taskID:    taskID,
		fileName:  file.Name,
		size:      file.Size,
		createdAt: time.Now(),
	}

	observer := uploadengine.StatusObserverFunc(func(p uploadengine.StatusProjection) {
		r.publish(e, p)
	})
	e.controller = uploadengine.NewController(file, partSize, queue, transport, reader, limiter, observer)

	r.mu.Lock()
	r.entries[taskID] = e
	r.order = append(r.order, taskID)
	r.mu.Unlock()

	r.publish(e, uploadengine.StatusProjection{FileName: file.Name, Status: uploadengine.StatusIdle})
	return taskID, e.controller
}

// Get returns the controller tracked under taskID.
func (r *Registry) Get(taskID string) (*uploadengine.Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[taskID]
	if !ok {
		return nil, false
	}
	return e.controller, true
}

// Snapshot is a registry-level view of one tracked upload: its projection
// plus the identifying fields the projection itself doesn't carry.
type Snapshot struct {
	TaskID string
	uploadengine.StatusProjection
}

// List returns a snapshot of every tracked upload in the order they were
// added.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.order))
	for _, id := range r.order {
		e, ok := r.entries[id]
		if !ok {
			continue
		}
		out = append(out, Snapshot{TaskID: id, StatusProjection: e.controller.Snapshot()})
	}
	return out
}

// ClearCompleted drops every tracked upload whose controller has reached
// a terminal state: done, or aborted (Abort leaves the status paused).
// Failed uploads stay tracked, since Retry can still resume them.
func (r *Registry) ClearCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()

	filtered := r.order[:0]
	for _, id := range r.order {
		e := r.entries[id]
		status := e.controller.Status()
		if status == uploadengine.StatusDone || e.controller.Aborted() {
			delete(r.entries, id)
			continue
		}
		filtered = append(filtered, id)
	}
	r.order = filtered
}

func (r *Registry) publish(e *entry, p uploadengine.StatusProjection) {
	speed := e.updateSpeed(p.Progress)

	if r.eventBus == nil {
		return
	}

	r.eventBus.Publish(&events.UploadEvent{
		BaseEvent: events.BaseEvent{
			EventType: eventTypeFor(p.Status, e.controller.Aborted()),
			Time:      time.Now(),
		},
		UploadTaskID: e.taskID,
		FileName:     e.fileName,
		Size:         e.size,
		Progress:     p.Progress,
		Speed:        speed,
		Status:       string(p.Status),
	})
}

// updateSpeed applies the same EMA smoothing the rest of the transfer
// stack uses for progress-derived throughput estimates.
func (e *entry) updateSpeed(progress float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if e.lastUpdateTime.IsZero() {
		e.lastUpdateTime = now
		e.lastProgress = progress
		return e.speed
	}

	elapsed := now.Sub(e.lastUpdateTime).Seconds()
	progressDelta := progress - e.lastProgress
	if elapsed >= 0.3 && progressDelta > 0.01 {
		bytesTransferred := progressDelta / 100 * float64(e.size)
		instant := bytesTransferred / elapsed
		switch {
		case instant < 1024:
			instant = 0
		case instant > 1024*1024*1024:
			instant = e.speed
		}
		if instant > 0 {
			if e.speed == 0 {
				e.speed = instant
			} else {
				e.speed = 0.1*instant + 0.9*e.speed
			}
		}
		e.lastProgress = progress
		e.lastUpdateTime = now
	}
	return e.speed
}

func eventTypeFor(status uploadengine.Status, aborted bool) events.EventType {
	// Abort leaves the controller StatusPaused (see Controller.Abort), so
	// aborted is checked ahead of status to still surface it as a
	// cancellation rather than an ordinary pause.
	if aborted {
		return events.EventUploadCancelled
	}
	switch status {
	case uploadengine.StatusActive:
		return events.EventUploadProgress
	case uploadengine.StatusPaused:
		return events.EventUploadPaused
	case uploadengine.StatusDone:
		return events.EventUploadCompleted
	case uploadengine.StatusFailed:
		return events.EventUploadFailed
	default:
		return events.EventUploadQueued
	}
}
