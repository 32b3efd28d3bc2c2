package uploadengine

// Status is the coarse state of an UploadController, one of the five
// values in the state machine.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusFailed Status = "failed"
	StatusDone   Status = "done"
)

// StatusProjection is the observable triple exposed to callers: progress
// percentage, coarse status, and — once the upload has finished
// successfully — the artifact returned by Finalize.
type StatusProjection struct {
	FileName string
	Progress float64 // 0 to 100
	Status   Status
	Artifact *PersistedArtifact
}

// StatusObserver receives a StatusProjection every time a controller's
// status or progress changes. The registry in internal/transfer
// implements this to fan projections out onto the shared event bus; tests
// can supply a simple recording observer instead.
type StatusObserver interface {
	ObserveStatus(StatusProjection)
}

// StatusObserverFunc adapts a plain function to StatusObserver.
type StatusObserverFunc func(StatusProjection)

func (f StatusObserverFunc) ObserveStatus(p StatusProjection) { f(p) }
