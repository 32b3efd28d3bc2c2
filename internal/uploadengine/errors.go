package uploadengine

import "errors"

// ErrAborted is returned by a TransportAdapter call when its context was
// cancelled before (or while) the call was in flight. Factories and
// controllers treat it as an expected, silent outcome — never a failure.
var ErrAborted = errors.New("uploadengine: operation aborted")

// ErrInvariantViolation marks a programmer error: a call that the state
// machine's contract forbids, such as starting a part before Init, or
// calling Start on a controller that has already been aborted.
var ErrInvariantViolation = errors.New("uploadengine: invariant violation")

// TransportFailure wraps a network error or a non-ok response that
// prevented a TransportAdapter call from completing normally. It is
// distinct from ErrAborted: a TransportFailure is retriable by the part
// scheduler, an abort never is.
type TransportFailure struct {
	Op  string
	Err error
}

func (e *TransportFailure) Error() string {
	if e.Err == nil {
		return "uploadengine: transport failure during " + e.Op
	}
	return "uploadengine: transport failure during " + e.Op + ": " + e.Err.Error()
}

func (e *TransportFailure) Unwrap() error { return e.Err }

// NewTransportFailure wraps err as a TransportFailure attributed to op
// ("create", "uploadPart", "finalize", "cancel").
func NewTransportFailure(op string, err error) *TransportFailure {
	return &TransportFailure{Op: op, Err: err}
}

// CreateFailure indicates transport.Create did not yield an uploadID.
type CreateFailure struct{ Err error }

func (e *CreateFailure) Error() string {
	return "uploadengine: create failed: " + e.Err.Error()
}
func (e *CreateFailure) Unwrap() error { return e.Err }

// FinalizeFailure indicates transport.Finalize rejected the upload or
// returned no artifact.
type FinalizeFailure struct{ Err error }

func (e *FinalizeFailure) Error() string {
	return "uploadengine: finalize failed: " + e.Err.Error()
}
func (e *FinalizeFailure) Unwrap() error { return e.Err }
