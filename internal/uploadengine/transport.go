package uploadengine

import (
	"context"
	"time"
)

// UploadFile describes the local file being uploaded, as seen by
// transport.Create.
type UploadFile struct {
	Name string
	Size int64
}

// PersistedArtifact is the backend's descriptor for a finalized upload. Its
// fields are opaque to the engine beyond their use for display/logging.
type PersistedArtifact struct {
	UID       string    `json:"uid"`
	FileName  string    `json:"fileName"`
	MIMEType  string    `json:"mimeType"`
	CreatedAt time.Time `json:"createdAt"`
	ValidThru time.Time `json:"validThru"`
}

// TransportAdapter is the engine's only boundary to the network. Every
// method may fail with exactly one of two kinds: ErrAborted when ctx was
// cancelled, or a *TransportFailure for anything else (network errors,
// malformed responses, non-ok status codes that prevented completion).
//
// UploadPart additionally distinguishes a well-formed but unsuccessful
// response: such a response is reported as (false, nil), not an error.
type TransportAdapter interface {
	Create(ctx context.Context, file UploadFile) (uploadID string, err error)
	UploadPart(ctx context.Context, part *Part, uploadID string, body []byte) (ok bool, err error)
	Finalize(ctx context.Context, fileName, uploadID string) (PersistedArtifact, error)
	Cancel(ctx context.Context, uploadID string) error
}
