package uploadengine

import (
	"context"
	"fmt"
	"os"

	"github.com/rescale/blobup/internal/util/buffers"
)

// FilePartReader reads part bytes from a local file via ReadAt, backed by
// the shared part-buffer pool. One FilePartReader belongs to one upload;
// it is safe for concurrent ReadPart calls since os.File.ReadAt does not
// share a cursor.
type FilePartReader struct {
	f *os.File
}

// NewFilePartReader opens path for reading. The caller is responsible for
// closing the returned reader once the upload finishes or is aborted.
func NewFilePartReader(path string) (*FilePartReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("uploadengine: open %s: %w", path, err)
	}
	return &FilePartReader{f: f}, nil
}

// ReadPart reads part's byte range into a pooled buffer sized to the part's
// length. Returns ErrAborted if ctx is already done.
func (r *FilePartReader) ReadPart(ctx context.Context, p *Part) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ErrAborted
	default:
	}

	full := buffers.GetPartBuffer()
	buf := (*full)[:p.Len()]
	n, err := r.f.ReadAt(buf, p.Start)
	if err != nil && int64(n) != p.Len() {
		buffers.PutPartBuffer(full)
		return nil, fmt.Errorf("uploadengine: read part %d: %w", p.Index, err)
	}
	return buf, nil
}

// ReleasePart returns a buffer obtained from ReadPart to the pool.
func (r *FilePartReader) ReleasePart(body []byte) {
	full := body[:cap(body)]
	buffers.PutPartBuffer(&full)
}

// Close releases the underlying file handle.
func (r *FilePartReader) Close() error {
	return r.f.Close()
}
