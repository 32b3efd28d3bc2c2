package uploadengine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeTransport is an in-memory TransportAdapter for tests. Each method
// can be scripted to fail a fixed number of times, or for specific part
// indices, before succeeding.
type fakeTransport struct {
	mu sync.Mutex

	createErr error
	createID  string

	failParts   map[int]int // part index -> remaining failures before success
	transportErrParts map[int]int

	finalizeErr       error
	finalizeFailCount int // remaining calls that return finalizeErr before succeeding
	finalizeArt       PersistedArtifact
	finalizeCalls     int

	cancelErr error

	uploaded  map[int]int // part index -> call count
	cancelled bool

	delay time.Duration // simulated per-call latency, for tests that race Pause/Abort against in-flight parts
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		createID:  "upload-1",
		failParts: make(map[int]int),
		transportErrParts: make(map[int]int),
		uploaded:  make(map[int]int),
	}
}

func (f *fakeTransport) Create(ctx context.Context, file UploadFile) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createID, nil
}

func (f *fakeTransport) UploadPart(ctx context.Context, part *Part, uploadID string, body []byte) (bool, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return false, ErrAborted
		case <-time.After(f.delay):
		}
	}

	select {
	case <-ctx.Done():
		return false, ErrAborted
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[part.Index]++

	if n := f.transportErrParts[part.Index]; n > 0 {
		f.transportErrParts[part.Index] = n - 1
		return false, NewTransportFailure("uploadPart", fmt.Errorf("simulated network error"))
	}
	if n := f.failParts[part.Index]; n > 0 {
		f.failParts[part.Index] = n - 1
		return false, nil
	}
	return true, nil
}

func (f *fakeTransport) Finalize(ctx context.Context, fileName, uploadID string) (PersistedArtifact, error) {
	f.mu.Lock()
	f.finalizeCalls++
	if f.finalizeFailCount > 0 {
		f.finalizeFailCount--
		f.mu.Unlock()
		return PersistedArtifact{}, f.finalizeErr
	}
	f.mu.Unlock()

	if f.finalizeArt.FileName == "" {
		f.finalizeArt.FileName = fileName
		f.finalizeArt.UID = uploadID
	}
	return f.finalizeArt, nil
}

func (f *fakeTransport) finalizeCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalizeCalls
}

func (f *fakeTransport) Cancel(ctx context.Context, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
	return f.cancelErr
}

func (f *fakeTransport) uploadCount(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploaded[index]
}

func (f *fakeTransport) totalUploadCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.uploaded {
		total += n
	}
	return total
}

// fakeReader serves part bytes from an in-memory buffer instead of disk.
type fakeReader struct {
	data []byte
}

func newFakeReader(size int64) *fakeReader {
	return &fakeReader{data: make([]byte, size)}
}

func (r *fakeReader) ReadPart(ctx context.Context, p *Part) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ErrAborted
	default:
	}
	buf := make([]byte, p.Len())
	copy(buf, r.data[p.Start:p.End])
	return buf, nil
}

func (r *fakeReader) ReleasePart(body []byte) {}

// recordingObserver collects every StatusProjection it receives.
type recordingObserver struct {
	mu   sync.Mutex
	seen []StatusProjection
}

func (o *recordingObserver) ObserveStatus(p StatusProjection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, p)
}

func (o *recordingObserver) last() StatusProjection {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.seen) == 0 {
		return StatusProjection{}
	}
	return o.seen[len(o.seen)-1]
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.seen)
}
