package uploadengine

import (
	"sync"

	"github.com/rescale/blobup/internal/constants"
)

// Part describes one contiguous byte range of the file being uploaded.
// Index is 1-based and contiguous across a file's part set. Parts are
// identified by pointer, not value, so the store can track membership
// even when two parts happen to share a byte range.
type Part struct {
	Index int
	Start int64
	End   int64 // half-open: [Start, End)
}

// Len returns the byte length of the part.
func (p *Part) Len() int64 { return p.End - p.Start }

// PartStoreSnapshot reports bucket sizes for diagnostics and tests.
type PartStoreSnapshot struct {
	ToSend     int
	OnDuty     int
	Failed     int
	DoneBytes  int64
	FileSize   int64
	PartCount  int
	Quiescent  bool
	Initialize bool
}

// PartStore tracks the lifecycle of every part of one file upload. It
// performs no I/O; it is pure bookkeeping protected by a single mutex.
// One PartStore belongs to exactly one UploadController.
type PartStore struct {
	mu sync.Mutex

	fileSize int64
	partSize int64

	toSend []*Part
	onDuty map[*Part]struct{}
	failed map[*Part]struct{}

	doneBytes   int64
	partCount   int
	initialized bool
	quiescent   bool
}

// NewPartStore creates an empty, uninitialized store. Call Init before use.
func NewPartStore() *PartStore {
	return &PartStore{
		onDuty:    make(map[*Part]struct{}),
		failed:    make(map[*Part]struct{}),
		quiescent: true,
	}
}

// Init enumerates parts 1..partCount with contiguous byte ranges (the last
// part may be shorter than partSize). Idempotent: subsequent calls are
// no-ops. partSize must be positive; fileSize may be zero or more.
func (s *PartStore) Init(fileSize, partSize int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return
	}
	s.fileSize = fileSize
	s.partSize = partSize

	var start int64
	index := 1
	for start < fileSize {
		end := start + partSize
		if end > fileSize {
			end = fileSize
		}
		s.toSend = append(s.toSend, &Part{Index: index, Start: start, End: end})
		start = end
		index++

		if index%constants.PartStoreYieldEvery == 0 {
			s.mu.Unlock()
			s.mu.Lock()
		}
	}
	s.partCount = len(s.toSend)
	s.initialized = true
	s.quiescent = len(s.onDuty) == 0
}

// NextPart pops a part from toSend and moves it to onDuty, returning it.
// Returns (nil, false) if toSend is empty.
func (s *PartStore) NextPart() (*Part, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.toSend) == 0 {
		return nil, false
	}
	p := s.toSend[0]
	s.toSend = s.toSend[1:]
	s.onDuty[p] = struct{}{}
	s.quiescent = false
	return p, true
}

// PassPart records a successful upload of p. A no-op if p is not currently
// on duty (e.g. it was paused or aborted before this call arrived).
func (s *PartStore) PassPart(p *Part) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.onDuty[p]; !ok {
		return
	}
	delete(s.onDuty, p)
	s.doneBytes += p.Len()
	s.quiescent = len(s.onDuty) == 0
}

// FailPart records a non-ok outcome for p, moving it to the failed bucket.
// A no-op if p is not currently on duty.
func (s *PartStore) FailPart(p *Part) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.onDuty[p]; !ok {
		return
	}
	delete(s.onDuty, p)
	s.failed[p] = struct{}{}
	s.quiescent = len(s.onDuty) == 0
}

// Pause moves every on-duty part back to toSend and clears onDuty. After
// Pause returns, the store is quiescent and no late PassPart/FailPart call
// for a part that was on duty at the time of the call can change doneBytes.
func (s *PartStore) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := 0
	for p := range s.onDuty {
		s.toSend = append(s.toSend, p)
		delete(s.onDuty, p)
		i++
		if i%constants.PartStoreYieldEvery == 0 {
			s.mu.Unlock()
			s.mu.Lock()
		}
	}
	s.quiescent = true
}

// Retry moves every failed part back to toSend and clears failed.
func (s *PartStore) Retry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := 0
	for p := range s.failed {
		s.toSend = append(s.toSend, p)
		delete(s.failed, p)
		i++
		if i%constants.PartStoreYieldEvery == 0 {
			s.mu.Unlock()
			s.mu.Lock()
		}
	}
}

// DoneBytes returns the total bytes of parts that have passed.
func (s *PartStore) DoneBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doneBytes
}

// FileSize returns the size the store was initialized with.
func (s *PartStore) FileSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileSize
}

// Quiescent reports whether no part is currently on duty.
func (s *PartStore) Quiescent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiescent
}

// Complete reports whether every part has passed.
func (s *PartStore) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doneBytes == s.fileSize
}

// PartCount returns the total number of parts the store was initialized
// with.
func (s *PartStore) PartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partCount
}

// Snapshot reports current bucket sizes, for diagnostics and tests.
func (s *PartStore) Snapshot() PartStoreSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PartStoreSnapshot{
		ToSend:     len(s.toSend),
		OnDuty:     len(s.onDuty),
		Failed:     len(s.failed),
		DoneBytes:  s.doneBytes,
		FileSize:   s.fileSize,
		PartCount:  s.partCount,
		Quiescent:  s.quiescent,
		Initialize: s.initialized,
	}
}
