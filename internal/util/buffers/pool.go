// Package buffers provides reusable byte buffers for reading file parts,
// reducing heap allocations and GC pressure when many parts are read
// concurrently.
package buffers

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/rescale/blobup/internal/constants"
)

var (
	partAllocations int64
	partReuses      int64
)

// partPool provides DefaultPartSize buffers for reading upload parts off
// disk before handing them to the transport.
var partPool = &sync.Pool{
	New: func() interface{} {
		atomic.AddInt64(&partAllocations, 1)
		allocs := atomic.LoadInt64(&partAllocations)
		if allocs%10 == 0 {
			reuses := atomic.LoadInt64(&partReuses)
			log.Printf("buffer pool: %d part allocations, %d reuses (%.1f%% reuse rate)",
				allocs, reuses, float64(reuses)/float64(allocs+reuses)*100)
		}
		// GetPartBuffer counts every Get as a reuse once this returns; take
		// that count back here, since this Get is a fresh allocation.
		atomic.AddInt64(&partReuses, -1)
		buf := make([]byte, constants.DefaultPartSize)
		return &buf
	},
}

// GetPartBuffer retrieves a DefaultPartSize buffer from the pool. The
// buffer must be returned via PutPartBuffer when done.
func GetPartBuffer() *[]byte {
	buf := partPool.Get().(*[]byte)
	atomic.AddInt64(&partReuses, 1)
	return buf
}

// PutPartBuffer returns a buffer to the pool for reuse. Only buffers of
// the pool's native size are retained; anything else is left for the
// garbage collector.
func PutPartBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.DefaultPartSize {
		clear(*buf)
		partPool.Put(buf)
	}
}

// Stats reports buffer pool allocation counters, useful for diagnostics.
type Stats struct {
	PartBufferSize  int
	PartAllocations int64
	PartReuses      int64
}

// GetStats returns a snapshot of current pool statistics.
func GetStats() Stats {
	return Stats{
		PartBufferSize:  constants.DefaultPartSize,
		PartAllocations: atomic.LoadInt64(&partAllocations),
		PartReuses:      atomic.LoadInt64(&partReuses),
	}
}
