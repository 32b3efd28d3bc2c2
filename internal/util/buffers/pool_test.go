package buffers

import (
	"testing"

	"github.com/rescale/blobup/internal/constants"
)

func TestPartBufferPool(t *testing.T) {
	buf := GetPartBuffer()
	if buf == nil {
		t.Fatal("GetPartBuffer returned nil")
	}
	if len(*buf) != constants.DefaultPartSize {
		t.Errorf("buffer size = %d, want %d", len(*buf), constants.DefaultPartSize)
	}
	PutPartBuffer(buf)

	buf2 := GetPartBuffer()
	if buf2 == nil {
		t.Fatal("GetPartBuffer returned nil on second call")
	}
	PutPartBuffer(buf2)
}

func TestPutPartBufferWithWrongSize(t *testing.T) {
	wrongSize := make([]byte, 1024)
	PutPartBuffer(&wrongSize)
}

func TestPutNilPartBuffer(t *testing.T) {
	PutPartBuffer(nil)
}

func TestPartBufferConcurrentAccess(t *testing.T) {
	const goroutines = 10
	const iterations = 100

	done := make(chan bool, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			for j := 0; j < iterations; j++ {
				buf := GetPartBuffer()
				(*buf)[0] = byte(j)
				PutPartBuffer(buf)
			}
			done <- true
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}
}

func TestPartBufferStats(t *testing.T) {
	stats := GetStats()
	if stats.PartBufferSize != constants.DefaultPartSize {
		t.Errorf("PartBufferSize = %d, want %d", stats.PartBufferSize, constants.DefaultPartSize)
	}
}

func BenchmarkPartBufferWithPool(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := GetPartBuffer()
		_ = (*buf)[0]
		PutPartBuffer(buf)
	}
}

func BenchmarkPartBufferWithoutPool(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := make([]byte, constants.DefaultPartSize)
		_ = buf[0]
	}
}
