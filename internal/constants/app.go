package constants

import (
	"time"
)

// Part sizing
const (
	// DefaultPartSize - default size of each uploaded part (8 MB)
	// Chosen as a balance between HTTP request overhead and progress granularity.
	DefaultPartSize = 8 * 1024 * 1024

	// MinCreateSize - minimum file size accepted by Create (4 KB)
	// Smaller files are not worth splitting into parts at all.
	MinCreateSize = 4096

	// PartStoreYieldEvery - number of parts processed between cooperative
	// yields in Init/Pause/Retry, so a very large file never holds the
	// store's mutex for an unbounded stretch.
	PartStoreYieldEvery = 256
)

// Retry configuration
const (
	// MaxRetries - maximum number of retries for transient transport errors
	MaxRetries = 10

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (15s)
	// Exponential backoff with jitter caps at this value.
	RetryMaxDelay = 15 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// Concurrency
const (
	// DefaultConcurrency - default number of concurrent part uploads
	DefaultConcurrency = 4

	// MaxConcurrency - absolute ceiling accepted by config
	MaxConcurrency = 32
)

// HTTP Client Timeouts
const (
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 60 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second
	HTTPDialTimeout           = 30 * time.Second
	HTTPDialKeepAlive         = 30 * time.Second
)

// API and Context Timeouts
const (
	// APIContextTimeout - default timeout for a single transport call
	APIContextTimeout = 60 * time.Second

	// APIConnectionTestTimeout - timeout for testing API connectivity
	APIConnectionTestTimeout = 10 * time.Second
)
