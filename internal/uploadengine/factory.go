package uploadengine

import (
	"context"
	"errors"

	"github.com/rescale/blobup/internal/ratelimit"
)

// PartReader produces the bytes of a Part on demand. The concrete
// implementation (see NewFilePartReader) reads a byte range of the local
// file being uploaded; tests supply an in-memory fake.
type PartReader interface {
	ReadPart(ctx context.Context, p *Part) ([]byte, error)
	ReleasePart(body []byte)
}

// PartJobFactory turns a Part into a Job: one attempt to read and upload
// it, followed by the bookkeeping that tells the PartStore and the
// controller what happened. A factory is shared by every part of one
// upload; it holds no per-part state of its own.
type PartJobFactory struct {
	store     *PartStore
	transport TransportAdapter
	reader    PartReader
	limiter   *ratelimit.RateLimiter
}

// NewPartJobFactory builds a factory bound to one upload's store, transport
// and reader. limiter may be nil to disable pacing.
func NewPartJobFactory(store *PartStore, transport TransportAdapter, reader PartReader, limiter *ratelimit.RateLimiter) *PartJobFactory {
	return &PartJobFactory{store: store, transport: transport, reader: reader, limiter: limiter}
}

// Make returns a Job that uploads part under uploadID using ctx as its
// cancellation token. onSettled is invoked exactly once, after the store
// has been updated, with the store's quiescence at that moment — unless
// the attempt was aborted, in which case onSettled is not called at all:
// an aborted attempt leaves the part wherever Pause or Abort already put
// it, and must not trigger a finalize check.
func (f *PartJobFactory) Make(ctx context.Context, part *Part, uploadID string, onSettled func(quiescent bool)) Job {
	return func() {
		body, err := f.reader.ReadPart(ctx, part)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrAborted) {
				return
			}
			f.store.FailPart(part)
			onSettled(f.store.Quiescent())
			return
		}
		defer f.reader.ReleasePart(body)

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return
			}
		}

		ok, err := f.transport.UploadPart(ctx, part, uploadID, body)
		if err != nil {
			if errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled) {
				return
			}
			f.store.FailPart(part)
			onSettled(f.store.Quiescent())
			return
		}
		if !ok {
			f.store.FailPart(part)
			onSettled(f.store.Quiescent())
			return
		}
		f.store.PassPart(part)
		onSettled(f.store.Quiescent())
	}
}
