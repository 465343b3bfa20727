package bstream

import (
	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"
	"github.com/gostdlib/base/values/sizes"
)

// scratchPools buckets reusable []byte scratch buffers by size class, the
// same shape as the teacher's diffSizePools: a handful of fixed pools
// picked by the requested size, falling back to a plain allocation above
// the largest bucket.
type scratchPools struct {
	_256B *sync.Pool[*[]byte]
	_4K   *sync.Pool[*[]byte]
	_64K  *sync.Pool[*[]byte]
}

var scratch = newScratchPools()

func newScratchPools() scratchPools {
	ctx := context.Background()
	return scratchPools{
		_256B: sync.NewPool(ctx, "bstreamScratch256B", func() *[]byte {
			b := make([]byte, 0, 256)
			return &b
		}),
		_4K: sync.NewPool(ctx, "bstreamScratch4K", func() *[]byte {
			b := make([]byte, 0, 4*sizes.KiB)
			return &b
		}),
		_64K: sync.NewPool(ctx, "bstreamScratch64K", func() *[]byte {
			b := make([]byte, 0, 64*sizes.KiB)
			return &b
		}),
	}
}

// GetScratch returns a zero-length, reusable scratch buffer with at least
// hint bytes of capacity. Used for transient accumulation (terminator
// scans, raw-byte capture) that gets copied out before the field value is
// returned to the caller, never for a buffer handed back as a parsed
// value.
func GetScratch(hint int) []byte {
	ctx := context.Background()
	switch {
	case hint <= 256:
		b := scratch._256B.Get(ctx)
		return (*b)[:0]
	case hint <= 4*sizes.KiB:
		b := scratch._4K.Get(ctx)
		return (*b)[:0]
	case hint <= 64*sizes.KiB:
		b := scratch._64K.Get(ctx)
		return (*b)[:0]
	default:
		return make([]byte, 0, hint)
	}
}

// PutScratch returns a buffer obtained from GetScratch to its pool.
func PutScratch(b []byte) {
	ctx := context.Background()
	switch {
	case cap(b) <= 256:
		scratch._256B.Put(ctx, &b)
	case cap(b) <= 4*sizes.KiB:
		scratch._4K.Put(ctx, &b)
	case cap(b) <= 64*sizes.KiB:
		scratch._64K.Put(ctx, &b)
	default:
		// larger than the biggest bucket: let the GC reclaim it.
	}
}
