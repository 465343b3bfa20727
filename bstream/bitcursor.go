package bstream

import (
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/internal/bitops"
)

// BitCursor reads and writes sub-byte runs from a Stream, MSB-first within
// each byte: the first bit read from a byte is bit 7, not bit 0. Reads and
// writes of fewer than 8 bits are buffered here and only hit the underlying
// stream once a full byte has accumulated (or Align forces a flush).
//
// A BitCursor is not safe for use after a non-bit field has read from or
// written to the same stream position. A BitField with Realign set calls
// Align itself; the structure engine checks Aligned between a run of
// BitFields and the next ordinary field and fails if bits are left over.
type BitCursor struct {
	stream Stream

	// readBits holds bits not yet consumed by ReadBits, oldest first.
	readBits []int

	// writeBits holds bits queued by WriteBits but not yet flushed as a byte.
	writeBits []int
}

// NewBitCursor creates a cursor reading and writing through stream.
func NewBitCursor(stream Stream) *BitCursor {
	return &BitCursor{stream: stream}
}

// Aligned reports whether there are no partially-consumed bits buffered in
// either direction.
func (c *BitCursor) Aligned() bool {
	return len(c.readBits) == 0 && len(c.writeBits) == 0
}

// ReadBits reads the given number of bits and returns them as the low bits
// of a uint64, MSB-first.
func (c *BitCursor) ReadBits(count int) (uint64, error) {
	var result []int
	for len(result) < count {
		if len(c.readBits) == 0 {
			var b [1]byte
			if err := ReadFull(c.stream, b[:]); err != nil {
				return 0, err
			}
			bits := bitops.UnpackMSB(b[0])
			c.readBits = append(c.readBits, bits[:]...)
		}
		need := count - len(result)
		if need > len(c.readBits) {
			need = len(c.readBits)
		}
		result = append(result, c.readBits[:need]...)
		c.readBits = c.readBits[need:]
	}

	return bitops.PackMSB(result), nil
}

// WriteBits queues the low count bits of value, MSB-first, flushing complete
// bytes to the underlying stream as they accumulate.
func (c *BitCursor) WriteBits(value uint64, count int) error {
	for i := count - 1; i >= 0; i-- {
		c.writeBits = append(c.writeBits, int(value>>uint(i))&1)
	}
	return c.flushWholeBytes()
}

func (c *BitCursor) flushWholeBytes() error {
	for len(c.writeBits) >= 8 {
		v := byte(bitops.PackMSB(c.writeBits[:8]))
		if err := WriteFull(c.stream, []byte{v}); err != nil {
			return err
		}
		c.writeBits = c.writeBits[8:]
	}
	return nil
}

// Align flushes any partial read buffer (discarding it, since the remaining
// bits belong to a byte already consumed from the stream) and pads and
// flushes any partial write buffer with zero bits, so the next field starts
// byte-aligned. Discarded read bits are not checked for being zero; callers
// needing strict alignment checks should inspect Aligned() themselves before
// calling Align. It returns dstructerr.WriteError if flushing the padded
// write byte fails.
func (c *BitCursor) Align() error {
	c.readBits = nil

	if len(c.writeBits) == 0 {
		return nil
	}
	for len(c.writeBits)%8 != 0 {
		c.writeBits = append(c.writeBits, 0)
	}
	if err := c.flushWholeBytes(); err != nil {
		return dstructerr.WriteError
	}
	return nil
}
