package bstream

// CaptureStream wraps a Stream and records every byte that passes through
// Read or Write, regardless of intervening Seeks. It is a standalone
// wrapper: FieldContext's CaptureRaw support does not use it, and instead
// re-reads each field's bytes from its recorded offset and length.
type CaptureStream struct {
	Stream
	buf []byte
}

// NewCaptureStream starts capturing reads and writes made through raw.
func NewCaptureStream(raw Stream) *CaptureStream {
	return &CaptureStream{Stream: raw, buf: GetScratch(256)}
}

// Release returns the capture buffer to its pool. Call it once the
// captured bytes have been copied out; the CaptureStream must not be used
// again afterward.
func (c *CaptureStream) Release() {
	PutScratch(c.buf)
	c.buf = nil
}

func (c *CaptureStream) Read(p []byte) (int, error) {
	n, err := c.Stream.Read(p)
	if n > 0 {
		c.buf = append(c.buf, p[:n]...)
	}
	return n, err
}

func (c *CaptureStream) Write(p []byte) (int, error) {
	n, err := c.Stream.Write(p)
	if n > 0 {
		c.buf = append(c.buf, p[:n]...)
	}
	return n, err
}

// Captured returns the bytes recorded so far.
func (c *CaptureStream) Captured() []byte {
	return c.buf
}

// Reset clears the captured buffer without affecting the underlying stream.
func (c *CaptureStream) Reset() {
	c.buf = c.buf[:0]
}
