// Package bstream provides the seekable stream abstraction that fields read
// from and write to: plain streams over an io.ReadWriteSeeker, bounded
// substreams, a raw-byte capture wrapper, and an MSB-first bit cursor for
// BitField.
package bstream

import (
	"io"

	"github.com/dstructgo/binstruct/dstructerr"
)

// Stream is the interface fields and the structure engine read from and
// write to. It is intentionally small: Tell/Seek/Read/Write, nothing more.
// Most callers get one from New or NewSubstream rather than implementing it
// directly.
type Stream interface {
	// Tell returns the current absolute offset.
	Tell() (int64, error)
	// Seek repositions the stream, following io.Seeker's whence semantics.
	Seek(offset int64, whence int) (int64, error)
	// Read reads up to len(p) bytes. It follows io.Reader semantics: a short
	// read is not itself an error.
	Read(p []byte) (int, error)
	// Write writes all of p or returns an error.
	Write(p []byte) (int, error)
	// Seekable reports whether Seek can be expected to succeed.
	Seekable() bool
}

// rwsStream wraps a plain io.ReadWriteSeeker (or a reader/writer-only value)
// as a Stream.
type rwsStream struct {
	r io.Reader
	w io.Writer
	s io.Seeker
}

// New wraps raw, which must implement at least one of io.Reader or
// io.Writer, as a Stream. If raw also implements io.Seeker, Seek and Tell
// work; otherwise they return dstructerr.ErrNotSeekable.
func New(raw interface{}) Stream {
	st := &rwsStream{}
	if r, ok := raw.(io.Reader); ok {
		st.r = r
	}
	if w, ok := raw.(io.Writer); ok {
		st.w = w
	}
	if s, ok := raw.(io.Seeker); ok {
		st.s = s
	}
	return st
}

func (s *rwsStream) Tell() (int64, error) {
	if s.s == nil {
		return 0, dstructerr.ErrNotSeekable
	}
	return s.s.Seek(0, io.SeekCurrent)
}

func (s *rwsStream) Seek(offset int64, whence int) (int64, error) {
	if s.s == nil {
		return 0, dstructerr.ErrNotSeekable
	}
	return s.s.Seek(offset, whence)
}

func (s *rwsStream) Read(p []byte) (int, error) {
	if s.r == nil {
		return 0, io.EOF
	}
	return s.r.Read(p)
}

func (s *rwsStream) Write(p []byte) (int, error) {
	if s.w == nil {
		return 0, dstructerr.WriteError
	}
	return s.w.Write(p)
}

func (s *rwsStream) Seekable() bool {
	return s.s != nil
}

// ReadFull reads exactly len(p) bytes from s, buffering across short reads.
// It returns dstructerr.StreamExhausted if the stream runs dry before p is
// filled, and any other read error unchanged.
func ReadFull(s Stream, p []byte) error {
	read := 0
	for read < len(p) {
		n, err := s.Read(p[read:])
		read += n
		if n == 0 && err != nil {
			if err == io.EOF {
				return dstructerr.StreamExhausted
			}
			return err
		}
		if n == 0 {
			return dstructerr.StreamExhausted
		}
	}
	return nil
}

// WriteFull writes all of p to s. It returns the write's own error unchanged,
// or dstructerr.WriteError on a short write with no error.
func WriteFull(s Stream, p []byte) error {
	n, err := s.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return dstructerr.WriteError
	}
	return nil
}
