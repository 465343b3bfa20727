package bstream

import (
	"io"

	"github.com/dstructgo/binstruct/dstructerr"
)

// Substream is a bounded view of a Stream: reads and writes never go past
// start+length in the wrapped stream, and seeks are relative to start.
// ArrayField's Length form reads its elements through one of these so a
// greedy element can never run over the array's declared byte length.
type Substream struct {
	raw      Stream
	start    int64
	length   int64 // -1 means unbounded
	position int64 // relative to start
	seekable bool
}

// NewSubstream creates a Substream over raw starting at the raw stream's
// current position (or 0 if raw isn't seekable), bounded to length bytes.
// Pass length < 0 for an unbounded view that still offsets from start.
func NewSubstream(raw Stream, length int64) (*Substream, error) {
	start := int64(0)
	seekable := raw.Seekable()
	if seekable {
		pos, err := raw.Tell()
		if err != nil {
			return nil, err
		}
		start = pos
	}
	return &Substream{raw: raw, start: start, length: length, seekable: seekable}, nil
}

// NewSubstreamAt creates a Substream over raw starting at the given absolute
// offset in raw, bounded to length bytes (length < 0 for unbounded). raw must
// be seekable.
func NewSubstreamAt(raw Stream, start, length int64) (*Substream, error) {
	if !raw.Seekable() {
		return nil, dstructerr.ErrNotSeekable
	}
	if _, err := raw.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	return &Substream{raw: raw, start: start, length: length, seekable: true}, nil
}

func (s *Substream) cap(size int) int {
	if s.length < 0 {
		return size
	}
	remaining := s.length - s.position
	if remaining < 0 {
		remaining = 0
	}
	if size < 0 || int64(size) > remaining {
		return int(remaining)
	}
	return size
}

func (s *Substream) Tell() (int64, error) {
	return s.position, nil
}

func (s *Substream) Seek(offset int64, whence int) (int64, error) {
	if !s.seekable {
		return 0, dstructerr.ErrNotSeekable
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.position + offset
	case io.SeekEnd:
		if s.length < 0 {
			return 0, dstructerr.ErrNotSeekable
		}
		target = s.length + offset
	default:
		return 0, io.ErrUnexpectedEOF
	}

	if target < 0 {
		target = 0
	}
	if s.length >= 0 && target > s.length {
		target = s.length
	}

	if _, err := s.raw.Seek(s.start+target, io.SeekStart); err != nil {
		return 0, err
	}
	s.position = target
	return s.position, nil
}

func (s *Substream) Read(p []byte) (int, error) {
	n := s.cap(len(p))
	if n == 0 {
		if s.length >= 0 && s.position >= s.length {
			return 0, io.EOF
		}
		if len(p) == 0 {
			return 0, nil
		}
	}
	read, err := s.raw.Read(p[:n])
	s.position += int64(read)
	return read, err
}

func (s *Substream) Write(p []byte) (int, error) {
	n := s.cap(len(p))
	written, err := s.raw.Write(p[:n])
	s.position += int64(written)
	if err != nil {
		return written, err
	}
	if n < len(p) {
		return written, dstructerr.WriteError
	}
	return written, nil
}

func (s *Substream) Seekable() bool {
	return s.seekable
}

// Length reports the declared bound, or -1 if unbounded.
func (s *Substream) Length() int64 {
	return s.length
}

// Remaining reports how many bytes remain within the bound, or -1 if
// unbounded.
func (s *Substream) Remaining() int64 {
	if s.length < 0 {
		return -1
	}
	r := s.length - s.position
	if r < 0 {
		return 0
	}
	return r
}

// SetLength narrows (or sets, if previously unbounded) the substream's
// length bound. Used once a length-prefixed field has read its own prefix
// and knows how much payload follows.
func (s *Substream) SetLength(length int64) {
	s.length = length
}
