// Package dstructerr defines the error taxonomy used across the parsing and
// emitting runtime. Sentinel errors are meant to be tested with errors.Is;
// FieldError attaches the field path and stream offset that were active when
// the error surfaced.
package dstructerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors. Wrap these with errors.Wrapf (or FieldError) rather than
// constructing new error values, so callers can still errors.Is against them.
var (
	// StreamExhausted is returned when a read needed more bytes than the
	// stream had left to give.
	StreamExhausted = errors.New("stream exhausted")

	// WriteError is returned when a value can't be written: it has the wrong
	// type for its field, fails a ConstantField check, uses a rejected
	// negative offset, or a write to the underlying stream fell short.
	WriteError = errors.New("write error")

	// CheckError is returned when a field or structure check failed, e.g. a
	// ConstantField whose parsed value didn't match its expected value.
	CheckError = errors.New("check failed")

	// Overflow is returned when a decoded value doesn't fit the field it was
	// decoded for, or an encoded value doesn't fit its declared width.
	Overflow = errors.New("value overflows field")

	// ImpossibleToCalculateLength is returned when Len is asked for the byte
	// length of a field whose length can't be known without consuming input,
	// and no other policy resolves it.
	ImpossibleToCalculateLength = errors.New("impossible to calculate length")

	// ParseError wraps any other failure encountered while decoding a value.
	ParseError = errors.New("parse error")

	// FieldNotFound is returned when a FieldRef or Facade.Get names a field
	// that doesn't exist, or has no value yet, in the reachable context chain.
	FieldNotFound = errors.New("field not found")

	// ErrNotSeekable is returned when Seek is called on a stream wrapping a
	// non-seekable reader or writer.
	ErrNotSeekable = errors.New("stream is not seekable")
)

// FieldError annotates an underlying error with the field path and stream
// offset that were active when it occurred. Path is dotted, root first, e.g.
// "header.length".
type FieldError struct {
	Path   string
	Offset int64
	Err    error
}

func (e *FieldError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: at offset %d: %s", e.Path, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// WithField wraps err with the field path that was being processed. If err is
// already a *FieldError, the existing path is prefixed with name rather than
// replaced, so a nested structure builds up a dotted path as the error
// propagates outward.
func WithField(err error, name string, offset int64) error {
	if err == nil {
		return nil
	}

	var fe *FieldError
	if errors.As(err, &fe) {
		path := name
		if fe.Path != "" {
			path = name + "." + fe.Path
		}
		return &FieldError{Path: path, Offset: fe.Offset, Err: fe.Err}
	}

	return &FieldError{Path: name, Offset: offset, Err: err}
}
