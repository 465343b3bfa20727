package parsectx

import (
	"io"

	"github.com/pkg/errors"

	"github.com/dstructgo/binstruct/bstream"
)

// Decoder is the minimal surface FieldContext needs to re-decode a lazy
// field's value once it is forced: seek to Offset in the context's stream
// and decode Length bytes. The structure package adapts a field.Field to
// this interface.
type Decoder interface {
	DecodeFromStream(ctx *Context) (value interface{}, length int64, err error)
}

// FieldContext holds the parsing state of a single field within a Context:
// its current value (possibly not yet forced, if lazy), and the offset and
// length it was found at in the stream.
type FieldContext struct {
	context *Context
	decoder Decoder

	value  interface{}
	parsed bool
	lazy   bool
	forced bool

	Offset int64
	Length int64
	Raw    []byte

	Subcontext *Context
}

// HasValue reports whether Value can be called without error: either an
// ordinary value has been set, or a lazy decoder is attached.
func (fc *FieldContext) HasValue() bool {
	return fc.lazy || fc.value != NotProvided
}

// Parsed reports whether this field has been through FromStream/ToStream at
// all (lazy or not).
func (fc *FieldContext) Parsed() bool {
	return fc.parsed
}

// Resolved reports whether the value has actually been read from, or
// written to, the stream -- i.e. is not lazy anymore.
func (fc *FieldContext) Resolved() bool {
	return fc.parsed && !fc.lazy
}

// Value returns the field's current value, forcing a lazy decode if needed.
func (fc *FieldContext) Value() (interface{}, error) {
	if !fc.HasValue() {
		return nil, errors.New("this field has currently no value")
	}
	if fc.lazy {
		return fc.Force()
	}
	return fc.value, nil
}

// Set assigns an ordinary (non-lazy) value directly, without touching the
// stream. Used to seed context field_values before parsing, or to hold a
// value already computed by the caller for emitting.
func (fc *FieldContext) Set(value interface{}) {
	fc.value = value
	fc.lazy = false
}

// Force resolves a lazy field's value by seeking the context's stream to
// Offset and decoding, then seeking back to wherever the stream was. If the
// context isn't Done yet, the resolved value replaces the lazy placeholder
// so a second Force doesn't hit the stream again.
func (fc *FieldContext) Force() (interface{}, error) {
	if !fc.lazy {
		return fc.value, nil
	}
	if fc.decoder == nil || fc.context.Stream == nil {
		return nil, errors.New("lazy field has no decoder or stream to force from")
	}

	current, err := fc.context.Stream.Tell()
	if err != nil {
		return nil, err
	}
	defer fc.context.Stream.Seek(current, io.SeekStart)

	if _, err := fc.context.Stream.Seek(fc.Offset, io.SeekStart); err != nil {
		return nil, err
	}

	value, length, err := fc.decoder.DecodeFromStream(fc.context)
	if err != nil {
		return nil, err
	}

	if !fc.context.Done {
		fc.AddParseInfo(fc.Offset, length, value, false)
	}

	return value, nil
}

// AddParseInfo records that a field has been parsed (or, with lazy=true,
// that it will be parsed later from offset/length). value is ignored when
// lazy is true.
func (fc *FieldContext) AddParseInfo(offset, length int64, value interface{}, lazy bool) {
	fc.parsed = true
	if !lazy {
		fc.value = value
	}
	fc.Offset = offset
	fc.Length = length
	fc.lazy = lazy

	if fc.context.CaptureRaw && fc.context.Stream != nil && length > 0 && !lazy {
		fc.captureRaw()
	}
}

// MarkLazy attaches a decoder and the stream region a field's value will be
// read from on demand, without reading it now.
func (fc *FieldContext) MarkLazy(decoder Decoder, offset, length int64) {
	fc.decoder = decoder
	fc.AddParseInfo(offset, length, nil, true)
}

func (fc *FieldContext) captureRaw() {
	current, err := fc.context.Stream.Tell()
	if err != nil {
		return
	}
	if _, err := fc.context.Stream.Seek(current-fc.Length, io.SeekStart); err != nil {
		return
	}
	scratch := bstream.GetScratch(int(fc.Length))[:fc.Length]
	n, _ := fc.context.Stream.Read(scratch)
	fc.Raw = append([]byte(nil), scratch[:n]...)
	bstream.PutScratch(scratch)
	fc.context.Stream.Seek(current, io.SeekStart)
}
