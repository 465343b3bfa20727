package field

import (
	"io"

	"github.com/pkg/errors"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/expr"
	"github.com/dstructgo/binstruct/parsectx"
)

// BytesField reads and writes a length-determined run of raw bytes. Length
// may be a constant, a reference to another field (e.g. a preceding length
// prefix), or an expression.
type BytesField struct {
	Base
	Length expr.Spec // nil means "read to end of enclosing bound"
}

// NewBytesField creates a BytesField with a constant length.
func NewBytesField(name string, length int64) *BytesField {
	return &BytesField{Base: NewBase(name), Length: expr.C(length)}
}

func (f *BytesField) Len() (int64, error) {
	if f.Length == nil {
		return 0, dstructerr.ImpossibleToCalculateLength
	}
	if c, ok := f.Length.(expr.Const); ok {
		if n, ok := asInt64(c.Value); ok {
			return n, nil
		}
	}
	return 0, dstructerr.ImpossibleToCalculateLength
}

func (f *BytesField) resolveLength(ctx *parsectx.Context) (int64, bool, error) {
	return expr.ResolveInt(f.Length, ctx.Facade(nil))
}

func (f *BytesField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	length, ok, err := f.resolveLength(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		// No Length: read up to the end of the stream (or its Substream bound).
		var buf []byte
		chunk := make([]byte, 512)
		for {
			n, rerr := stream.Read(chunk)
			buf = append(buf, chunk[:n]...)
			if rerr != nil && rerr != io.EOF {
				return nil, 0, errors.Wrapf(rerr, "parsing field %q", f.FieldName)
			}
			if rerr == io.EOF || n == 0 {
				return buf, int64(len(buf)), nil
			}
		}
	}

	buf := make([]byte, length)
	if err := bstream.ReadFull(stream, buf); err != nil {
		return nil, 0, errors.Wrapf(err, "parsing field %q, wanted %d bytes", f.FieldName, length)
	}
	return buf, length, nil
}

func (f *BytesField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	b, ok := value.([]byte)
	if !ok {
		return 0, errors.Wrapf(dstructerr.WriteError, "field %q expects []byte, got %T", f.FieldName, value)
	}
	if err := bstream.WriteFull(stream, b); err != nil {
		return 0, err
	}
	return int64(len(b)), nil
}

func (f *BytesField) SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, bool, error) {
	length, ok, err := f.resolveLength(ctx)
	if err != nil || !ok {
		return 0, false, err
	}
	newOffset, err := seekCur(stream, length)
	if err != nil {
		return 0, false, err
	}
	return newOffset, true, nil
}

// SizeSpec implements LengthSource.
func (f *BytesField) SizeSpec() expr.Spec { return f.Length }

// DerivedSize implements LengthSource.
func (f *BytesField) DerivedSize(value interface{}) (interface{}, error) {
	b, ok := value.([]byte)
	if !ok {
		return nil, errors.Wrapf(dstructerr.WriteError, "field %q expects []byte to derive a length from, got %T", f.FieldName, value)
	}
	return uint64(len(b)), nil
}

func asInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), true
	default:
		return 0, false
	}
}

// TerminatedField reads bytes up to and including a terminator sequence,
// and returns the bytes before it. On write, the terminator is appended.
type TerminatedField struct {
	Base
	Terminator []byte
}

// NewTerminatedField creates a TerminatedField whose default terminator is
// a single NUL byte if terminator is empty.
func NewTerminatedField(name string, terminator []byte) *TerminatedField {
	if len(terminator) == 0 {
		terminator = []byte{0}
	}
	return &TerminatedField{Base: NewBase(name), Terminator: terminator}
}

func (f *TerminatedField) Len() (int64, error) {
	return 0, dstructerr.ImpossibleToCalculateLength
}

func (f *TerminatedField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	read := bstream.GetScratch(256)
	term := f.Terminator
	for {
		var b [1]byte
		n, err := stream.Read(b[:])
		if n == 0 {
			bstream.PutScratch(read)
			return nil, 0, errors.Wrapf(dstructerr.StreamExhausted,
				"parsing field %q, did not find terminator %x", f.FieldName, term)
		}
		read = append(read, b[0])
		if err != nil && len(read) < len(term) {
			bstream.PutScratch(read)
			return nil, 0, errors.Wrapf(dstructerr.StreamExhausted,
				"parsing field %q, did not find terminator %x", f.FieldName, term)
		}
		if hasSuffix(read, term) {
			break
		}
	}
	value := append([]byte(nil), read[:len(read)-len(term)]...)
	n := int64(len(read))
	bstream.PutScratch(read)
	return value, n, nil
}

func (f *TerminatedField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	b, ok := value.([]byte)
	if !ok {
		return 0, errors.Wrapf(dstructerr.WriteError, "field %q expects []byte, got %T", f.FieldName, value)
	}
	out := append(append([]byte{}, b...), f.Terminator...)
	if err := bstream.WriteFull(stream, out); err != nil {
		return 0, err
	}
	return int64(len(out)), nil
}

func (f *TerminatedField) SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, bool, error) {
	return 0, false, nil
}

func hasSuffix(b, suffix []byte) bool {
	if len(suffix) > len(b) {
		return false
	}
	for i := range suffix {
		if b[len(b)-len(suffix)+i] != suffix[i] {
			return false
		}
	}
	return true
}
