package field

import (
	"github.com/pkg/errors"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/parsectx"
)

// ByteOrder selects how IntegerField reads and writes multi-byte values.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// IntegerField reads and writes a fixed-width integer of arbitrary byte
// length (not just 1/2/4/8), signed or unsigned, in either byte order. The
// decoded Go value is always int64 (signed) or uint64 (unsigned).
type IntegerField struct {
	Base
	Width  int // bytes, >= 1
	Signed bool
	Order  ByteOrder
}

// NewIntegerField creates an IntegerField of the given byte width.
func NewIntegerField(name string, width int, signed bool, order ByteOrder) *IntegerField {
	return &IntegerField{Base: NewBase(name), Width: width, Signed: signed, Order: order}
}

func (f *IntegerField) Len() (int64, error) {
	return int64(f.Width), nil
}

func (f *IntegerField) SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, bool, error) {
	return DefaultSeekEnd(f, stream, offset)
}

func (f *IntegerField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	buf := make([]byte, f.Width)
	if err := bstream.ReadFull(stream, buf); err != nil {
		return nil, 0, errors.Wrapf(err, "parsing field %q", f.FieldName)
	}

	var u uint64
	if f.Order == BigEndian {
		for _, b := range buf {
			u = u<<8 | uint64(b)
		}
	} else {
		for i := len(buf) - 1; i >= 0; i-- {
			u = u<<8 | uint64(buf[i])
		}
	}

	if !f.Signed {
		return u, int64(f.Width), nil
	}

	signBit := uint64(1) << uint(f.Width*8-1)
	if u&signBit != 0 {
		// sign-extend: fill the high bits above Width*8 with ones
		mask := ^uint64(0) << uint(f.Width*8)
		return int64(u | mask), int64(f.Width), nil
	}
	return int64(u), int64(f.Width), nil
}

func (f *IntegerField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	u, err := f.toUint(value)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, f.Width)
	if f.Order == BigEndian {
		for i := f.Width - 1; i >= 0; i-- {
			buf[i] = byte(u)
			u >>= 8
		}
	} else {
		for i := 0; i < f.Width; i++ {
			buf[i] = byte(u)
			u >>= 8
		}
	}
	if u != 0 {
		return 0, errors.Wrapf(dstructerr.Overflow, "field %q value does not fit in %d bytes", f.FieldName, f.Width)
	}

	if err := bstream.WriteFull(stream, buf); err != nil {
		return 0, err
	}
	return int64(f.Width), nil
}

func (f *IntegerField) toUint(value interface{}) (uint64, error) {
	if i, ok := asInt64(value); ok {
		if f.Signed && i < 0 {
			mask := uint64(1)<<uint(f.Width*8) - 1
			return uint64(i) & mask, nil
		}
		return uint64(i), nil
	}
	return 0, errors.Wrapf(dstructerr.WriteError, "field %q expects an integer, got %T", f.FieldName, value)
}

// VariableLengthIntegerField reads and writes an MSB-first base-128 varint:
// each byte carries 7 value bits, high bit set means "another byte
// follows". This is the opposite bit convention from protobuf's LSB-first
// LEB128 varints, so the two are not wire-compatible.
type VariableLengthIntegerField struct {
	Base
}

// NewVariableLengthIntegerField creates a VariableLengthIntegerField.
func NewVariableLengthIntegerField(name string) *VariableLengthIntegerField {
	return &VariableLengthIntegerField{Base: NewBase(name)}
}

func (f *VariableLengthIntegerField) Len() (int64, error) {
	return 0, dstructerr.ImpossibleToCalculateLength
}

func (f *VariableLengthIntegerField) SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, bool, error) {
	return 0, false, nil
}

func (f *VariableLengthIntegerField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	var u uint64
	var n int64
	for {
		var b [1]byte
		if err := bstream.ReadFull(stream, b[:]); err != nil {
			return nil, 0, errors.Wrapf(err, "parsing varint field %q", f.FieldName)
		}
		n++
		u = u<<7 | uint64(b[0]&0x7f)
		if b[0]&0x80 == 0 {
			break
		}
		if n > 10 {
			return nil, 0, errors.Wrapf(dstructerr.Overflow, "varint field %q exceeds 64 bits", f.FieldName)
		}
	}
	return u, n, nil
}

func (f *VariableLengthIntegerField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	u, ok := asUint64(value)
	if !ok {
		return 0, errors.Wrapf(dstructerr.WriteError, "field %q expects an unsigned integer, got %T", f.FieldName, value)
	}

	var groups []byte
	groups = append(groups, byte(u&0x7f))
	u >>= 7
	for u > 0 {
		groups = append(groups, byte(u&0x7f)|0x80)
		u >>= 7
	}
	// groups was built least-significant-group first; the wire order is
	// most-significant-group first, with the continuation bit set on every
	// byte except the last one written.
	out := make([]byte, len(groups))
	for i, g := range groups {
		out[len(groups)-1-i] = g
	}
	for i := 0; i < len(out)-1; i++ {
		out[i] |= 0x80
	}
	out[len(out)-1] &^= 0x80

	if err := bstream.WriteFull(stream, out); err != nil {
		return 0, err
	}
	return int64(len(out)), nil
}

func asUint64(value interface{}) (uint64, bool) {
	switch t := value.(type) {
	case uint64:
		return t, true
	case uint32:
		return uint64(t), true
	case uint16:
		return uint64(t), true
	case uint8:
		return uint64(t), true
	case uint:
		return uint64(t), true
	case int64:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case int:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	default:
		return 0, false
	}
}
