package field

import (
	"github.com/pkg/errors"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/expr"
	"github.com/dstructgo/binstruct/parsectx"
)

// BitField reads and writes a run of bits, MSB-first, through the
// structure's shared bit cursor. Realign forces any partially-consumed byte
// to be flushed/discarded after this field, so the next field starts
// byte-aligned even if the total bit count isn't a multiple of 8.
type BitField struct {
	Base
	Bits    expr.Spec // number of bits, constant or dependent
	Realign bool

	cursor *bstream.BitCursor
}

// NewBitField creates a BitField reading/writing the given constant bit count.
func NewBitField(name string, bits int64) *BitField {
	return &BitField{Base: NewBase(name), Bits: expr.C(bits)}
}

// SetCursor attaches the shared bit cursor the structure engine maintains
// for a run of adjacent BitFields.
func (f *BitField) SetCursor(c *bstream.BitCursor) { f.cursor = c }

func (f *BitField) Len() (int64, error) {
	if c, ok := f.Bits.(expr.Const); ok {
		if n, ok := asInt64(c.Value); ok {
			return (n + 7) / 8, nil
		}
	}
	return 0, dstructerr.ImpossibleToCalculateLength
}

func (f *BitField) SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, bool, error) {
	return 0, false, nil
}

func (f *BitField) resolveBits(ctx *parsectx.Context) (int64, error) {
	n, ok, err := expr.ResolveInt(f.Bits, ctx.Facade(nil))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.Wrapf(dstructerr.ParseError, "field %q has no resolvable bit count", f.FieldName)
	}
	return n, nil
}

func (f *BitField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	if f.cursor == nil {
		return nil, 0, errors.Errorf("field %q has no bit cursor attached", f.FieldName)
	}
	bits, err := f.resolveBits(ctx)
	if err != nil {
		return nil, 0, err
	}

	v, err := f.cursor.ReadBits(int(bits))
	if err != nil {
		return nil, 0, errors.Wrapf(err, "parsing bitfield %q", f.FieldName)
	}
	if f.Realign {
		if err := f.cursor.Align(); err != nil {
			return nil, 0, err
		}
	}
	return v, 0, nil
}

func (f *BitField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	if f.cursor == nil {
		return 0, errors.Errorf("field %q has no bit cursor attached", f.FieldName)
	}
	bits, err := f.resolveBits(ctx)
	if err != nil {
		return 0, err
	}
	u, ok := asUint64(value)
	if !ok {
		return 0, errors.Wrapf(dstructerr.WriteError, "field %q expects an unsigned integer, got %T", f.FieldName, value)
	}
	if err := f.cursor.WriteBits(u, int(bits)); err != nil {
		return 0, err
	}
	if f.Realign {
		if err := f.cursor.Align(); err != nil {
			return 0, err
		}
	}
	return 0, nil
}
