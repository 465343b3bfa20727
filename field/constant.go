package field

import (
	"bytes"
	"reflect"

	"github.com/pkg/errors"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/parsectx"
)

// ConstantField wraps another field and asserts that the value parsed from
// (or given to write to) the stream equals a fixed expected value: a magic
// number, a format tag, a fixed-version byte.
type ConstantField struct {
	Base
	BaseField Field
	Value     interface{}
}

// NewConstantField wraps base, checking parsed/written values against value.
func NewConstantField(name string, value interface{}, base Field) *ConstantField {
	base.SetName(name)
	return &ConstantField{Base: NewBase(name), BaseField: base, Value: value}
}

func (f *ConstantField) Len() (int64, error) {
	return f.BaseField.Len()
}

func (f *ConstantField) SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, bool, error) {
	return f.BaseField.SeekEnd(stream, ctx, offset)
}

func (f *ConstantField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	value, length, err := f.BaseField.FromStream(stream, ctx)
	if err != nil {
		return nil, 0, err
	}
	if !constantsEqual(value, f.Value) {
		return nil, 0, errors.Wrapf(dstructerr.CheckError, "constant mismatch for field %q: got %v, want %v",
			f.FieldName, value, f.Value)
	}
	return value, length, nil
}

func (f *ConstantField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	if !constantsEqual(value, f.Value) {
		return 0, errors.Wrapf(dstructerr.WriteError, "constant mismatch for field %q: got %v, want %v",
			f.FieldName, value, f.Value)
	}
	return f.BaseField.ToStream(stream, value, ctx)
}

func constantsEqual(a, b interface{}) bool {
	if ab, ok := a.([]byte); ok {
		if bb, ok := b.([]byte); ok {
			return bytes.Equal(ab, bb)
		}
	}
	return reflect.DeepEqual(a, b)
}
