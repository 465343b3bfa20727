package field

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/expr"
	"github.com/dstructgo/binstruct/parsectx"
)

// SwitchField dispatches to one of several fields depending on the value of
// an expr.Spec (usually a reference to a preceding tag/type field).
type SwitchField struct {
	Base
	On      expr.Spec
	Cases   map[interface{}]Field
	Default Field // nil to reject unmatched values
}

// NewSwitchField creates a SwitchField dispatching on the value of on.
func NewSwitchField(name string, on expr.Spec, cases map[interface{}]Field, def Field) *SwitchField {
	for k, f := range cases {
		f.SetName(fmt.Sprintf("%s.%v", name, k))
	}
	if def != nil {
		def.SetName(name + ".default")
	}
	return &SwitchField{Base: NewBase(name), On: on, Cases: cases, Default: def}
}

func (f *SwitchField) Len() (int64, error) {
	return 0, dstructerr.ImpossibleToCalculateLength
}

func (f *SwitchField) SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, bool, error) {
	return 0, false, nil
}

func (f *SwitchField) resolveCase(ctx *parsectx.Context) (Field, error) {
	v, err := f.On.Eval(ctx.Facade(nil))
	if err != nil {
		return nil, err
	}
	if target, ok := f.Cases[v]; ok {
		return target, nil
	}
	if f.Default != nil {
		return f.Default, nil
	}
	return nil, errors.Wrapf(dstructerr.ParseError, "switch field %q: no case matches %v", f.FieldName, v)
}

func (f *SwitchField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	target, err := f.resolveCase(ctx)
	if err != nil {
		return nil, 0, err
	}
	return target.FromStream(stream, ctx)
}

func (f *SwitchField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	target, err := f.resolveCase(ctx)
	if err != nil {
		return 0, err
	}
	return target.ToStream(stream, value, ctx)
}

// EnumValue is implemented by Go enum types (usually a defined integer
// type with a String method) so EnumField can recover the wire value from
// an enum member when writing.
type EnumValue interface {
	Wire() interface{}
}

// EnumMapper builds the Go-side enum representation from a decoded wire
// value, and is the inverse used when writing.
type EnumMapper interface {
	FromWire(wire interface{}) (interface{}, error)
}

// EnumField decodes BaseField's raw value into a symbolic enum
// representation via Mapper, and reverses that for writing.
type EnumField struct {
	Base
	BaseField Field
	Mapper    EnumMapper
}

// NewEnumField creates an EnumField wrapping base.
func NewEnumField(name string, base Field, mapper EnumMapper) *EnumField {
	base.SetName(name + ".inner")
	return &EnumField{Base: NewBase(name), BaseField: base, Mapper: mapper}
}

func (f *EnumField) Len() (int64, error) {
	return f.BaseField.Len()
}

func (f *EnumField) SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, bool, error) {
	return f.BaseField.SeekEnd(stream, ctx, offset)
}

func (f *EnumField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	raw, n, err := f.BaseField.FromStream(stream, ctx)
	if err != nil {
		return nil, 0, err
	}
	v, err := f.Mapper.FromWire(raw)
	if err != nil {
		return nil, 0, errors.Wrapf(dstructerr.CheckError, "field %q: %s", f.FieldName, err)
	}
	return v, n, nil
}

func (f *EnumField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	if ev, ok := value.(EnumValue); ok {
		value = ev.Wire()
	}
	return f.BaseField.ToStream(stream, value, ctx)
}
