package field

import (
	"github.com/pkg/errors"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/expr"
	"github.com/dstructgo/binstruct/parsectx"
)

// ArrayField repeats BaseField, either a fixed/dependent Count times, or
// until Length bytes have been consumed, or (if neither is set) until the
// stream is exhausted.
type ArrayField struct {
	Base
	BaseField Field
	Count     expr.Spec // number of elements
	Length    expr.Spec // number of bytes, mutually exclusive with Count
}

// NewCountArrayField creates an ArrayField that reads count elements.
func NewCountArrayField(name string, base Field, count expr.Spec) *ArrayField {
	base.SetName(name + ".inner")
	return &ArrayField{Base: NewBase(name), BaseField: base, Count: count}
}

// NewLengthArrayField creates an ArrayField that reads until length bytes
// have been consumed by repeated BaseField reads.
func NewLengthArrayField(name string, base Field, length expr.Spec) *ArrayField {
	base.SetName(name + ".inner")
	return &ArrayField{Base: NewBase(name), BaseField: base, Length: length}
}

func (f *ArrayField) Len() (int64, error) {
	if c, ok := f.Count.(expr.Const); ok {
		if n, ok := asInt64(c.Value); ok {
			elemLen, err := f.BaseField.Len()
			if err != nil {
				return 0, err
			}
			return n * elemLen, nil
		}
	}
	if c, ok := f.Length.(expr.Const); ok {
		if n, ok := asInt64(c.Value); ok {
			return n, nil
		}
	}
	return 0, dstructerr.ImpossibleToCalculateLength
}

// SizeSpec implements LengthSource.
func (f *ArrayField) SizeSpec() expr.Spec { return f.Count }

// DerivedSize implements LengthSource.
func (f *ArrayField) DerivedSize(value interface{}) (interface{}, error) {
	v, ok := value.([]interface{})
	if !ok {
		return nil, errors.Wrapf(dstructerr.WriteError, "field %q expects []interface{} to derive a count from, got %T", f.FieldName, value)
	}
	return uint64(len(v)), nil
}

func (f *ArrayField) SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, bool, error) {
	if f.Length != nil {
		n, ok, err := expr.ResolveInt(f.Length, ctx.Facade(nil))
		if err != nil || !ok {
			return 0, false, err
		}
		newOffset, err := seekCur(stream, n)
		if err != nil {
			return 0, false, err
		}
		return newOffset, true, nil
	}
	return 0, false, nil
}

func (f *ArrayField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	var result []interface{}
	var totalConsumed int64

	facade := ctx.Facade(nil)

	switch {
	case f.Count != nil:
		count, ok, err := expr.ResolveInt(f.Count, facade)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, errors.Wrapf(dstructerr.ParseError, "array field %q has no resolvable count", f.FieldName)
		}
		for i := int64(0); i < count; i++ {
			v, n, err := f.BaseField.FromStream(stream, ctx)
			if err != nil {
				return nil, 0, errors.Wrapf(err, "parsing element %d of array field %q", i, f.FieldName)
			}
			result = append(result, v)
			totalConsumed += n
		}

	case f.Length != nil:
		length, ok, err := expr.ResolveInt(f.Length, facade)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, errors.Wrapf(dstructerr.ParseError, "array field %q has no resolvable length", f.FieldName)
		}
		sub, err := bstream.NewSubstream(stream, length)
		if err != nil {
			return nil, 0, err
		}
		if length < 0 {
			// A negative length means unbounded: read elements until the
			// stream (or enclosing bound) runs dry.
			for {
				v, n, err := f.BaseField.FromStream(sub, ctx)
				if err != nil {
					if errors.Is(err, dstructerr.StreamExhausted) {
						break
					}
					return nil, 0, errors.Wrapf(err, "parsing element of array field %q", f.FieldName)
				}
				result = append(result, v)
				totalConsumed += n
			}
		} else {
			for totalConsumed < length {
				v, n, err := f.BaseField.FromStream(sub, ctx)
				if err != nil {
					return nil, 0, errors.Wrapf(err, "parsing element of array field %q", f.FieldName)
				}
				result = append(result, v)
				totalConsumed += n
			}
		}

	default:
		for {
			v, n, err := f.BaseField.FromStream(stream, ctx)
			if err != nil {
				if errors.Is(err, dstructerr.StreamExhausted) {
					break
				}
				return nil, 0, err
			}
			result = append(result, v)
			totalConsumed += n
		}
	}

	return result, totalConsumed, nil
}

func (f *ArrayField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	values, ok := value.([]interface{})
	if !ok {
		return 0, errors.Wrapf(dstructerr.WriteError, "field %q expects []interface{}, got %T", f.FieldName, value)
	}

	var total int64
	for i, v := range values {
		n, err := f.BaseField.ToStream(stream, v, ctx)
		if err != nil {
			return 0, errors.Wrapf(err, "writing element %d of array field %q", i, f.FieldName)
		}
		total += n
	}
	return total, nil
}

// ConditionalField parses/emits BaseField only if Condition is true;
// otherwise it produces a nil value without touching the stream.
type ConditionalField struct {
	Base
	BaseField Field
	Condition expr.Spec
}

// NewConditionalField creates a ConditionalField.
func NewConditionalField(name string, base Field, condition expr.Spec) *ConditionalField {
	base.SetName(name + ".inner")
	return &ConditionalField{Base: NewBase(name), BaseField: base, Condition: condition}
}

func (f *ConditionalField) Len() (int64, error) {
	return f.BaseField.Len()
}

func (f *ConditionalField) SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, bool, error) {
	return 0, false, nil
}

func (f *ConditionalField) evalCondition(ctx *parsectx.Context) (bool, error) {
	v, err := f.Condition.Eval(ctx.Facade(nil))
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Errorf("condition for field %q did not evaluate to bool", f.FieldName)
	}
	return b, nil
}

func (f *ConditionalField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	ok, err := f.evalCondition(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, nil
	}
	return f.BaseField.FromStream(stream, ctx)
}

func (f *ConditionalField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	ok, err := f.evalCondition(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return f.BaseField.ToStream(stream, value, ctx)
}
