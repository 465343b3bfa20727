// Package field implements the field runtime: the base contract every
// field type satisfies, plus the built-in field types fields.* in the
// spec this package grew from (BytesField, IntegerField, StructureField,
// ArrayField, and the rest).
package field

import (
	"github.com/pkg/errors"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/expr"
	"github.com/dstructgo/binstruct/parsectx"
)

// NotProvided is the sentinel for "no default/override was configured",
// kept distinct from a legitimate nil/zero value. Defined separately from
// parsectx.NotProvided since a field's own default can itself be nil.
var NotProvided = &struct{ name string }{"not-provided"}

// Field is the contract every field type satisfies: reading a value from a
// stream, writing one back, and reporting how many bytes it occupies when
// that's knowable without touching the stream.
type Field interface {
	// Name returns the field's name within its structure.
	Name() string
	// SetName is called by the structure engine while registering fields.
	SetName(name string)

	// SeekStart positions the stream before FromStream/ToStream is called,
	// given the relative offset reached so far. It returns the resulting
	// absolute offset.
	SeekStart(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, error)
	// SeekEnd is used only for lazy fields, to skip past a field without
	// decoding it. Returns ok=false if the field's end can't be found
	// without reading it.
	SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (newOffset int64, ok bool, err error)

	// FromStream decodes one value starting at the stream's current
	// position, and returns the value plus the number of bytes consumed.
	FromStream(stream bstream.Stream, ctx *parsectx.Context) (value interface{}, length int64, err error)
	// ToStream encodes value to the stream and returns the number of bytes
	// written.
	ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (length int64, err error)

	// Len reports the field's byte length if it is known without reading
	// the stream, or returns dstructerr.ImpossibleToCalculateLength.
	Len() (int64, error)

	// GetDefault resolves this field's configured default, if any.
	GetDefault(f expr.Facade) (value interface{}, ok bool, err error)
	// GetFinalValue applies this field's override (if any) to value,
	// before it is written to the stream.
	GetFinalValue(value interface{}, f expr.Facade) (interface{}, error)
	// GetInitialValue applies this field's decoder (if any) to value,
	// after it has been read from the stream.
	GetInitialValue(value interface{}, f expr.Facade) (interface{}, error)
}

// LazyField is implemented by any Field whose laziness and offset the
// structure engine needs to inspect during its pre-population pass. Base
// implements it, so every built-in field type does too.
type LazyField interface {
	Field
	Lazy() bool
	OffsetSpec() expr.Spec
}

// Overridable is implemented by any Field whose Override the structure
// engine can install after construction. Base implements it, so every
// built-in field type does too. The engine uses this to auto-install an
// override on a field referenced by another field's length/count spec.
type Overridable interface {
	Field
	HasOverride() bool
	SetOverride(v interface{})
}

// LengthSource is implemented by field types whose decoded value has a
// derivable size (BytesField's byte length, ArrayField's element count).
// When such a field's size spec is a FieldRef, the structure engine installs
// an auto-override on the referenced field so an emit with no explicit value
// for it picks up the derived size, per the length/count auto-override rule.
type LengthSource interface {
	Field
	// SizeSpec returns the spec driving this field's size (BytesField.Length,
	// ArrayField.Count), or nil if the field has none.
	SizeSpec() expr.Spec
	// DerivedSize computes the size implied by value, e.g. len(value) for a
	// []byte or []interface{}.
	DerivedSize(value interface{}) (interface{}, error)
}

// DecoderFunc post-processes a raw decoded value, e.g. bytes -> string.
type DecoderFunc func(f expr.Facade, value interface{}) (interface{}, error)

// OverrideFunc computes the value actually written for a field, e.g. a
// length field recomputed from a sibling's runtime length. Returning value
// unchanged is the common case.
type OverrideFunc func(f expr.Facade, value interface{}) (interface{}, error)

// Base is embedded by every built-in field type. It carries the attributes
// common to all fields (name, default, decoder, override, offset, skip,
// lazy) and their resolution logic; concrete field types add FromStream,
// ToStream and Len.
type Base struct {
	FieldName string

	Default      interface{} // NotProvided if unset
	Decoder      DecoderFunc
	Override     interface{} // NotProvided if unset; either a static value or an OverrideFunc
	Offset       expr.Spec
	Skip         expr.Spec
	IsLazy       bool
	alignment    int64 // 0 means "no alignment", inherited from structure.Options
}

// NewBase constructs a Base with no default/override set.
func NewBase(name string) Base {
	return Base{FieldName: name, Default: NotProvided, Override: NotProvided}
}

func (b *Base) Name() string       { return b.FieldName }
func (b *Base) SetName(name string) { b.FieldName = name }

// SetAlignment is called by the structure engine to propagate
// Options.Alignment to fields that don't set their own Offset/Skip.
func (b *Base) SetAlignment(a int64) { b.alignment = a }

// Lazy reports whether this field was configured to defer its decode until
// first access.
func (b *Base) Lazy() bool { return b.IsLazy }

// OffsetSpec returns the field's configured Offset, or nil if unset.
func (b *Base) OffsetSpec() expr.Spec { return b.Offset }

func (b *Base) HasDefault() bool { return b.Default != NotProvided }

func (b *Base) GetDefault(f expr.Facade) (interface{}, bool, error) {
	if !b.HasDefault() {
		return nil, false, nil
	}
	v, err := resolveCallableOrSpec(b.Default, f)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (b *Base) HasDecoder() bool { return b.Decoder != nil }

func (b *Base) GetInitialValue(value interface{}, f expr.Facade) (interface{}, error) {
	if !b.HasDecoder() {
		return value, nil
	}
	return b.Decoder(f, value)
}

func (b *Base) HasOverride() bool { return b.Override != NotProvided }

// SetOverride installs an override, e.g. an auto-derived length/count
// override wired in by the structure engine. It does not check whether one
// is already set; callers that must not clobber an explicit override should
// check HasOverride first.
func (b *Base) SetOverride(v interface{}) { b.Override = v }

func (b *Base) GetFinalValue(value interface{}, f expr.Facade) (interface{}, error) {
	if !b.HasOverride() {
		return value, nil
	}
	if fn, ok := b.Override.(OverrideFunc); ok {
		return fn(f, value)
	}
	return b.Override, nil
}

// SeekStart implements the default positioning rule shared by all fields:
// explicit Offset wins, then Skip, then structure-level alignment, then
// "stay where we are".
func (b *Base) SeekStart(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, error) {
	facade := ctx.Facade(nil)

	if b.Offset != nil {
		off, ok, err := expr.ResolveInt(b.Offset, facade)
		if err != nil {
			return 0, err
		}
		if ok {
			if off < 0 {
				return seekRelativeToEnd(stream, off)
			}
			return seekAbs(stream, off)
		}
	} else if b.Skip != nil {
		skip, ok, err := expr.ResolveInt(b.Skip, facade)
		if err != nil {
			return 0, err
		}
		if ok {
			return seekCur(stream, skip)
		}
	} else if b.alignment > 0 {
		if offset%b.alignment != 0 {
			pad := b.alignment - (offset % b.alignment)
			return seekCur(stream, pad)
		}
	}

	if stream.Seekable() {
		return stream.Tell()
	}
	return offset, nil
}

// DefaultSeekEnd is the default SeekEnd implementation: ask the field for its static Len
// and skip that many bytes, or report ok=false if that's not knowable.
func DefaultSeekEnd(f Field, stream bstream.Stream, offset int64) (int64, bool, error) {
	n, err := f.Len()
	if err != nil {
		if errors.Is(err, dstructerr.ImpossibleToCalculateLength) {
			return 0, false, nil
		}
		return 0, false, err
	}
	newOffset, err := seekCur(stream, n)
	if err != nil {
		return 0, false, err
	}
	return newOffset, true, nil
}

func seekAbs(stream bstream.Stream, offset int64) (int64, error) {
	if !stream.Seekable() {
		return offset, nil
	}
	return stream.Seek(offset, 0)
}

func seekCur(stream bstream.Stream, delta int64) (int64, error) {
	if !stream.Seekable() {
		return 0, dstructerr.ErrNotSeekable
	}
	return stream.Seek(delta, 1)
}

func seekRelativeToEnd(stream bstream.Stream, offset int64) (int64, error) {
	if !stream.Seekable() {
		return offset, nil
	}
	return stream.Seek(offset, 2)
}

// resolveCallableOrSpec resolves v, which may be an expr.Spec, an
// OverrideFunc/DecoderFunc-shaped thunk, or a plain value.
func resolveCallableOrSpec(v interface{}, f expr.Facade) (interface{}, error) {
	if spec, ok := v.(expr.Spec); ok {
		return spec.Eval(f)
	}
	if fn, ok := v.(func(expr.Facade) (interface{}, error)); ok {
		return fn(f)
	}
	return v, nil
}
