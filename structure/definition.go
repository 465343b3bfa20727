package structure

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/expr"
	"github.com/dstructgo/binstruct/field"
	"github.com/dstructgo/binstruct/parsectx"
)

// Definition is an ordered list of fields plus the options that govern how
// they are parsed from, or emitted to, a stream. It is the structure-level
// counterpart to a single field: StructureField wraps one as a nested
// field, and the top-level Parse/Emit entry points use one directly.
type Definition struct {
	Fields  []field.Field
	Options Options

	// OnParsed runs once all fields have been read and decoded, and may
	// adjust the resulting value map before it's handed back to the
	// caller (e.g. deriving a field from others, or validating state that
	// isn't expressible as a single Check).
	OnParsed func(values map[string]interface{}) (map[string]interface{}, error)
	// OnEmit runs once, before any field is written, and may adjust the
	// value map supplied for emitting (e.g. computing a checksum field
	// from the rest).
	OnEmit func(values map[string]interface{}) (map[string]interface{}, error)
}

// New creates a Definition over fields with the given options.
func New(fields []field.Field, opts Options) *Definition {
	wireAutoOverrides(fields)
	return &Definition{Fields: fields, Options: opts}
}

// wireAutoOverrides installs the implicit override a FieldRef-driven length
// or count spec implies on the field it references: unless that field
// already carries an explicit override, its value is derived from the
// referencing field's own value whenever the caller leaves it unset. This
// lets a length-prefixed structure be declared with the length field left
// bare (length=Ref("length") on the content field, no Override on the
// length field itself) and still emit the correct length.
func wireAutoOverrides(fields []field.Field) {
	byName := make(map[string]field.Field, len(fields))
	for _, f := range fields {
		byName[f.Name()] = f
	}
	for _, f := range fields {
		ls, ok := f.(field.LengthSource)
		if !ok {
			continue
		}
		spec := ls.SizeSpec()
		if spec == nil {
			continue
		}
		ref, ok := spec.(expr.FieldRef)
		if !ok {
			continue
		}
		target, ok := byName[ref.Name]
		if !ok {
			continue
		}
		ov, ok := target.(field.Overridable)
		if !ok || ov.HasOverride() {
			continue
		}
		source := ls
		sourceName := f.Name()
		ov.SetOverride(field.OverrideFunc(func(fc expr.Facade, current interface{}) (interface{}, error) {
			if current != nil {
				return current, nil
			}
			v, err := fc.Get(sourceName)
			if err != nil {
				return nil, err
			}
			return source.DerivedSize(v)
		}))
	}
}

// StaticLen sums each field's Len(), failing if any field's length can't be
// known without reading the stream.
func (d *Definition) StaticLen() (int64, error) {
	var total int64
	for _, f := range d.Fields {
		n, err := f.Len()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// LazyValue is handed back in place of a field's value when that field was
// never forced during Parse. Call Force to read it from the stream.
type LazyValue struct {
	fc *parsectx.FieldContext
}

// Force reads and returns the field's value, decoding it from the stream
// position it was found at.
func (l *LazyValue) Force() (interface{}, error) {
	return l.fc.Force()
}

type fieldDecoder struct {
	f field.Field
}

func (d fieldDecoder) DecodeFromStream(ctx *parsectx.Context) (interface{}, int64, error) {
	return d.f.FromStream(ctx.Stream, ctx)
}

type alignable interface {
	SetAlignment(int64)
}

type decoderAware interface {
	HasDecoder() bool
}

func streamOffset(stream bstream.Stream) int64 {
	if !stream.Seekable() {
		return 0
	}
	pos, err := stream.Tell()
	if err != nil {
		return 0
	}
	return pos
}

// Parse reads a Definition from the top of raw.
func (d *Definition) Parse(raw bstream.Stream) (map[string]interface{}, int64, error) {
	_, span := d.Options.tracer().Start(context.Background(), "structure.Parse/"+d.Options.StructureName)
	defer span.End()

	values, n, err := d.parse(raw, nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if fe, ok := err.(*dstructerr.FieldError); ok {
			span.SetAttributes(attribute.String("field", fe.Path), attribute.Int64("offset", fe.Offset))
		}
	}
	return values, n, err
}

// ParseFrom implements field.SubStructure, for use as a StructureField.
func (d *Definition) ParseFrom(stream bstream.Stream, parent *parsectx.Context) (interface{}, int64, error) {
	values, n, err := d.parse(stream, parent)
	return values, n, err
}

func (d *Definition) parse(stream bstream.Stream, parent *parsectx.Context) (map[string]interface{}, int64, error) {
	ctx := parsectx.New(parent, false, stream, d.Options.CaptureRaw)
	if parent == nil {
		ctx.UserData = d.Options.UserData
	}
	for _, f := range d.Fields {
		ctx.Declare(f.Name(), parsectx.NotProvided)
	}

	for _, f := range d.Fields {
		if a, ok := f.(alignable); ok {
			a.SetAlignment(d.Options.Alignment)
		}
	}
	cursor := bstream.NewBitCursor(stream)
	wireBitCursor(d.Fields, cursor)

	startOffset := streamOffset(stream)
	offset := startOffset
	maxOffset := startOffset

	// Pre-population pass: fields with a known constant, lazy offset are
	// registered up front so later fields can reference them even though
	// they appear earlier in the byte stream than where we currently are.
	for _, f := range d.Fields {
		lf, ok := f.(field.LazyField)
		if !ok || !lf.Lazy() || lf.OffsetSpec() == nil {
			continue
		}
		if c, isConst := lf.OffsetSpec().(expr.Const); isConst {
			if off, isInt := constInt64(c.Value); isInt {
				abs := off
				if off < 0 {
					if !stream.Seekable() {
						continue
					}
					resolved, err := stream.Seek(off, io.SeekEnd)
					if err != nil {
						return nil, 0, dstructerr.WithField(err, f.Name(), off)
					}
					abs = resolved
					if _, err := stream.Seek(startOffset, io.SeekStart); err != nil {
						return nil, 0, dstructerr.WithField(err, f.Name(), off)
					}
				}
				fc := ctx.Field(f.Name())
				fc.MarkLazy(fieldDecoder{f}, abs, -1)
				d.Options.logger().Printf("structure %q: pre-populated lazy field %q at constant offset %d (spec offset %d)", d.Options.StructureName, f.Name(), abs, off)
			}
		}
	}

	for i, f := range d.Fields {
		if i > 0 {
			if err := checkBitTransition(d.Fields, i-1, cursor); err != nil {
				return nil, 0, dstructerr.WithField(err, f.Name(), offset)
			}
		}

		newOffset, err := f.SeekStart(stream, ctx, offset-startOffset)
		if err != nil {
			return nil, 0, dstructerr.WithField(err, f.Name(), offset)
		}
		offset = newOffset

		fc := ctx.Field(f.Name())

		if fc.Resolved() {
			if _, err := stream.Seek(fc.Length, io.SeekCurrent); err != nil {
				return nil, 0, dstructerr.WithField(err, f.Name(), offset)
			}
			offset += fc.Length
			if offset > maxOffset {
				maxOffset = offset
			}
			continue
		}

		lf, isLazyField := f.(field.LazyField)
		isLazy := isLazyField && lf.Lazy()

		needLazyOffset := false
		lazyOffsetKnown := false
		var lazyOffset int64

		if isLazy {
			var next field.Field
			if i+1 < len(d.Fields) {
				next = d.Fields[i+1]
			}
			if next != nil {
				nlf, ok := next.(field.LazyField)
				needLazyOffset = !ok || nlf.OffsetSpec() == nil
			}
			if needLazyOffset {
				newOff, ok, err := f.SeekEnd(stream, ctx, offset-startOffset)
				if err != nil {
					return nil, 0, dstructerr.WithField(err, f.Name(), offset)
				}
				lazyOffsetKnown = ok
				lazyOffset = newOff
			}
		}

		if !isLazy || (needLazyOffset && !lazyOffsetKnown) {
			value, consumed, err := f.FromStream(stream, ctx)
			if err != nil {
				return nil, 0, dstructerr.WithField(err, f.Name(), offset)
			}
			fc.AddParseInfo(offset, consumed, value, false)
			offset += consumed
			if offset > maxOffset {
				maxOffset = offset
			}
			continue
		}

		length := int64(-1)
		if lazyOffsetKnown {
			length = lazyOffset - offset
		}
		fc.MarkLazy(fieldDecoder{f}, offset, length)
		d.Options.logger().Printf("structure %q: skipping lazy field %q at offset %d (length known: %v)", d.Options.StructureName, f.Name(), offset, lazyOffsetKnown)
		if lazyOffsetKnown {
			offset = lazyOffset
			if offset > maxOffset {
				maxOffset = offset
			}
		}
	}

	facade := ctx.Facade(nil)
	values := make(map[string]interface{}, len(d.Fields))
	for _, f := range d.Fields {
		fc := ctx.Field(f.Name())

		hasDecoder := false
		if da, ok := f.(decoderAware); ok {
			hasDecoder = da.HasDecoder()
		}

		if !fc.Resolved() && !hasDecoder {
			values[f.Name()] = &LazyValue{fc: fc}
			continue
		}

		v, err := fc.Value()
		if err != nil {
			return nil, 0, dstructerr.WithField(err, f.Name(), -1)
		}
		v2, err := f.GetInitialValue(v, facade)
		if err != nil {
			return nil, 0, dstructerr.WithField(err, f.Name(), -1)
		}
		values[f.Name()] = v2
	}

	if d.OnParsed != nil {
		v2, err := d.OnParsed(values)
		if err != nil {
			return nil, 0, err
		}
		values = v2
	}

	ctx.Done = true

	for _, chk := range d.Options.Checks {
		if !chk(facade) {
			return nil, 0, errors.Wrapf(dstructerr.CheckError, "a check failed for %q", d.Options.StructureName)
		}
	}

	return values, maxOffset - startOffset, nil
}

func constInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case int32:
		return int64(t), true
	default:
		return 0, false
	}
}

// checkBitTransition asserts that fields[i], if a non-realigning BitField
// immediately followed by a non-bit field, left the bit cursor byte-aligned.
// A run of BitFields whose total width isn't a multiple of 8 must either end
// in a field with Realign set or be followed by another BitField; otherwise
// there is no well-defined byte offset for whatever comes next.
func checkBitTransition(fields []field.Field, i int, cursor *bstream.BitCursor) error {
	bf, ok := fields[i].(*field.BitField)
	if !ok || bf.Realign {
		return nil
	}
	if i+1 >= len(fields) {
		return nil
	}
	if _, nextIsBit := fields[i+1].(*field.BitField); nextIsBit {
		return nil
	}
	if !cursor.Aligned() {
		return errors.Wrapf(dstructerr.ImpossibleToCalculateLength,
			"bitfield %q is not byte-aligned before field %q", fields[i].Name(), fields[i+1].Name())
	}
	return nil
}

func wireBitCursor(fields []field.Field, cursor *bstream.BitCursor) {
	for _, f := range fields {
		if bf, ok := f.(*field.BitField); ok {
			bf.SetCursor(cursor)
		}
	}
}
