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

// Emit writes values to raw in field order, returning the number of bytes
// written (the distance between the highest byte written and the start
// offset, matching Parse's accounting).
func (d *Definition) Emit(values map[string]interface{}, raw bstream.Stream) (int64, error) {
	_, span := d.Options.tracer().Start(context.Background(), "structure.Emit/"+d.Options.StructureName)
	defer span.End()

	n, err := d.emit(values, raw, nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if fe, ok := err.(*dstructerr.FieldError); ok {
			span.SetAttributes(attribute.String("field", fe.Path), attribute.Int64("offset", fe.Offset))
		}
	}
	return n, err
}

// EmitTo implements field.SubStructure, for use as a StructureField.
func (d *Definition) EmitTo(stream bstream.Stream, value interface{}, parent *parsectx.Context) (int64, error) {
	values, ok := value.(map[string]interface{})
	if !ok {
		return 0, errors.Wrapf(dstructerr.WriteError, "expected map[string]interface{} for nested structure, got %T", value)
	}
	return d.emit(values, stream, parent)
}

func (d *Definition) emit(values map[string]interface{}, stream bstream.Stream, parent *parsectx.Context) (int64, error) {
	if d.OnEmit != nil {
		v2, err := d.OnEmit(values)
		if err != nil {
			return 0, err
		}
		values = v2
	}

	ctx := parsectx.New(parent, false, stream, d.Options.CaptureRaw)
	if parent == nil {
		ctx.UserData = d.Options.UserData
	}

	for _, f := range d.Fields {
		if a, ok := f.(alignable); ok {
			a.SetAlignment(d.Options.Alignment)
		}
	}

	// Seed every field's raw value into the context before computing any
	// overrides, so an override on one field (e.g. a length prefix) can
	// reference another field's value regardless of declaration order.
	for _, f := range d.Fields {
		ctx.Declare(f.Name(), values[f.Name()])
	}

	facade := ctx.Facade(nil)
	for _, f := range d.Fields {
		fc := ctx.Field(f.Name())
		v, err := fc.Value()
		if err != nil {
			return 0, dstructerr.WithField(err, f.Name(), -1)
		}
		final, err := f.GetFinalValue(v, facade)
		if err != nil {
			return 0, dstructerr.WithField(err, f.Name(), -1)
		}
		fc.Set(final)
	}

	for _, chk := range d.Options.Checks {
		if !chk(facade) {
			return 0, errors.Wrapf(dstructerr.CheckError, "a check failed for %q", d.Options.StructureName)
		}
	}

	cursor := bstream.NewBitCursor(stream)
	wireBitCursor(d.Fields, cursor)

	startOffset := streamOffset(stream)
	offset := startOffset
	maxOffset := startOffset

	for i, f := range d.Fields {
		if i > 0 {
			if err := checkBitTransition(d.Fields, i-1, cursor); err != nil {
				return 0, dstructerr.WithField(err, f.Name(), offset)
			}
		}

		newOffset, err := d.seekFieldStart(f, stream, ctx, offset, startOffset, facade)
		if err != nil {
			return 0, dstructerr.WithField(err, f.Name(), offset)
		}
		offset = newOffset

		fc := ctx.Field(f.Name())
		val, err := fc.Value()
		if err != nil {
			return 0, dstructerr.WithField(err, f.Name(), offset)
		}

		written, err := f.ToStream(stream, val, ctx)
		if err != nil {
			return 0, dstructerr.WithField(err, f.Name(), offset)
		}
		fc.AddParseInfo(offset, written, val, false)

		offset += written
		if offset > maxOffset {
			maxOffset = offset
		}
	}

	if err := cursor.Align(); err != nil {
		return 0, err
	}

	return maxOffset - startOffset, nil
}

// seekFieldStart positions stream before writing f, applying the negative
// offset policy for fields whose Offset spec resolves to a negative value
// (seek-from-end) instead of delegating straight to f.SeekStart.
func (d *Definition) seekFieldStart(f field.Field, stream bstream.Stream, ctx *parsectx.Context, offset, startOffset int64, facade expr.Facade) (int64, error) {
	lf, ok := f.(field.LazyField)
	if ok && lf.OffsetSpec() != nil {
		off, resolved, err := expr.ResolveInt(lf.OffsetSpec(), facade)
		if err != nil {
			return 0, err
		}
		if resolved && off < 0 {
			switch d.Options.NegativeOffsetPolicy {
			case RequireKnownLength:
				if d.Options.KnownLength <= 0 {
					return 0, errors.Wrapf(dstructerr.WriteError,
						"field %q uses a negative offset but Options.KnownLength was not set", f.Name())
				}
				abs := d.Options.KnownLength + off
				return stream.Seek(abs, io.SeekStart)
			default:
				return 0, errors.Wrapf(dstructerr.WriteError,
					"field %q uses a negative offset, which is rejected by the default NegativeOffsetPolicy", f.Name())
			}
		}
	}
	return f.SeekStart(stream, ctx, offset-startOffset)
}
