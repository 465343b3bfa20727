package field

import (
	"github.com/pkg/errors"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/parsectx"
)

// StringField is a BytesField that decodes to/from a Go string instead of
// []byte, optionally trimming a fixed set of padding bytes off the end
// (common for fixed-width C-style string fields).
type StringField struct {
	*BytesField
	Encoding string // informational; this runtime treats all strings as raw bytes
	Padding  byte
	HasPad   bool
}

// NewStringField creates a fixed-length StringField.
func NewStringField(name string, length int64) *StringField {
	return &StringField{BytesField: NewBytesField(name, length)}
}

// WithPadding configures a trailing pad byte to strip from parsed values and
// to refill to Length on write.
func (f *StringField) WithPadding(pad byte) *StringField {
	f.Padding = pad
	f.HasPad = true
	return f
}

func (f *StringField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	v, n, err := f.BytesField.FromStream(stream, ctx)
	if err != nil {
		return nil, 0, err
	}
	b := v.([]byte)
	if f.HasPad {
		end := len(b)
		for end > 0 && b[end-1] == f.Padding {
			end--
		}
		b = b[:end]
	}
	return string(b), n, nil
}

func (f *StringField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	s, ok := value.(string)
	if !ok {
		return 0, errors.Wrapf(dstructerr.WriteError, "field %q expects string, got %T", f.FieldName, value)
	}
	b := []byte(s)

	if f.HasPad {
		length, ok, err := f.resolveLength(ctx)
		if err != nil {
			return 0, err
		}
		if ok && int64(len(b)) < length {
			padded := make([]byte, length)
			copy(padded, b)
			for i := len(b); i < int(length); i++ {
				padded[i] = f.Padding
			}
			b = padded
		}
	}
	return f.BytesField.ToStream(stream, b, ctx)
}
