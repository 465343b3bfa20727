package field

import (
	"github.com/pkg/errors"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/parsectx"
)

// structCode describes one element of a packed-struct format string, in the
// style of Python's struct module: a byte-order prefix followed by a run of
// <count><code> pairs (b/B int8, h/H int16, i/I int32, q/Q int64, s bytes,
// x pad byte).
type structCode struct {
	code   byte
	count  int
	signed bool
	width  int
}

// StructField parses a whole packed-struct format string at once and
// produces a []interface{} of the decoded fields (in Python, a tuple). It
// exists for wire formats defined as a single C struct rather than a
// sequence of individually-named fields.
type StructField struct {
	Base
	Format string
	Order  ByteOrder
	codes  []structCode
}

// NewStructField parses format (e.g. ">4sHI") and builds a StructField. The
// leading byte-order character, if present (< little, > or ! big, = native
// treated as big), sets Order; native alignment/padding rules are not
// implemented, only tight packing.
func NewStructField(name, format string) (*StructField, error) {
	f := &StructField{Base: NewBase(name), Format: format, Order: BigEndian}

	i := 0
	if len(format) > 0 {
		switch format[0] {
		case '<':
			f.Order = LittleEndian
			i = 1
		case '>', '!':
			f.Order = BigEndian
			i = 1
		case '=', '@':
			f.Order = BigEndian
			i = 1
		}
	}

	for i < len(format) {
		count := 0
		hasCount := false
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			count = count*10 + int(format[i]-'0')
			hasCount = true
			i++
		}
		if i >= len(format) {
			return nil, errors.Errorf("struct format %q ends with a bare count", format)
		}
		if !hasCount {
			count = 1
		}

		code := format[i]
		i++

		width, signed, ok := structCodeWidth(code)
		if !ok {
			return nil, errors.Errorf("struct format %q: unsupported code %q", format, code)
		}
		f.codes = append(f.codes, structCode{code: code, count: count, signed: signed, width: width})
	}

	return f, nil
}

func structCodeWidth(code byte) (width int, signed bool, ok bool) {
	switch code {
	case 'b':
		return 1, true, true
	case 'B', 'x':
		return 1, false, true
	case 'h':
		return 2, true, true
	case 'H':
		return 2, false, true
	case 'i', 'l':
		return 4, true, true
	case 'I', 'L':
		return 4, false, true
	case 'q':
		return 8, true, true
	case 'Q':
		return 8, false, true
	case 's':
		return 1, false, true
	default:
		return 0, false, false
	}
}

func (f *StructField) Len() (int64, error) {
	var total int64
	for _, c := range f.codes {
		total += int64(c.width * c.count)
	}
	return total, nil
}

func (f *StructField) SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, bool, error) {
	return DefaultSeekEnd(f, stream, offset)
}

func (f *StructField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	var result []interface{}
	var total int64

	for _, c := range f.codes {
		switch c.code {
		case 'x':
			buf := make([]byte, c.count)
			if err := bstream.ReadFull(stream, buf); err != nil {
				return nil, 0, err
			}
			total += int64(c.count)
		case 's':
			buf := make([]byte, c.count)
			if err := bstream.ReadFull(stream, buf); err != nil {
				return nil, 0, err
			}
			result = append(result, buf)
			total += int64(c.count)
		default:
			intField := NewIntegerField(f.FieldName, c.width, c.signed, f.Order)
			for i := 0; i < c.count; i++ {
				v, n, err := intField.FromStream(stream, ctx)
				if err != nil {
					return nil, 0, err
				}
				result = append(result, v)
				total += n
			}
		}
	}

	return result, total, nil
}

func (f *StructField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	values, ok := value.([]interface{})
	if !ok {
		return 0, errors.Wrapf(dstructerr.WriteError, "field %q expects []interface{}, got %T", f.FieldName, value)
	}

	var total int64
	vi := 0
	for _, c := range f.codes {
		switch c.code {
		case 'x':
			buf := make([]byte, c.count)
			if err := bstream.WriteFull(stream, buf); err != nil {
				return 0, err
			}
			total += int64(c.count)
		case 's':
			if vi >= len(values) {
				return 0, errors.Wrapf(dstructerr.WriteError, "field %q: too few values for format %q", f.FieldName, f.Format)
			}
			b, ok := values[vi].([]byte)
			if !ok {
				return 0, errors.Wrapf(dstructerr.WriteError, "field %q: expected []byte for %q segment", f.FieldName, "s")
			}
			vi++
			padded := make([]byte, c.count)
			copy(padded, b)
			if err := bstream.WriteFull(stream, padded); err != nil {
				return 0, err
			}
			total += int64(c.count)
		default:
			intField := NewIntegerField(f.FieldName, c.width, c.signed, f.Order)
			for i := 0; i < c.count; i++ {
				if vi >= len(values) {
					return 0, errors.Wrapf(dstructerr.WriteError, "field %q: too few values for format %q", f.FieldName, f.Format)
				}
				n, err := intField.ToStream(stream, values[vi], ctx)
				if err != nil {
					return 0, err
				}
				vi++
				total += n
			}
		}
	}

	return total, nil
}

// The following are convenience aliases matching common packed-struct field
// names, each a thin IntegerField constructor.

// CharField reads/writes a single signed byte.
func CharField(name string) *IntegerField { return NewIntegerField(name, 1, true, BigEndian) }

// UnsignedByteField reads/writes a single unsigned byte.
func UnsignedByteField(name string) *IntegerField { return NewIntegerField(name, 1, false, BigEndian) }

// ShortField reads/writes a big-endian signed 16-bit integer.
func ShortField(name string) *IntegerField { return NewIntegerField(name, 2, true, BigEndian) }

// UnsignedShortField reads/writes a big-endian unsigned 16-bit integer.
func UnsignedShortField(name string) *IntegerField { return NewIntegerField(name, 2, false, BigEndian) }

// IntField reads/writes a big-endian signed 32-bit integer.
func IntField(name string) *IntegerField { return NewIntegerField(name, 4, true, BigEndian) }

// UnsignedIntField reads/writes a big-endian unsigned 32-bit integer.
func UnsignedIntField(name string) *IntegerField { return NewIntegerField(name, 4, false, BigEndian) }

// LongField reads/writes a big-endian signed 64-bit integer.
func LongField(name string) *IntegerField { return NewIntegerField(name, 8, true, BigEndian) }

// UnsignedLongField reads/writes a big-endian unsigned 64-bit integer.
func UnsignedLongField(name string) *IntegerField { return NewIntegerField(name, 8, false, BigEndian) }
