package structure

import (
	"bytes"
	"testing"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/expr"
	"github.com/dstructgo/binstruct/field"
)

func lengthPrefixedDefinition() *Definition {
	lengthField := field.NewIntegerField("length", 4, false, field.BigEndian)
	dataField := field.NewBytesField("data", 0)
	dataField.Length = expr.Ref("length")

	lengthField.Override = field.OverrideFunc(func(f expr.Facade, v interface{}) (interface{}, error) {
		data, err := f.Get("data")
		if err != nil {
			return v, nil
		}
		return uint64(len(data.([]byte))), nil
	})

	return New([]field.Field{lengthField, dataField}, Options{StructureName: "framed"})
}

func TestDefinitionParseDependentLength(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		length uint64
		body   string
	}{
		{"short body", append([]byte{0, 0, 0, 5}, []byte("hello")...), 5, "hello"},
		{"empty body", []byte{0, 0, 0, 0}, 0, ""},
	}

	for _, test := range tests {
		def := lengthPrefixedDefinition()
		stream := bstream.New(bytes.NewReader(test.data))
		values, n, err := def.Parse(stream)
		if err != nil {
			t.Errorf("Test(%s): Parse() error = %v", test.name, err)
			continue
		}
		if values["length"] != test.length {
			t.Errorf("Test(%s): length = %v, want %v", test.name, values["length"], test.length)
		}
		if string(values["data"].([]byte)) != test.body {
			t.Errorf("Test(%s): data = %q, want %q", test.name, values["data"], test.body)
		}
		wantN := int64(4 + len(test.body))
		if n != wantN {
			t.Errorf("Test(%s): Parse() consumed %d, want %d", test.name, n, wantN)
		}
	}
}

func TestDefinitionEmitDependentLength(t *testing.T) {
	def := lengthPrefixedDefinition()
	values := map[string]interface{}{
		"length": uint64(0), // overridden from data's real length
		"data":   []byte("world"),
	}

	var buf bytes.Buffer
	stream := bstream.New(&buf)
	n, err := def.Emit(values, stream)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	want := append([]byte{0, 0, 0, 5}, []byte("world")...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Emit() wrote %v, want %v", buf.Bytes(), want)
	}
	if n != int64(len(want)) {
		t.Errorf("Emit() = %d, want %d", n, len(want))
	}
}

func TestDefinitionEmitAutoOverrideLength(t *testing.T) {
	// The literal declarative form: no explicit Override anywhere. The
	// length field's value is derived from data's length automatically
	// because data's Length spec is a FieldRef naming it.
	lengthField := field.NewIntegerField("length", 4, false, field.BigEndian)
	dataField := field.NewBytesField("data", 0)
	dataField.Length = expr.Ref("length")

	def := New([]field.Field{lengthField, dataField}, Options{StructureName: "autoframed"})

	values := map[string]interface{}{
		"data": []byte("world"),
	}

	var buf bytes.Buffer
	stream := bstream.New(&buf)
	n, err := def.Emit(values, stream)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	want := append([]byte{0, 0, 0, 5}, []byte("world")...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Emit() wrote %v, want %v", buf.Bytes(), want)
	}
	if n != int64(len(want)) {
		t.Errorf("Emit() = %d, want %d", n, len(want))
	}
}

func TestDefinitionEmitAutoOverrideExplicitValueWins(t *testing.T) {
	// A caller-supplied value for the referenced field is honored even
	// though it's "wrong" relative to data -- the auto-override only
	// fills in when the caller leaves the field unset.
	lengthField := field.NewIntegerField("length", 4, false, field.BigEndian)
	dataField := field.NewBytesField("data", 0)
	dataField.Length = expr.Ref("length")

	def := New([]field.Field{lengthField, dataField}, Options{StructureName: "autoframed2"})

	values := map[string]interface{}{
		"length": uint64(2),
		"data":   []byte("world"),
	}

	var buf bytes.Buffer
	stream := bstream.New(&buf)
	if _, err := def.Emit(values, stream); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	want := append([]byte{0, 0, 0, 2}, []byte("world")...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Emit() wrote %v, want %v", buf.Bytes(), want)
	}
}

func TestDefinitionEmitAutoOverrideArrayCount(t *testing.T) {
	// ArrayField's own auto-override clause: a count field referencing an
	// array by FieldRef picks up the array's element count.
	countField := field.NewIntegerField("count", 1, false, field.BigEndian)
	elem := field.NewIntegerField("elems.inner", 1, false, field.BigEndian)
	arr := field.NewCountArrayField("elems", elem, expr.Ref("count"))

	def := New([]field.Field{countField, arr}, Options{StructureName: "autocounted"})

	values := map[string]interface{}{
		"elems": []interface{}{uint64(1), uint64(2), uint64(3)},
	}

	var buf bytes.Buffer
	stream := bstream.New(&buf)
	if _, err := def.Emit(values, stream); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	want := []byte{3, 1, 2, 3}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Emit() wrote %v, want %v", buf.Bytes(), want)
	}
}

func TestDefinitionLazyNegativeConstantOffset(t *testing.T) {
	// A lazily-parsed field at a negative constant offset (seek from end)
	// is pre-populated at the resolved absolute offset, not the raw
	// negative value, so Force() can actually seek to it.
	n := field.NewIntegerField("n", 1, false, field.BigEndian)
	n.Offset = expr.C(int64(-1))
	n.IsLazy = true

	content := field.NewBytesField("content", 0)
	content.Length = expr.Ref("n")

	def := New([]field.Field{content, n}, Options{StructureName: "tailcounted"})

	data := []byte("blahblah\x04")
	stream := bstream.New(bytes.NewReader(data))
	values, _, err := def.Parse(stream)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := string(values["content"].([]byte)); got != "blah" {
		t.Errorf("content = %q, want %q", got, "blah")
	}

	// content's length reference forces n's decode during parsing, so by
	// the time values are assembled n is already resolved rather than
	// still lazy.
	if values["n"] != uint64(4) {
		t.Errorf("n = %v, want 4", values["n"])
	}
}

func TestDefinitionChecksFail(t *testing.T) {
	lengthField := field.NewIntegerField("v", 1, false, field.BigEndian)
	def := New([]field.Field{lengthField}, Options{
		StructureName: "checked",
		Checks: []func(expr.Facade) bool{
			func(f expr.Facade) bool {
				v, err := f.Get("v")
				if err != nil {
					return false
				}
				return v.(uint64) < 100
			},
		},
	})

	stream := bstream.New(bytes.NewReader([]byte{200}))
	if _, _, err := def.Parse(stream); err == nil {
		t.Fatalf("Parse() error = nil, want check failure")
	}
}

func TestDefinitionLazyConstantOffset(t *testing.T) {
	// header (4 bytes) then a lazily-parsed trailer field at a known
	// constant offset; the trailer should not be read unless forced.
	header := field.NewBytesField("header", 4)
	trailer := field.NewIntegerField("trailer", 2, false, field.BigEndian)
	trailer.Offset = expr.C(int64(4))
	trailer.IsLazy = true

	def := New([]field.Field{header, trailer}, Options{StructureName: "framed2"})

	data := append([]byte("ABCD"), 0x00, 0x2A)
	stream := bstream.New(bytes.NewReader(data))
	values, _, err := def.Parse(stream)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	lazy, ok := values["trailer"].(*LazyValue)
	if !ok {
		t.Fatalf("values[trailer] = %T, want *LazyValue", values["trailer"])
	}
	v, err := lazy.Force()
	if err != nil {
		t.Fatalf("Force() error = %v", err)
	}
	if v != uint64(0x2A) {
		t.Errorf("Force() = %v, want 42", v)
	}
}

func TestDefinitionBitFieldMustRealignBeforeNonBitField(t *testing.T) {
	// A 3-bit field leaves 5 stray bits with no Realign; a byte-wide
	// field immediately after it has no well-defined starting offset.
	a := field.NewBitField("a", 3)
	trailer := field.NewIntegerField("trailer", 1, false, field.BigEndian)

	def := New([]field.Field{a, trailer}, Options{StructureName: "misaligned"})
	stream := bstream.New(bytes.NewReader([]byte{0xFF, 0xFF}))
	if _, _, err := def.Parse(stream); err == nil {
		t.Fatalf("Parse() error = nil, want ImpossibleToCalculateLength")
	}
}

func TestDefinitionBitFieldRealignThenNonBitField(t *testing.T) {
	a := field.NewBitField("a", 3)
	a.Realign = true
	trailer := field.NewIntegerField("trailer", 1, false, field.BigEndian)

	def := New([]field.Field{a, trailer}, Options{StructureName: "realigned"})
	stream := bstream.New(bytes.NewReader([]byte{0xE0, 0x2A}))
	values, _, err := def.Parse(stream)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if values["a"] != uint64(0b111) {
		t.Errorf("a = %v, want 7", values["a"])
	}
	if values["trailer"] != uint64(0x2A) {
		t.Errorf("trailer = %v, want 0x2A", values["trailer"])
	}
}

func TestStaticLen(t *testing.T) {
	def := New([]field.Field{
		field.NewIntegerField("a", 2, false, field.BigEndian),
		field.NewIntegerField("b", 4, false, field.BigEndian),
	}, Options{})

	n, err := def.StaticLen()
	if err != nil {
		t.Fatalf("StaticLen() error = %v", err)
	}
	if n != 6 {
		t.Errorf("StaticLen() = %d, want 6", n)
	}
}
