package field

import (
	"bytes"
	"testing"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/expr"
	"github.com/dstructgo/binstruct/parsectx"
)

func newCtx(stream bstream.Stream) *parsectx.Context {
	return parsectx.New(nil, false, stream, false)
}

func TestBytesFieldRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("abc")},
		{"longer", []byte("hello world")},
	}

	for _, test := range tests {
		f := NewBytesField("data", int64(len(test.data)))
		stream := bstream.New(bytes.NewReader(test.data))
		ctx := newCtx(stream)

		v, n, err := f.FromStream(stream, ctx)
		if err != nil {
			t.Errorf("Test(%s): FromStream() error = %v", test.name, err)
			continue
		}
		if n != int64(len(test.data)) || !bytes.Equal(v.([]byte), test.data) {
			t.Errorf("Test(%s): FromStream() = (%v, %d), want (%v, %d)", test.name, v, n, test.data, len(test.data))
		}

		var buf bytes.Buffer
		wstream := bstream.New(&buf)
		if _, err := f.ToStream(wstream, v, newCtx(wstream)); err != nil {
			t.Errorf("Test(%s): ToStream() error = %v", test.name, err)
			continue
		}
		if !bytes.Equal(buf.Bytes(), test.data) {
			t.Errorf("Test(%s): ToStream() wrote %v, want %v", test.name, buf.Bytes(), test.data)
		}
	}
}

func TestTerminatedField(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr bool
	}{
		{"terminated", []byte("hello\x00world"), "hello", false},
		{"terminator at end", []byte("abc\x00"), "abc", false},
		{"no terminator", []byte("abc"), "", true},
	}

	for _, test := range tests {
		f := NewTerminatedField("s", nil)
		stream := bstream.New(bytes.NewReader(test.data))
		v, _, err := f.FromStream(stream, newCtx(stream))
		if test.wantErr {
			if err == nil {
				t.Errorf("Test(%s): FromStream() error = nil, want error", test.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test(%s): FromStream() error = %v", test.name, err)
			continue
		}
		if string(v.([]byte)) != test.want {
			t.Errorf("Test(%s): FromStream() = %q, want %q", test.name, v, test.want)
		}
	}
}

func TestIntegerFieldRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		signed bool
		order  ByteOrder
		value  interface{}
	}{
		{"uint16 be", 2, false, BigEndian, uint64(0x1234)},
		{"uint16 le", 2, false, LittleEndian, uint64(0x1234)},
		{"int8 negative", 1, true, BigEndian, int64(-1)},
		{"int32 negative", 4, true, BigEndian, int64(-100)},
		{"3-byte unsigned", 3, false, BigEndian, uint64(0xABCDEF)},
		{"5-byte unsigned", 5, false, LittleEndian, uint64(0x0102030405)},
	}

	for _, test := range tests {
		f := NewIntegerField("n", test.width, test.signed, test.order)
		var buf bytes.Buffer
		wstream := bstream.New(&buf)
		if _, err := f.ToStream(wstream, test.value, newCtx(wstream)); err != nil {
			t.Errorf("Test(%s): ToStream() error = %v", test.name, err)
			continue
		}

		rstream := bstream.New(bytes.NewReader(buf.Bytes()))
		got, n, err := f.FromStream(rstream, newCtx(rstream))
		if err != nil {
			t.Errorf("Test(%s): FromStream() error = %v", test.name, err)
			continue
		}
		if n != int64(test.width) {
			t.Errorf("Test(%s): FromStream() length = %d, want %d", test.name, n, test.width)
		}
		if got != test.value {
			t.Errorf("Test(%s): FromStream() = %v, want %v", test.name, got, test.value)
		}
	}
}

func TestVariableLengthIntegerFieldRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
	}{
		{"zero", 0},
		{"single byte", 0x7f},
		{"two bytes", 0x80},
		{"three bytes", 1 << 16},
		{"large", 1 << 40},
	}

	f := NewVariableLengthIntegerField("v")
	for _, test := range tests {
		var buf bytes.Buffer
		wstream := bstream.New(&buf)
		if _, err := f.ToStream(wstream, test.value, newCtx(wstream)); err != nil {
			t.Errorf("Test(%s): ToStream() error = %v", test.name, err)
			continue
		}

		rstream := bstream.New(bytes.NewReader(buf.Bytes()))
		got, _, err := f.FromStream(rstream, newCtx(rstream))
		if err != nil {
			t.Errorf("Test(%s): FromStream() error = %v", test.name, err)
			continue
		}
		if got != test.value {
			t.Errorf("Test(%s): FromStream() = %v, want %v", test.name, got, test.value)
		}
	}
}

func TestVariableLengthIntegerIsNotLEB128(t *testing.T) {
	// 300 as protobuf LEB128 is [0xAC, 0x02]; as MSB-first VLQ it is
	// [0x82, 0x2C]. Confirms the two schemes are not interchangeable.
	f := NewVariableLengthIntegerField("v")
	var buf bytes.Buffer
	wstream := bstream.New(&buf)
	if _, err := f.ToStream(wstream, uint64(300), newCtx(wstream)); err != nil {
		t.Fatalf("ToStream() error = %v", err)
	}
	if got, want := buf.Bytes(), []byte{0x82, 0x2C}; !bytes.Equal(got, want) {
		t.Errorf("ToStream(300) = %x, want %x", got, want)
	}
}

func TestConstantFieldMismatch(t *testing.T) {
	f := NewConstantField("magic", []byte("AB"), NewBytesField("magic", 2))
	stream := bstream.New(bytes.NewReader([]byte("XY")))
	if _, _, err := f.FromStream(stream, newCtx(stream)); err == nil {
		t.Fatalf("FromStream() error = nil, want mismatch error")
	}
}

func TestArrayFieldCount(t *testing.T) {
	base := NewIntegerField("n", 1, false, BigEndian)
	f := NewCountArrayField("arr", base, expr.C(int64(3)))
	stream := bstream.New(bytes.NewReader([]byte{1, 2, 3, 4}))
	v, n, err := f.FromStream(stream, newCtx(stream))
	if err != nil {
		t.Fatalf("FromStream() error = %v", err)
	}
	if n != 3 {
		t.Errorf("FromStream() consumed %d, want 3", n)
	}
	got := v.([]interface{})
	want := []interface{}{uint64(1), uint64(2), uint64(3)}
	if len(got) != len(want) {
		t.Fatalf("FromStream() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FromStream()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestArrayFieldNegativeLengthReadsUntilExhausted(t *testing.T) {
	base := NewIntegerField("n", 1, false, BigEndian)
	f := NewLengthArrayField("arr", base, expr.C(int64(-1)))
	stream := bstream.New(bytes.NewReader([]byte{1, 2, 3}))
	v, n, err := f.FromStream(stream, newCtx(stream))
	if err != nil {
		t.Fatalf("FromStream() error = %v", err)
	}
	if n != 3 {
		t.Errorf("FromStream() consumed %d, want 3", n)
	}
	got := v.([]interface{})
	want := []interface{}{uint64(1), uint64(2), uint64(3)}
	if len(got) != len(want) {
		t.Fatalf("FromStream() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FromStream()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBitFieldRoundTrip(t *testing.T) {
	// Three fields packed into a single byte: a 3-bit, a 1-bit, and a
	// 4-bit run, MSB-first: 101 1 0110 = 0xB6.
	a := NewBitField("a", 3)
	b := NewBitField("b", 1)
	c := NewBitField("c", 4)
	c.Realign = true

	var buf bytes.Buffer
	wstream := bstream.New(&buf)
	cursor := bstream.NewBitCursor(wstream)
	a.SetCursor(cursor)
	b.SetCursor(cursor)
	c.SetCursor(cursor)
	wctx := newCtx(wstream)

	if _, err := a.ToStream(wstream, uint64(0b101), wctx); err != nil {
		t.Fatalf("a.ToStream() error = %v", err)
	}
	if _, err := b.ToStream(wstream, uint64(1), wctx); err != nil {
		t.Fatalf("b.ToStream() error = %v", err)
	}
	if _, err := c.ToStream(wstream, uint64(0b0110), wctx); err != nil {
		t.Fatalf("c.ToStream() error = %v", err)
	}
	if !cursor.Aligned() {
		t.Fatalf("cursor not aligned after Realign field")
	}
	if got, want := buf.Bytes(), []byte{0xB6}; !bytes.Equal(got, want) {
		t.Fatalf("wrote %x, want %x", got, want)
	}

	rstream := bstream.New(bytes.NewReader(buf.Bytes()))
	rcursor := bstream.NewBitCursor(rstream)
	a.SetCursor(rcursor)
	b.SetCursor(rcursor)
	c.SetCursor(rcursor)
	rctx := newCtx(rstream)

	va, _, err := a.FromStream(rstream, rctx)
	if err != nil {
		t.Fatalf("a.FromStream() error = %v", err)
	}
	vb, _, err := b.FromStream(rstream, rctx)
	if err != nil {
		t.Fatalf("b.FromStream() error = %v", err)
	}
	vc, _, err := c.FromStream(rstream, rctx)
	if err != nil {
		t.Fatalf("c.FromStream() error = %v", err)
	}
	if va != uint64(0b101) || vb != uint64(1) || vc != uint64(0b0110) {
		t.Errorf("read (%v, %v, %v), want (5, 1, 6)", va, vb, vc)
	}
}

func TestConditionalField(t *testing.T) {
	base := NewIntegerField("v", 1, false, BigEndian)

	tests := []struct {
		name string
		cond bool
		data []byte
		want interface{}
	}{
		{"true reads", true, []byte{42}, uint64(42)},
		{"false skips", false, []byte{}, nil},
	}

	for _, test := range tests {
		f := NewConditionalField("c", base, expr.C(test.cond))
		stream := bstream.New(bytes.NewReader(test.data))
		got, _, err := f.FromStream(stream, newCtx(stream))
		if err != nil {
			t.Errorf("Test(%s): FromStream() error = %v", test.name, err)
			continue
		}
		if got != test.want {
			t.Errorf("Test(%s): FromStream() = %v, want %v", test.name, got, test.want)
		}
	}
}

func TestStructFieldFormat(t *testing.T) {
	f, err := NewStructField("hdr", ">2sH")
	if err != nil {
		t.Fatalf("NewStructField() error = %v", err)
	}
	stream := bstream.New(bytes.NewReader([]byte{'H', 'I', 0x01, 0x02}))
	v, _, err := f.FromStream(stream, newCtx(stream))
	if err != nil {
		t.Fatalf("FromStream() error = %v", err)
	}
	got := v.([]interface{})
	if !bytes.Equal(got[0].([]byte), []byte("HI")) {
		t.Errorf("FromStream()[0] = %v, want %q", got[0], "HI")
	}
	if got[1] != uint64(0x0102) {
		t.Errorf("FromStream()[1] = %v, want 0x0102", got[1])
	}
}
