package bstream

import (
	"bytes"
	"io"
	"testing"
)

func TestSubstreamBounds(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		length  int64
		reads   []int
		want    [][]byte
		wantErr bool
	}{
		{
			name:   "exact fit",
			data:   []byte("hello"),
			length: 5,
			reads:  []int{5},
			want:   [][]byte{[]byte("hello")},
		},
		{
			name:   "bounded shorter than buffer",
			data:   []byte("hello world"),
			length: 5,
			reads:  []int{10},
			want:   [][]byte{[]byte("hello")},
		},
	}

	for _, test := range tests {
		raw := New(bytes.NewReader(test.data))
		sub, err := NewSubstream(raw, test.length)
		if err != nil {
			t.Fatalf("Test(%s): NewSubstream() error = %v", test.name, err)
		}
		for i, n := range test.reads {
			buf := make([]byte, n)
			read, err := sub.Read(buf)
			if err != nil && err != io.EOF {
				if test.wantErr {
					continue
				}
				t.Errorf("Test(%s): Read() error = %v", test.name, err)
				continue
			}
			got := buf[:read]
			if !bytes.Equal(got, test.want[i]) {
				t.Errorf("Test(%s): Read() = %v, want %v", test.name, got, test.want[i])
			}
		}
	}
}

func TestSubstreamSeek(t *testing.T) {
	raw := New(bytes.NewReader([]byte("0123456789")))
	sub, err := NewSubstream(raw, 5)
	if err != nil {
		t.Fatalf("NewSubstream() error = %v", err)
	}

	if _, err := sub.Seek(2, io.SeekStart); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	buf := make([]byte, 10)
	n, _ := sub.Read(buf)
	if got, want := string(buf[:n]), "234"; got != want {
		t.Errorf("Read() after Seek = %q, want %q", got, want)
	}
}

func TestBitCursorReadWrite(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		values []uint64
	}{
		{
			name:   "single byte split 4-4",
			counts: []int{4, 4},
			values: []uint64{0b1010, 0b0110},
		},
		{
			name:   "crosses byte boundary",
			counts: []int{3, 6, 7},
			values: []uint64{0b101, 0b011011, 0b1100110},
		},
	}

	for _, test := range tests {
		var buf bytes.Buffer
		w := NewBitCursor(New(&buf))
		for i, c := range test.counts {
			if err := w.WriteBits(test.values[i], c); err != nil {
				t.Fatalf("Test(%s): WriteBits() error = %v", test.name, err)
			}
		}
		if err := w.Align(); err != nil {
			t.Fatalf("Test(%s): Align() error = %v", test.name, err)
		}

		r := NewBitCursor(New(bytes.NewReader(buf.Bytes())))
		for i, c := range test.counts {
			got, err := r.ReadBits(c)
			if err != nil {
				t.Fatalf("Test(%s): ReadBits() error = %v", test.name, err)
			}
			if got != test.values[i] {
				t.Errorf("Test(%s): ReadBits(%d)[%d] = %b, want %b", test.name, c, i, got, test.values[i])
			}
		}
	}
}

func TestCaptureStream(t *testing.T) {
	raw := New(bytes.NewReader([]byte("abcdef")))
	cap := NewCaptureStream(raw)

	buf := make([]byte, 3)
	if _, err := cap.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if _, err := cap.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got, want := string(cap.Captured()), "abcdef"; got != want {
		t.Errorf("Captured() = %q, want %q", got, want)
	}
}
