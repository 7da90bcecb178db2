package mask

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestEncodeColumnMajor(t *testing.T) {
	// 0 1
	// 1 1
	b := NewBitmask(2, 2)
	b.Set(1, 0)
	b.Set(0, 1)
	b.Set(1, 1)

	r := Encode(b)
	if want := []uint32{1, 3}; !reflect.DeepEqual(r.Counts, want) {
		t.Fatalf("counts = %v, want %v", r.Counts, want)
	}
	if r.Area() != 3 {
		t.Errorf("area = %d, want 3", r.Area())
	}
}

func TestEncodeStartsWithForeground(t *testing.T) {
	b := NewBitmask(1, 3)
	b.Set(0, 0)
	r := Encode(b)
	if want := []uint32{0, 1, 2}; !reflect.DeepEqual(r.Counts, want) {
		t.Fatalf("counts = %v, want %v", r.Counts, want)
	}
}

func TestDecodeInvertsEncode(t *testing.T) {
	b := NewBitmask(4, 5)
	for _, p := range [][2]int{{0, 0}, {1, 2}, {2, 2}, {4, 3}, {3, 1}} {
		b.Set(p[0], p[1])
	}
	got, err := Encode(b).Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got.Bits, b.Bits) {
		t.Errorf("decoded bits = %v, want %v", got.Bits, b.Bits)
	}
}

func TestDecodeSizeMismatch(t *testing.T) {
	r := &RLE{Height: 2, Width: 2, Counts: []uint32{1, 1}}
	if _, err := r.Decode(); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("err = %v, want ErrSizeMismatch", err)
	}
	r = &RLE{Height: 2, Width: 2, Counts: []uint32{3, 3}}
	if _, err := r.Decode(); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("err = %v, want ErrSizeMismatch", err)
	}
}

func TestCompressedCounts(t *testing.T) {
	counts := []uint32{0, 5, 20, 3, 25, 130, 7}
	r := &RLE{Height: 10, Width: 19, Counts: counts}

	s := r.String()
	got, err := ParseCounts(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	if !reflect.DeepEqual(got, counts) {
		t.Errorf("parsed %v, want %v", got, counts)
	}
	if small := (&RLE{Counts: []uint32{1, 3}}).String(); small != "13" {
		t.Errorf("String() = %q, want %q", small, "13")
	}
}

func TestParseCountsTruncated(t *testing.T) {
	// '0'+0x20 sets the continuation bit with nothing after it
	if _, err := ParseCounts(string(rune(48 + 0x20))); !errors.Is(err, ErrMalformedCounts) {
		t.Fatalf("err = %v, want ErrMalformedCounts", err)
	}
}

func TestJSON(t *testing.T) {
	b := NewBitmask(3, 3)
	b.Set(1, 1)
	r := Encode(b)

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back RLE
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Height != 3 || back.Width != 3 || !reflect.DeepEqual(back.Counts, r.Counts) {
		t.Errorf("got %+v, want %+v", back, *r)
	}

	var plain RLE
	if err := json.Unmarshal([]byte(`{"size":[3,3],"counts":[4,1,4]}`), &plain); err != nil {
		t.Fatalf("unmarshal plain counts: %v", err)
	}
	if !reflect.DeepEqual(plain.Counts, []uint32{4, 1, 4}) {
		t.Errorf("plain counts = %v", plain.Counts)
	}
}

func TestBitmaskBoundingBox(t *testing.T) {
	b := NewBitmask(6, 8)
	b.Set(2, 1)
	b.Set(5, 3)
	if got, want := b.BoundingBox(), [4]float64{2, 1, 6, 4}; got != want {
		t.Errorf("box = %v, want %v", got, want)
	}
	if got := NewBitmask(2, 2).BoundingBox(); got != ([4]float64{}) {
		t.Errorf("empty box = %v", got)
	}
}
