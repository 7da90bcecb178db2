// Package mask holds the run-length encoded masks stored in dataset records
// and the decoded bitmasks used by model instances.
//
// The encoding follows the COCO convention: pixels are visited in
// column-major order and the counts alternate between background and
// foreground runs, starting with background (possibly a zero-length run).
package mask

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedCounts is returned when a compressed counts string cannot be parsed
	ErrMalformedCounts = errors.New("malformed rle counts")

	// ErrSizeMismatch is returned when the counts do not cover height*width pixels
	ErrSizeMismatch = errors.New("rle counts do not match mask size")
)

// RLE is a run-length encoded binary mask
type RLE struct {
	Height int
	Width  int
	Counts []uint32
}

// Encode run-length encodes a bitmask
func Encode(b *Bitmask) *RLE {
	r := &RLE{Height: b.Height, Width: b.Width}
	var (
		prev uint8
		run  uint32
	)
	for x := 0; x < b.Width; x++ {
		for y := 0; y < b.Height; y++ {
			v := b.Bits[y*b.Width+x]
			if v != prev {
				r.Counts = append(r.Counts, run)
				run = 0
				prev = v
			}
			run++
		}
	}
	r.Counts = append(r.Counts, run)
	return r
}

// Decode expands the runs into a bitmask
func (r *RLE) Decode() (*Bitmask, error) {
	b := NewBitmask(r.Height, r.Width)
	total := r.Height * r.Width
	pos := 0
	var fg bool
	for _, c := range r.Counts {
		n := int(c)
		if pos+n > total {
			return nil, fmt.Errorf("%w: %d pixels exceed %dx%d", ErrSizeMismatch, pos+n, r.Height, r.Width)
		}
		if fg {
			for i := pos; i < pos+n; i++ {
				// column-major index back to (x, y)
				b.Bits[(i%r.Height)*r.Width+i/r.Height] = 1
			}
		}
		pos += n
		fg = !fg
	}
	if pos != total {
		return nil, fmt.Errorf("%w: counts cover %d of %d pixels", ErrSizeMismatch, pos, total)
	}
	return b, nil
}

// Area returns the number of foreground pixels
func (r *RLE) Area() int {
	n := 0
	for i := 1; i < len(r.Counts); i += 2 {
		n += int(r.Counts[i])
	}
	return n
}

// Clone returns a deep copy
func (r *RLE) Clone() *RLE {
	if r == nil {
		return nil
	}
	c := &RLE{Height: r.Height, Width: r.Width, Counts: make([]uint32, len(r.Counts))}
	copy(c.Counts, r.Counts)
	return c
}

// String returns the compressed COCO counts string.
//
// Each count past the second is stored as the difference to the count two
// positions earlier, then written as 5-bit groups with a continuation bit,
// offset into printable ASCII.
func (r *RLE) String() string {
	var buf []byte
	for i, c := range r.Counts {
		x := int64(c)
		if i > 2 {
			x -= int64(r.Counts[i-2])
		}
		more := true
		for more {
			b := x & 0x1f
			x >>= 5
			if b&0x10 != 0 {
				more = x != -1
			} else {
				more = x != 0
			}
			if more {
				b |= 0x20
			}
			buf = append(buf, byte(b+48))
		}
	}
	return string(buf)
}

// ParseCounts decodes a compressed COCO counts string
func ParseCounts(s string) ([]uint32, error) {
	var counts []uint32
	p := 0
	for p < len(s) {
		var x int64
		k := uint(0)
		more := true
		for more {
			if p >= len(s) {
				return nil, fmt.Errorf("%w: truncated at byte %d", ErrMalformedCounts, p)
			}
			c := int64(s[p]) - 48
			if c < 0 || c > 63 {
				return nil, fmt.Errorf("%w: invalid byte %q", ErrMalformedCounts, s[p])
			}
			x |= (c & 0x1f) << (5 * k)
			more = c&0x20 != 0
			p++
			k++
			if !more && c&0x10 != 0 {
				x |= -1 << (5 * k)
			}
		}
		if m := len(counts); m > 2 {
			x += int64(counts[m-2])
		}
		if x < 0 {
			return nil, fmt.Errorf("%w: negative run", ErrMalformedCounts)
		}
		counts = append(counts, uint32(x))
	}
	return counts, nil
}

type rleJSON struct {
	Size   [2]int          `json:"size"`
	Counts json.RawMessage `json:"counts"`
}

// MarshalJSON writes the COCO form {"size":[h,w],"counts":"..."}
func (r *RLE) MarshalJSON() ([]byte, error) {
	counts, err := json.Marshal(r.String())
	if err != nil {
		return nil, err
	}
	return json.Marshal(rleJSON{Size: [2]int{r.Height, r.Width}, Counts: counts})
}

// UnmarshalJSON accepts both compressed string counts and plain integer counts
func (r *RLE) UnmarshalJSON(data []byte) error {
	var raw rleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Height, r.Width = raw.Size[0], raw.Size[1]

	var s string
	if err := json.Unmarshal(raw.Counts, &s); err == nil {
		counts, err := ParseCounts(s)
		if err != nil {
			return err
		}
		r.Counts = counts
		return nil
	}

	var counts []uint32
	if err := json.Unmarshal(raw.Counts, &counts); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCounts, err)
	}
	r.Counts = counts
	return nil
}
