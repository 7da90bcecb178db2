package mask

// Bitmask is a binary mask stored row-major, one byte per pixel (0 or 1).
type Bitmask struct {
	Height int
	Width  int
	Bits   []uint8
}

// NewBitmask creates an empty mask of the given size
func NewBitmask(height, width int) *Bitmask {
	return &Bitmask{
		Height: height,
		Width:  width,
		Bits:   make([]uint8, height*width),
	}
}

// FromLabels builds a mask whose foreground is every nonzero label.
// labels is row-major with len height*width.
func FromLabels(labels []int32, height, width int) *Bitmask {
	b := NewBitmask(height, width)
	for i, v := range labels {
		if v != 0 {
			b.Bits[i] = 1
		}
	}
	return b
}

// At reports whether pixel (x, y) is foreground
func (b *Bitmask) At(x, y int) bool {
	return b.Bits[y*b.Width+x] != 0
}

// Set marks pixel (x, y) as foreground
func (b *Bitmask) Set(x, y int) {
	b.Bits[y*b.Width+x] = 1
}

// Area returns the number of foreground pixels
func (b *Bitmask) Area() int {
	n := 0
	for _, v := range b.Bits {
		if v != 0 {
			n++
		}
	}
	return n
}

// IsEmpty reports whether the mask has no foreground pixel
func (b *Bitmask) IsEmpty() bool {
	for _, v := range b.Bits {
		if v != 0 {
			return false
		}
	}
	return true
}

// BoundingBox returns the tight box around the foreground as
// x1, y1, x2, y2 where x2 and y2 are one past the last foreground
// column and row. An empty mask yields the zero box.
func (b *Bitmask) BoundingBox() [4]float64 {
	minX, minY := b.Width, b.Height
	maxX, maxY := -1, -1
	for y := 0; y < b.Height; y++ {
		row := b.Bits[y*b.Width : (y+1)*b.Width]
		for x, v := range row {
			if v == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return [4]float64{}
	}
	return [4]float64{float64(minX), float64(minY), float64(maxX + 1), float64(maxY + 1)}
}

// Clone returns a deep copy
func (b *Bitmask) Clone() *Bitmask {
	if b == nil {
		return nil
	}
	c := &Bitmask{Height: b.Height, Width: b.Width, Bits: make([]uint8, len(b.Bits))}
	copy(c.Bits, b.Bits)
	return c
}
