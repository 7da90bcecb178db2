package augment

import (
	"fmt"
	"math/rand"

	"github.com/tendant/simple-detection-data/internal/ndarray"
)

// Identity returns its inputs unchanged
type Identity struct{}

// Augment implements Augmenter
func (Identity) Augment(_ *rand.Rand, img *ndarray.Array, boxes BoxesOnImage) (*ndarray.Array, BoxesOnImage, error) {
	return img, boxes, nil
}

// Sequence applies its augmenters in order
type Sequence []Augmenter

// Augment implements Augmenter
func (s Sequence) Augment(rng *rand.Rand, img *ndarray.Array, boxes BoxesOnImage) (*ndarray.Array, BoxesOnImage, error) {
	var err error
	for i, aug := range s {
		img, boxes, err = aug.Augment(rng, img, boxes)
		if err != nil {
			return nil, BoxesOnImage{}, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return img, boxes, nil
}

// FlipLR mirrors the image horizontally with probability P
type FlipLR struct{ P float64 }

// Augment implements Augmenter
func (f FlipLR) Augment(rng *rand.Rand, img *ndarray.Array, boxes BoxesOnImage) (*ndarray.Array, BoxesOnImage, error) {
	if !draw(rng, f.P) {
		return img, boxes, nil
	}
	h, w, c, err := dims(img)
	if err != nil {
		return nil, BoxesOnImage{}, err
	}
	out := ndarray.New(h, w, c)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copy(out.Data[(y*w+x)*c:(y*w+x+1)*c], img.Data[(y*w+w-1-x)*c:(y*w+w-x)*c])
		}
	}

	fw := float64(w)
	flipped := boxes.Clone()
	for i, b := range flipped.Boxes {
		flipped.Boxes[i].X1 = fw - b.X2
		flipped.Boxes[i].X2 = fw - b.X1
	}
	return out, flipped, nil
}

// FlipUD mirrors the image vertically with probability P
type FlipUD struct{ P float64 }

// Augment implements Augmenter
func (f FlipUD) Augment(rng *rand.Rand, img *ndarray.Array, boxes BoxesOnImage) (*ndarray.Array, BoxesOnImage, error) {
	if !draw(rng, f.P) {
		return img, boxes, nil
	}
	h, w, c, err := dims(img)
	if err != nil {
		return nil, BoxesOnImage{}, err
	}
	out := ndarray.New(h, w, c)
	row := w * c
	for y := 0; y < h; y++ {
		copy(out.Data[y*row:(y+1)*row], img.Data[(h-1-y)*row:(h-y)*row])
	}

	fh := float64(h)
	flipped := boxes.Clone()
	for i, b := range flipped.Boxes {
		flipped.Boxes[i].Y1 = fh - b.Y2
		flipped.Boxes[i].Y2 = fh - b.Y1
	}
	return out, flipped, nil
}

// Rot90 rotates the image a quarter turn clockwise with probability P.
// Height and width swap.
type Rot90 struct{ P float64 }

// Augment implements Augmenter
func (r Rot90) Augment(rng *rand.Rand, img *ndarray.Array, boxes BoxesOnImage) (*ndarray.Array, BoxesOnImage, error) {
	if !draw(rng, r.P) {
		return img, boxes, nil
	}
	h, w, c, err := dims(img)
	if err != nil {
		return nil, BoxesOnImage{}, err
	}
	// source (x, y) lands on (h-1-y, x) in a w x h image
	out := ndarray.New(w, h, c)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst := (x*h + h - 1 - y) * c
			copy(out.Data[dst:dst+c], img.Data[(y*w+x)*c:(y*w+x+1)*c])
		}
	}

	fh := float64(h)
	rotated := BoxesOnImage{Boxes: make([]BoundingBox, len(boxes.Boxes)), Height: w, Width: h}
	for i, b := range boxes.Boxes {
		rotated.Boxes[i] = BoundingBox{
			X1:    fh - b.Y2,
			Y1:    b.X1,
			X2:    fh - b.Y1,
			Y2:    b.X2,
			Label: b.Label,
		}
	}
	return out, rotated, nil
}

// draw reports whether an augmenter with probability p fires. p >= 1 never
// consults rng.
func draw(rng *rand.Rand, p float64) bool {
	switch {
	case p <= 0:
		return false
	case p >= 1:
		return true
	case rng == nil:
		return rand.Float64() < p
	default:
		return rng.Float64() < p
	}
}

func dims(img *ndarray.Array) (int, int, int, error) {
	if img == nil || img.NDim() != 3 {
		var shape []int
		if img != nil {
			shape = img.Shape
		}
		return 0, 0, 0, fmt.Errorf("%w: augmentation needs H x W x C, got %v", ndarray.ErrUnsupportedShape, shape)
	}
	return img.Shape[0], img.Shape[1], img.Shape[2], nil
}
