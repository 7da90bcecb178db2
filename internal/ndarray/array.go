// Package ndarray is a small dense n-dimensional float64 array used to carry
// decoded rasters through canonicalization and augmentation.
package ndarray

import (
	"errors"
	"fmt"

	"github.com/tendant/simple-detection-data/pkg/dataset"
)

var (
	// ErrUnsupportedShape is returned when an image cannot be brought to H x W x 3
	ErrUnsupportedShape = errors.New("unsupported image shape")

	// ErrShapeMismatch is returned when data length does not match the shape
	ErrShapeMismatch = errors.New("data does not match shape")
)

// Array is a row-major dense array
type Array struct {
	Shape []int
	Data  []float64
}

// New allocates a zero array
func New(shape ...int) *Array {
	return &Array{Shape: append([]int(nil), shape...), Data: make([]float64, product(shape))}
}

// FromData wraps data in an array of the given shape
func FromData(data []float64, shape ...int) (*Array, error) {
	if len(data) != product(shape) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(data), shape)
	}
	return &Array{Shape: append([]int(nil), shape...), Data: data}, nil
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// NDim returns the number of axes
func (a *Array) NDim() int {
	return len(a.Shape)
}

// Clone returns a deep copy
func (a *Array) Clone() *Array {
	return &Array{
		Shape: append([]int(nil), a.Shape...),
		Data:  append([]float64(nil), a.Data...),
	}
}

func (a *Array) offset(idx []int) int {
	off := 0
	for i, v := range idx {
		off = off*a.Shape[i] + v
	}
	return off
}

// At returns the element at the given index
func (a *Array) At(idx ...int) float64 {
	return a.Data[a.offset(idx)]
}

// Set stores v at the given index
func (a *Array) Set(v float64, idx ...int) {
	a.Data[a.offset(idx)] = v
}

// MinMax returns the smallest and largest element
func (a *Array) MinMax() (float64, float64) {
	if len(a.Data) == 0 {
		return 0, 0
	}
	lo, hi := a.Data[0], a.Data[0]
	for _, v := range a.Data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// MaxAxis0 collapses the leading axis with a per-element maximum
func (a *Array) MaxAxis0() *Array {
	out := New(a.Shape[1:]...)
	n := len(out.Data)
	copy(out.Data, a.Data[:n])
	for d := 1; d < a.Shape[0]; d++ {
		slab := a.Data[d*n : (d+1)*n]
		for i, v := range slab {
			if v > out.Data[i] {
				out.Data[i] = v
			}
		}
	}
	return out
}

// Stack joins equally shaped arrays along a new leading axis
func Stack(arrays ...*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, fmt.Errorf("%w: nothing to stack", ErrShapeMismatch)
	}
	first := arrays[0]
	n := len(first.Data)
	out := New(append([]int{len(arrays)}, first.Shape...)...)
	for i, a := range arrays {
		if !sameShape(a.Shape, first.Shape) {
			return nil, fmt.Errorf("%w: cannot stack %v with %v", ErrShapeMismatch, a.Shape, first.Shape)
		}
		copy(out.Data[i*n:(i+1)*n], a.Data)
	}
	return out, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ExpandDims appends a trailing axis of length one
func (a *Array) ExpandDims() *Array {
	return &Array{Shape: append(append([]int(nil), a.Shape...), 1), Data: a.Data}
}

// ChannelsLast moves axis 0 of a 3-d array to the end: (C, H, W) -> (H, W, C)
func (a *Array) ChannelsLast() (*Array, error) {
	if a.NDim() != 3 {
		return nil, fmt.Errorf("%w: transpose needs 3 axes, got %v", ErrUnsupportedShape, a.Shape)
	}
	c, h, w := a.Shape[0], a.Shape[1], a.Shape[2]
	out := New(h, w, c)
	for k := 0; k < c; k++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Data[(y*w+x)*c+k] = a.Data[(k*h+y)*w+x]
			}
		}
	}
	return out, nil
}

// RepeatChannel replicates a single trailing channel n times
func (a *Array) RepeatChannel(n int) (*Array, error) {
	if a.NDim() != 3 || a.Shape[2] != 1 {
		return nil, fmt.Errorf("%w: repeat needs H x W x 1, got %v", ErrUnsupportedShape, a.Shape)
	}
	h, w := a.Shape[0], a.Shape[1]
	out := New(h, w, n)
	for i, v := range a.Data {
		for k := 0; k < n; k++ {
			out.Data[i*n+k] = v
		}
	}
	return out, nil
}

// Channel extracts channel c of an H x W x C array as H x W x 1
func (a *Array) Channel(c int) (*Array, error) {
	if a.NDim() != 3 || c >= a.Shape[2] {
		return nil, fmt.Errorf("%w: no channel %d in %v", ErrUnsupportedShape, c, a.Shape)
	}
	h, w, nc := a.Shape[0], a.Shape[1], a.Shape[2]
	out := New(h, w, 1)
	for i := 0; i < h*w; i++ {
		out.Data[i] = a.Data[i*nc+c]
	}
	return out, nil
}

// Tensor converts an H x W x C array to a C x H x W float32 tensor
func (a *Array) Tensor() (*dataset.Tensor, error) {
	if a.NDim() != 3 {
		return nil, fmt.Errorf("%w: tensor needs 3 axes, got %v", ErrUnsupportedShape, a.Shape)
	}
	h, w, c := a.Shape[0], a.Shape[1], a.Shape[2]
	t := &dataset.Tensor{Shape: [3]int{c, h, w}, Data: make([]float32, h*w*c)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for k := 0; k < c; k++ {
				t.Data[(k*h+y)*w+x] = float32(a.Data[(y*w+x)*c+k])
			}
		}
	}
	return t, nil
}
