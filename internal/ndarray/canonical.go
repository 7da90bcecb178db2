package ndarray

import "fmt"

// Canonicalize brings a decoded raster to height x width x 3:
//
//  1. more than 3 axes: maximum projection over the leading (depth) axis
//  2. fewer than 3 axes: append a channel axis
//  3. first axis shorter than the last: treat as channel-first and transpose
//  4. one channel: replicate it to three
//
// Any other layout is rejected with ErrUnsupportedShape. An array that is
// already canonical is returned as is.
func Canonicalize(a *Array) (*Array, error) {
	if a.NDim() > 3 {
		a = a.MaxAxis0()
	}
	if a.NDim() < 3 {
		a = a.ExpandDims()
	}
	if a.NDim() != 3 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedShape, a.Shape)
	}
	if a.Shape[0] < a.Shape[2] {
		t, err := a.ChannelsLast()
		if err != nil {
			return nil, err
		}
		a = t
	}
	if a.Shape[2] == 1 {
		r, err := a.RepeatChannel(3)
		if err != nil {
			return nil, err
		}
		a = r
	}
	if a.Shape[2] != 3 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedShape, a.Shape)
	}
	return a, nil
}

// RescaleIntensity stretches the values to [0, 1], or to [-1, 1] when the
// array holds negative values. A constant array maps to the lower bound.
func RescaleIntensity(a *Array) *Array {
	lo, hi := a.MinMax()
	outLo := 0.0
	if lo < 0 {
		outLo = -1
	}
	out := &Array{Shape: append([]int(nil), a.Shape...), Data: make([]float64, len(a.Data))}
	if hi == lo {
		for i := range out.Data {
			out.Data[i] = outLo
		}
		return out
	}
	scale := (1 - outLo) / (hi - lo)
	for i, v := range a.Data {
		out.Data[i] = outLo + (v-lo)*scale
	}
	return out
}
