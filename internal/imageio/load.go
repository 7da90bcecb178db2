package imageio

import (
	"context"

	"github.com/tendant/simple-detection-data/internal/ndarray"
)

// Options control what Load does after decoding
type Options struct {
	// Rescale stretches intensities to [0, 1] after canonicalization
	Rescale bool
	// KeepGT keeps channel 0 of the canonical image for ground-truth display
	KeepGT bool
}

// Loaded is a canonical image ready for augmentation
type Loaded struct {
	Image *ndarray.Array
	// GT is H x W x 1, nil unless requested
	GT     *ndarray.Array
	Height int
	Width  int
}

// Load decodes the file at path, canonicalizes it to H x W x 3 and applies
// the optional intensity rescale.
func Load(ctx context.Context, path string, opts Options) (*Loaded, error) {
	raw, err := LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return Prepare(raw, opts)
}

// Prepare runs the post-decode steps of Load on an already decoded array
func Prepare(raw *ndarray.Array, opts Options) (*Loaded, error) {
	img, err := ndarray.Canonicalize(raw)
	if err != nil {
		return nil, err
	}
	if opts.Rescale {
		img = ndarray.RescaleIntensity(img)
	}
	out := &Loaded{Image: img, Height: img.Shape[0], Width: img.Shape[1]}
	if opts.KeepGT {
		gt, err := img.Channel(0)
		if err != nil {
			return nil, err
		}
		out.GT = gt
	}
	return out, nil
}

// UsesRawInputs reports whether the model wants rescaled float inputs.
// The model signals this with a pixel mean containing 0 and a pixel
// std containing 1.
func UsesRawInputs(pixelMean, pixelStd []float64) bool {
	return contains(pixelMean, 0) && contains(pixelStd, 1)
}

func contains(xs []float64, v float64) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// Labels converts a decoded mask into a row-major label image. Color masks
// use their first channel.
func Labels(a *ndarray.Array) ([]int32, int, int) {
	h, w := a.Shape[0], a.Shape[1]
	labels := make([]int32, h*w)
	stride := 1
	if a.NDim() == 3 {
		stride = a.Shape[2]
	}
	for i := range labels {
		labels[i] = int32(a.Data[i*stride])
	}
	return labels, h, w
}
