// Package instances turns augmented annotations into the instance set a
// detection model trains on.
package instances

import (
	"errors"
	"fmt"

	"github.com/tendant/simple-detection-data/internal/geometry"
	"github.com/tendant/simple-detection-data/pkg/dataset"
	"github.com/tendant/simple-detection-data/pkg/mask"
)

// MaskFormat selects how instance masks are represented
type MaskFormat string

const (
	FormatBitmask MaskFormat = "bitmask"
	FormatPolygon MaskFormat = "polygon"
)

// ErrUnsupportedMaskFormat is returned for unknown formats and for
// run-length masks requested as polygons
var ErrUnsupportedMaskFormat = errors.New("unsupported mask format")

// ParseMaskFormat accepts "bitmask" and "polygon"; empty means bitmask
func ParseMaskFormat(s string) (MaskFormat, error) {
	switch MaskFormat(s) {
	case "", FormatBitmask:
		return FormatBitmask, nil
	case FormatPolygon:
		return FormatPolygon, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMaskFormat, s)
	}
}

// FromAnnotations converts annotations on a height x width image into
// instances. Boxes are converted to corners and clipped to the image. Masks
// are attached only when at least one annotation carries a segmentation.
func FromAnnotations(annos []dataset.Annotation, height, width int, format MaskFormat) (*dataset.Instances, error) {
	in := &dataset.Instances{
		ImageHeight: height,
		ImageWidth:  width,
		Boxes:       make([][4]float64, len(annos)),
		Classes:     make([]int, len(annos)),
	}
	hasSegmentation := false
	for i, a := range annos {
		box, err := dataset.ToXYXY(a.BBox, a.BBoxMode)
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		in.Boxes[i] = geometry.Clip(box, height, width)
		in.Classes[i] = a.CategoryID
		if a.Segmentation != nil {
			hasSegmentation = true
		}
	}
	if !hasSegmentation {
		return in, nil
	}

	if format != FormatBitmask {
		return nil, fmt.Errorf("%w: %q with run-length segmentation", ErrUnsupportedMaskFormat, format)
	}
	in.Masks = make([]*mask.Bitmask, len(annos))
	for i, a := range annos {
		if a.Segmentation == nil {
			in.Masks[i] = mask.NewBitmask(height, width)
			continue
		}
		bm, err := a.Segmentation.Decode()
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		if bm.Height != height || bm.Width != width {
			return nil, fmt.Errorf("annotation %d: %w: mask is %dx%d, image is %dx%d",
				i, mask.ErrSizeMismatch, bm.Height, bm.Width, height, width)
		}
		in.Masks[i] = bm
	}
	return in, nil
}

// TightenBoxes replaces every box with the bounding box of its mask.
// Instances without masks are left alone.
func TightenBoxes(in *dataset.Instances) {
	if !in.HasMasks() {
		return
	}
	for i, m := range in.Masks {
		in.Boxes[i] = m.BoundingBox()
	}
}

// FilterEmpty drops instances whose box has a side of at most threshold,
// and with byMask also those whose mask is empty. It returns the kept
// instances and the number dropped.
func FilterEmpty(in *dataset.Instances, threshold float64, byMask bool) (*dataset.Instances, int) {
	keep := make([]bool, in.Len())
	dropped := 0
	for i, box := range in.Boxes {
		keep[i] = !geometry.IsEmpty(box, threshold)
		if keep[i] && byMask && in.HasMasks() {
			keep[i] = !in.Masks[i].IsEmpty()
		}
		if !keep[i] {
			dropped++
		}
	}
	return in.Select(keep), dropped
}

// Options configure Assemble
type Options struct {
	Format MaskFormat
	// Crop enables tight boxes from masks
	Crop bool
	// Threshold defaults to geometry.EmptyThreshold
	Threshold float64
	ByMask    bool
}

// Assemble runs FromAnnotations, TightenBoxes when cropping, and
// FilterEmpty. It returns the instances and the number dropped as empty.
func Assemble(annos []dataset.Annotation, height, width int, opts Options) (*dataset.Instances, int, error) {
	format := opts.Format
	if format == "" {
		format = FormatBitmask
	}
	in, err := FromAnnotations(annos, height, width, format)
	if err != nil {
		return nil, 0, err
	}
	if opts.Crop {
		TightenBoxes(in)
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = geometry.EmptyThreshold
	}
	out, dropped := FilterEmpty(in, threshold, opts.ByMask)
	return out, dropped, nil
}
