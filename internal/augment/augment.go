// Package augment converts record annotations to image-anchored boxes, runs
// an augmentation sequence over image and boxes, and converts the result
// back to annotations.
package augment

import (
	"fmt"
	"math/rand"

	"github.com/tendant/simple-detection-data/internal/ndarray"
	"github.com/tendant/simple-detection-data/pkg/dataset"
)

// BoundingBox is an axis-aligned box carrying the category id as its label
type BoundingBox struct {
	X1, Y1, X2, Y2 float64
	Label          int
}

// BoxesOnImage anchors a box list to the shape of the image it belongs to
type BoxesOnImage struct {
	Boxes  []BoundingBox
	Height int
	Width  int
}

// Clone returns a copy with its own box slice
func (b BoxesOnImage) Clone() BoxesOnImage {
	b.Boxes = append([]BoundingBox(nil), b.Boxes...)
	return b
}

// Augmenter transforms an H x W x C image and its boxes together.
// Implementations must not modify img or boxes.
type Augmenter interface {
	Augment(rng *rand.Rand, img *ndarray.Array, boxes BoxesOnImage) (*ndarray.Array, BoxesOnImage, error)
}

// AugmenterFunc adapts a function to Augmenter
type AugmenterFunc func(rng *rand.Rand, img *ndarray.Array, boxes BoxesOnImage) (*ndarray.Array, BoxesOnImage, error)

// Augment calls f
func (f AugmenterFunc) Augment(rng *rand.Rand, img *ndarray.Array, boxes BoxesOnImage) (*ndarray.Array, BoxesOnImage, error) {
	return f(rng, img, boxes)
}

// FromAnnotations builds the box list for an image of the given size.
// Boxes in XYWH mode are converted to corners first.
func FromAnnotations(annos []dataset.Annotation, height, width int) (BoxesOnImage, error) {
	out := BoxesOnImage{Boxes: make([]BoundingBox, 0, len(annos)), Height: height, Width: width}
	for i, a := range annos {
		box, err := dataset.ToXYXY(a.BBox, a.BBoxMode)
		if err != nil {
			return BoxesOnImage{}, fmt.Errorf("annotation %d: %w", i, err)
		}
		out.Boxes = append(out.Boxes, BoundingBox{
			X1:    box[0],
			Y1:    box[1],
			X2:    box[2],
			Y2:    box[3],
			Label: a.CategoryID,
		})
	}
	return out, nil
}

// ToAnnotations converts augmented boxes back to annotations. Box i keeps
// the segmentation of original[i] unchanged; the label becomes the category.
func ToAnnotations(boxes BoxesOnImage, original []dataset.Annotation) []dataset.Annotation {
	annos := make([]dataset.Annotation, len(boxes.Boxes))
	for i, b := range boxes.Boxes {
		annos[i] = dataset.Annotation{
			BBox:       [4]float64{b.X1, b.Y1, b.X2, b.Y2},
			BBoxMode:   dataset.XYXYAbs,
			CategoryID: b.Label,
			IsCrowd:    false,
		}
		if i < len(original) {
			annos[i].Segmentation = original[i].Segmentation
		}
	}
	return annos
}

// Apply runs aug. In training mode image and boxes are augmented together;
// otherwise only the image changes and boxes are returned as given.
func Apply(rng *rand.Rand, aug Augmenter, img *ndarray.Array, boxes BoxesOnImage, isTrain bool) (*ndarray.Array, BoxesOnImage, error) {
	if aug == nil {
		aug = Identity{}
	}
	out, augmented, err := aug.Augment(rng, img, boxes.Clone())
	if err != nil {
		return nil, BoxesOnImage{}, fmt.Errorf("augmentation failed: %w", err)
	}
	if !isTrain {
		return out, boxes, nil
	}
	return out, augmented, nil
}
