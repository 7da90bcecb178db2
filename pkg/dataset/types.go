// Package dataset defines the detection dataset records produced by the
// record builders and the model-ready samples produced by the transforms.
package dataset

import (
	"fmt"

	"github.com/tendant/simple-detection-data/pkg/mask"
)

// BoxMode describes how the four numbers of a box are interpreted.
// Values match the detection framework's enum.
type BoxMode int

const (
	// XYXYAbs is (x1, y1, x2, y2) in absolute pixels
	XYXYAbs BoxMode = 0
	// XYWHAbs is (x, y, width, height) in absolute pixels
	XYWHAbs BoxMode = 1
)

// ToXYXY converts a box in the given mode to absolute x1, y1, x2, y2
func ToXYXY(box [4]float64, mode BoxMode) ([4]float64, error) {
	switch mode {
	case XYXYAbs:
		return box, nil
	case XYWHAbs:
		return [4]float64{box[0], box[1], box[0] + box[2], box[1] + box[3]}, nil
	default:
		return box, fmt.Errorf("unsupported box mode: %d", mode)
	}
}

// Annotation is one object instance within a record
type Annotation struct {
	BBox         [4]float64 `json:"bbox"`
	BBoxMode     BoxMode    `json:"bbox_mode"`
	Segmentation *mask.RLE  `json:"segmentation,omitempty"`
	CategoryID   int        `json:"category_id"`
	IsCrowd      bool       `json:"iscrowd"`
}

// SemanticMask is a full-image label map, row-major
type SemanticMask struct {
	Height int     `json:"height"`
	Width  int     `json:"width"`
	Labels []int32 `json:"labels"`
}

// Record is the dataset entry for one source image.
// Height and Width are zero until known.
type Record struct {
	FileName    string        `json:"file_name"`
	ImageID     int           `json:"image_id"`
	Height      int           `json:"height"`
	Width       int           `json:"width"`
	Annotations []Annotation  `json:"annotations"`
	SemSeg      *SemanticMask `json:"sem_seg,omitempty"`
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	c := r
	if r.Annotations != nil {
		c.Annotations = make([]Annotation, len(r.Annotations))
		for i, a := range r.Annotations {
			a.Segmentation = a.Segmentation.Clone()
			c.Annotations[i] = a
		}
	}
	if r.SemSeg != nil {
		sem := *r.SemSeg
		sem.Labels = append([]int32(nil), r.SemSeg.Labels...)
		c.SemSeg = &sem
	}
	return c
}

// CloneRecords deep-copies a slice of records
func CloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// Tensor is a dense float32 array in channel, height, width order
type Tensor struct {
	Shape [3]int
	Data  []float32
}

// Instances is the model-ready set of objects in one sample
type Instances struct {
	ImageHeight int
	ImageWidth  int
	Boxes       [][4]float64
	Classes     []int
	// Masks is nil when the sample carries no segmentation
	Masks []*mask.Bitmask
}

// Len returns the number of instances
func (in *Instances) Len() int {
	return len(in.Boxes)
}

// HasMasks reports whether masks are attached
func (in *Instances) HasMasks() bool {
	return in.Masks != nil
}

// Select returns the instances for which keep is true, in order
func (in *Instances) Select(keep []bool) *Instances {
	out := &Instances{ImageHeight: in.ImageHeight, ImageWidth: in.ImageWidth}
	out.Boxes = make([][4]float64, 0, len(in.Boxes))
	out.Classes = make([]int, 0, len(in.Classes))
	if in.Masks != nil {
		out.Masks = make([]*mask.Bitmask, 0, len(in.Masks))
	}
	for i, k := range keep {
		if !k {
			continue
		}
		out.Boxes = append(out.Boxes, in.Boxes[i])
		out.Classes = append(out.Classes, in.Classes[i])
		if in.Masks != nil {
			out.Masks = append(out.Masks, in.Masks[i])
		}
	}
	return out
}

// Sample is a model-ready training or inference input
type Sample struct {
	Record
	// Image is the augmented image
	Image *Tensor
	// GTImage is channel 0 of the un-augmented image with shape (1, H, W).
	// Only set in inference mode.
	GTImage   *Tensor
	Instances *Instances
}
