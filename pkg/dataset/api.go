package dataset

// DatasetList is the response of the dataset listing endpoint
type DatasetList struct {
	Datasets []string `json:"datasets"`
}

// InstanceSummary describes one instance of a transformed sample
type InstanceSummary struct {
	BBox       [4]float64 `json:"bbox"`
	CategoryID int        `json:"category_id"`
	MaskArea   *int       `json:"mask_area,omitempty"`
}

// SampleSummary is the JSON view of a transformed sample.
// The image tensor itself is not included.
type SampleSummary struct {
	RunID      string            `json:"run_id"`
	FileName   string            `json:"file_name"`
	ImageID    int               `json:"image_id"`
	Height     int               `json:"height"`
	Width      int               `json:"width"`
	ImageShape [3]int            `json:"image_shape"`
	Train      bool              `json:"train"`
	Instances  []InstanceSummary `json:"instances"`
}

// Summarize builds the JSON view of a sample
func Summarize(runID string, s *Sample, train bool) SampleSummary {
	sum := SampleSummary{
		RunID:     runID,
		FileName:  s.FileName,
		ImageID:   s.ImageID,
		Height:    s.Height,
		Width:     s.Width,
		Train:     train,
		Instances: []InstanceSummary{},
	}
	if s.Image != nil {
		sum.ImageShape = s.Image.Shape
	}
	if s.Instances == nil {
		return sum
	}
	for i := 0; i < s.Instances.Len(); i++ {
		is := InstanceSummary{
			BBox:       s.Instances.Boxes[i],
			CategoryID: s.Instances.Classes[i],
		}
		if s.Instances.HasMasks() {
			area := s.Instances.Masks[i].Area()
			is.MaskArea = &area
		}
		sum.Instances = append(sum.Instances, is)
	}
	return sum
}
