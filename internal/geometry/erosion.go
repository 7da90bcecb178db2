// Package geometry holds the box arithmetic shared by the record builders
// and the instance assembler.
package geometry

import "fmt"

// ErosionMode selects which extent drives the vertical shrink
type ErosionMode string

const (
	// ErodeWidthDriven shrinks both axes by the box width. This is the
	// geometry existing trained models were built against.
	ErodeWidthDriven ErosionMode = "width"
	// ErodePerAxis shrinks x by the width and y by the height
	ErodePerAxis ErosionMode = "per-axis"
)

// DefaultErosionFactor is the fraction of the extent removed in total
const DefaultErosionFactor = 0.5

// ParseErosionMode validates a mode name; empty selects the default
func ParseErosionMode(s string) (ErosionMode, error) {
	switch ErosionMode(s) {
	case "", ErodeWidthDriven:
		return ErodeWidthDriven, nil
	case ErodePerAxis:
		return ErodePerAxis, nil
	default:
		return "", fmt.Errorf("unknown erosion mode: %q", s)
	}
}

// Eroder shrinks boxes toward their center
type Eroder struct {
	Factor float64
	Mode   ErosionMode
}

// NewEroder returns an eroder with the default factor
func NewEroder(mode ErosionMode) Eroder {
	return Eroder{Factor: DefaultErosionFactor, Mode: mode}
}

// Erode moves every coordinate of an x1, y1, x2, y2 box inward by
// extent*Factor/2.
func (e Eroder) Erode(box [4]float64) [4]float64 {
	x1, y1, x2, y2 := box[0], box[1], box[2], box[3]
	width := x2 - x1
	height := y2 - y1

	dx := width * e.Factor / 2
	dy := width * e.Factor / 2
	if e.Mode == ErodePerAxis {
		dy = height * e.Factor / 2
	}
	return [4]float64{x1 + dx, y1 + dy, x2 - dx, y2 - dy}
}
