package geometry

import (
	"errors"
	"sort"
)

// ErrNoRegions is returned when a label image has no nonzero pixel
var ErrNoRegions = errors.New("no labeled region")

// Region is the extent of one label value in a label image
type Region struct {
	Label int32
	// Box is x1, y1, x2, y2 with exclusive x2, y2
	Box  [4]float64
	Area int
}

// Regions returns one region per distinct nonzero label, ordered by label.
// labels is row-major height x width.
func Regions(labels []int32, height, width int) []Region {
	type extent struct {
		minRow, minCol, maxRow, maxCol, area int
	}
	byLabel := make(map[int32]*extent)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			l := labels[y*width+x]
			if l == 0 {
				continue
			}
			e, ok := byLabel[l]
			if !ok {
				byLabel[l] = &extent{minRow: y, minCol: x, maxRow: y, maxCol: x, area: 1}
				continue
			}
			e.minRow = min(e.minRow, y)
			e.minCol = min(e.minCol, x)
			e.maxRow = max(e.maxRow, y)
			e.maxCol = max(e.maxCol, x)
			e.area++
		}
	}

	out := make([]Region, 0, len(byLabel))
	for l, e := range byLabel {
		// (min_row, min_col, max_row+1, max_col+1) reordered to x/y
		out = append(out, Region{
			Label: l,
			Box:   [4]float64{float64(e.minCol), float64(e.minRow), float64(e.maxCol + 1), float64(e.maxRow + 1)},
			Area:  e.area,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// FirstRegionBox returns the box of the lowest nonzero label
func FirstRegionBox(labels []int32, height, width int) ([4]float64, error) {
	regions := Regions(labels, height, width)
	if len(regions) == 0 {
		return [4]float64{}, ErrNoRegions
	}
	return regions[0].Box, nil
}
