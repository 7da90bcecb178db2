package geometry

import "math"

// EmptyThreshold is the smallest side a box may have and still count as
// non-empty
const EmptyThreshold = 1e-5

// Clip limits an x1, y1, x2, y2 box to a height x width image
func Clip(box [4]float64, height, width int) [4]float64 {
	h, w := float64(height), float64(width)
	return [4]float64{
		clamp(box[0], 0, w),
		clamp(box[1], 0, h),
		clamp(box[2], 0, w),
		clamp(box[3], 0, h),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// IsEmpty reports whether either side of the box is at most threshold
func IsEmpty(box [4]float64, threshold float64) bool {
	return box[2]-box[0] <= threshold || box[3]-box[1] <= threshold
}
