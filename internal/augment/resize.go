package augment

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"

	xdraw "golang.org/x/image/draw"

	"github.com/tendant/simple-detection-data/internal/ndarray"
)

// ResizeMax shrinks the image so its longer side is at most MaxSize,
// keeping the aspect ratio. Smaller images and MaxSize <= 0 pass through.
type ResizeMax struct {
	MaxSize int
	// Interpolator defaults to xdraw.BiLinear
	Interpolator xdraw.Interpolator
}

// Augment implements Augmenter
func (r ResizeMax) Augment(_ *rand.Rand, img *ndarray.Array, boxes BoxesOnImage) (*ndarray.Array, BoxesOnImage, error) {
	h, w, c, err := dims(img)
	if err != nil {
		return nil, BoxesOnImage{}, err
	}
	longest := max(h, w)
	if r.MaxSize <= 0 || longest <= r.MaxSize {
		return img, boxes, nil
	}

	scale := float64(r.MaxSize) / float64(longest)
	nh := max(1, int(math.Round(float64(h)*scale)))
	nw := max(1, int(math.Round(float64(w)*scale)))

	interp := r.Interpolator
	if interp == nil {
		interp = xdraw.BiLinear
	}
	out, err := resample(img, nw, nh, interp)
	if err != nil {
		return nil, BoxesOnImage{}, err
	}
	if out.Shape[2] != c {
		return nil, BoxesOnImage{}, fmt.Errorf("resize changed channel count from %d to %d", c, out.Shape[2])
	}

	sx := float64(nw) / float64(w)
	sy := float64(nh) / float64(h)
	resized := BoxesOnImage{Boxes: make([]BoundingBox, len(boxes.Boxes)), Height: nh, Width: nw}
	for i, b := range boxes.Boxes {
		resized.Boxes[i] = BoundingBox{
			X1:    b.X1 * sx,
			Y1:    b.Y1 * sy,
			X2:    b.X2 * sx,
			Y2:    b.Y2 * sy,
			Label: b.Label,
		}
	}
	return out, resized, nil
}

// resample maps the array onto a 16-bit raster spanning its value range,
// scales it at full depth and maps the result back.
func resample(img *ndarray.Array, width, height int, interp xdraw.Interpolator) (*ndarray.Array, error) {
	h, w, c := img.Shape[0], img.Shape[1], img.Shape[2]
	if c != 1 && c != 3 {
		return nil, fmt.Errorf("%w: resize supports 1 or 3 channels, got %d", ndarray.ErrUnsupportedShape, c)
	}
	lo, hi := img.MinMax()
	span := hi - lo
	if span == 0 {
		span = 1
	}

	src := image.NewNRGBA64(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := img.Data[(y*w+x)*c : (y*w+x+1)*c]
			r := toUint16(px[0], lo, span)
			g, b := r, r
			if c == 3 {
				g = toUint16(px[1], lo, span)
				b = toUint16(px[2], lo, span)
			}
			src.SetNRGBA64(x, y, color.NRGBA64{R: r, G: g, B: b, A: 0xffff})
		}
	}

	dst := image.NewNRGBA64(image.Rect(0, 0, width, height))
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	out := ndarray.New(height, width, c)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := dst.NRGBA64At(x, y)
			px := out.Data[(y*width+x)*c : (y*width+x+1)*c]
			px[0] = fromUint16(v.R, lo, span)
			if c == 3 {
				px[1] = fromUint16(v.G, lo, span)
				px[2] = fromUint16(v.B, lo, span)
			}
		}
	}
	return out, nil
}

func toUint16(v, lo, span float64) uint16 {
	return uint16(math.Round((v - lo) / span * 0xffff))
}

func fromUint16(v uint16, lo, span float64) float64 {
	return lo + float64(v)/0xffff*span
}
