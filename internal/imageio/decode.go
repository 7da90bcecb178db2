// Package imageio decodes raster files into arrays and applies the
// canonical layout expected downstream.
package imageio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"os"

	"github.com/disintegration/imaging"

	"github.com/tendant/simple-detection-data/internal/ndarray"
)

// SupportedExts lists the image extensions picked up by directory scans
var SupportedExts = []string{".jpg", ".tif", ".png"}

// Decode reads an image and returns its raw pixel array.
// Gray images give H x W, everything else H x W x 3. Values keep the
// source bit depth (0-255 or 0-65535). Multi-page TIFFs are stacked along
// a leading page axis.
func Decode(r io.Reader) (*ndarray.Array, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return decodeBytes(data)
}

// LoadFile opens and decodes an image file
func LoadFile(ctx context.Context, path string) (*ndarray.Array, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	a, err := decodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

func decodeBytes(data []byte) (*ndarray.Array, error) {
	if isTIFF(data) {
		a, err := decodeTIFFStack(data)
		if err != nil {
			return nil, fmt.Errorf("image decode failed: %w", err)
		}
		return a, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	return FromImage(img), nil
}

// FromImage converts a decoded image into an array
func FromImage(img image.Image) *ndarray.Array {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()

	switch m := img.(type) {
	case *image.Gray:
		a := ndarray.New(h, w)
		for y := 0; y < h; y++ {
			row := m.Pix[y*m.Stride : y*m.Stride+w]
			for x, v := range row {
				a.Data[y*w+x] = float64(v)
			}
		}
		return a
	case *image.Gray16:
		a := ndarray.New(h, w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				a.Data[y*w+x] = float64(m.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return a
	}

	wide := is16Bit(img.ColorModel())
	a := ndarray.New(h, w, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if !wide {
				r, g, bl = r>>8, g>>8, bl>>8
			}
			i := (y*w + x) * 3
			a.Data[i] = float64(r)
			a.Data[i+1] = float64(g)
			a.Data[i+2] = float64(bl)
		}
	}
	return a
}

func is16Bit(m color.Model) bool {
	return m == color.RGBA64Model || m == color.NRGBA64Model || m == color.Gray16Model
}
