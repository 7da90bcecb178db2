package imageio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/image/tiff"

	"github.com/tendant/simple-detection-data/internal/ndarray"
)

// ErrMalformedTIFF is returned when the directory chain of a TIFF is broken
var ErrMalformedTIFF = errors.New("malformed tiff")

const maxTIFFPages = 4096

func isTIFF(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	magic := string(data[:4])
	return magic == "II*\x00" || magic == "MM\x00*"
}

// tiffPageOffsets walks the image file directory chain and returns the
// offset of every page in file order.
func tiffPageOffsets(data []byte) ([]uint32, binary.ByteOrder, error) {
	var order binary.ByteOrder = binary.LittleEndian
	if data[0] == 'M' {
		order = binary.BigEndian
	}
	size := int64(len(data))

	var offsets []uint32
	seen := make(map[uint32]bool)
	for off := order.Uint32(data[4:8]); off != 0; {
		if seen[off] || len(offsets) >= maxTIFFPages {
			return nil, nil, fmt.Errorf("%w: directory chain does not end", ErrMalformedTIFF)
		}
		if int64(off)+2 > size {
			return nil, nil, fmt.Errorf("%w: directory offset %d out of range", ErrMalformedTIFF, off)
		}
		seen[off] = true
		offsets = append(offsets, off)

		entries := int64(order.Uint16(data[off:]))
		next := int64(off) + 2 + entries*12
		if next+4 > size {
			return nil, nil, fmt.Errorf("%w: directory at %d is truncated", ErrMalformedTIFF, off)
		}
		off = order.Uint32(data[next:])
	}
	if len(offsets) == 0 {
		return nil, nil, fmt.Errorf("%w: no image directory", ErrMalformedTIFF)
	}
	return offsets, order, nil
}

// tiffPage presents a TIFF whose header points at one chosen directory,
// so the single-page decoder reads that page.
type tiffPage struct {
	data   []byte
	header [8]byte
}

func newTIFFPage(data []byte, order binary.ByteOrder, offset uint32) *tiffPage {
	p := &tiffPage{data: data}
	copy(p.header[:4], data[:4])
	order.PutUint32(p.header[4:], offset)
	return p
}

func (p *tiffPage) ReadAt(b []byte, off int64) (int, error) {
	if off >= int64(len(p.data)) {
		return 0, io.EOF
	}
	n := copy(b, p.data[off:])
	for i := off; i < int64(len(p.header)) && i < off+int64(n); i++ {
		b[i-off] = p.header[i]
	}
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

// decodeTIFFStack decodes every page of a multi-page TIFF and stacks them
// along a leading axis: pages x H x W for gray pages, pages x H x W x 3
// otherwise. A single-page file gives the page itself.
func decodeTIFFStack(data []byte) (*ndarray.Array, error) {
	offsets, order, err := tiffPageOffsets(data)
	if err != nil {
		return nil, err
	}

	pages := make([]*ndarray.Array, 0, len(offsets))
	for i, off := range offsets {
		page := newTIFFPage(data, order, off)
		img, err := tiff.Decode(io.NewSectionReader(page, 0, int64(len(data))))
		if err != nil {
			return nil, fmt.Errorf("tiff page %d: %w", i, err)
		}
		pages = append(pages, FromImage(img))
	}
	if len(pages) == 1 {
		return pages[0], nil
	}
	return ndarray.Stack(pages...)
}
