package formats

import (
	"errors"
	"fmt"

	"github.com/Faultbox/sunalign/pkg/pixmap"
)

// TGA image types.
const (
	TGATypeTrueColor    = 2
	TGATypeGray         = 3
	TGATypeTrueColorRLE = 10
	TGATypeGrayRLE      = 11
)

const tgaHeaderSize = 18

// TGA errors.
var (
	ErrUnsupportedTGA   = errors.New("unsupported TGA image")
	ErrTruncatedTGAData = errors.New("truncated TGA data")
)

// ParseTGA decodes an uncompressed or RLE compressed true-color or grayscale
// Targa image. Color-mapped images are not supported.
//
// Targa stores rows bottom-up by default, the same order as the returned
// buffer; images with the top-down descriptor bit are flipped.
func ParseTGA(data []byte) (*pixmap.Buffer, error) {
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("%w: header", ErrTruncatedTGAData)
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	topDown := data[17]&0x20 != 0

	if colorMapType != 0 {
		return nil, fmt.Errorf("%w: color-mapped", ErrUnsupportedTGA)
	}
	gray := imageType == TGATypeGray || imageType == TGATypeGrayRLE
	switch {
	case imageType != TGATypeTrueColor && imageType != TGATypeTrueColorRLE && !gray:
		return nil, fmt.Errorf("%w: type %d", ErrUnsupportedTGA, imageType)
	case gray && bpp != 8:
		return nil, fmt.Errorf("%w: %d-bit grayscale", ErrUnsupportedTGA, bpp)
	case !gray && bpp != 24 && bpp != 32:
		return nil, fmt.Errorf("%w: %d-bit color", ErrUnsupportedTGA, bpp)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedTGA)
	}
	if err := checkPixels(width, height); err != nil {
		return nil, err
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: image ID", ErrTruncatedTGAData)
	}

	rle := imageType == TGATypeTrueColorRLE || imageType == TGATypeGrayRLE
	size := bpp / 8
	if need := minTGABytes(width*height, size, rle); len(data)-offset < need {
		return nil, fmt.Errorf("%w: %dx%d image needs at least %d bytes of pixel data, have %d",
			ErrTruncatedTGAData, width, height, need, len(data)-offset)
	}

	d := tgaDecoder{
		buf:     pixmap.NewBuffer(width, height),
		data:    data[offset:],
		size:    size,
		topDown: topDown,
	}

	var err error
	if rle {
		err = d.decodeRLE()
	} else {
		err = d.decodeRaw()
	}
	if err != nil {
		return nil, err
	}
	return d.buf, nil
}

type tgaDecoder struct {
	buf     *pixmap.Buffer
	data    []byte
	pos     int
	size    int // bytes per pixel
	topDown bool
}

// minTGABytes is the smallest pixel payload that can hold n pixels: all of
// them raw, or one full 128-pixel run packet per chunk when run-length encoded.
func minTGABytes(n, size int, rle bool) int {
	if !rle {
		return n * size
	}
	return (n + 127) / 128 * (1 + size)
}

func (d *tgaDecoder) decodeRaw() error {
	n := d.buf.Width * d.buf.Height
	for i := 0; i < n; i++ {
		px, ok := d.next()
		if !ok {
			return fmt.Errorf("%w: pixel data", ErrTruncatedTGAData)
		}
		d.store(i, px)
	}
	return nil
}

func (d *tgaDecoder) decodeRLE() error {
	n := d.buf.Width * d.buf.Height
	for i := 0; i < n; {
		if d.pos >= len(d.data) {
			return fmt.Errorf("%w: RLE packet at pixel %d", ErrTruncatedTGAData, i)
		}
		packet := d.data[d.pos]
		d.pos++
		count := int(packet&0x7f) + 1
		if i+count > n {
			count = n - i
		}

		if packet&0x80 != 0 {
			px, ok := d.next()
			if !ok {
				return fmt.Errorf("%w: RLE pixel at %d", ErrTruncatedTGAData, i)
			}
			for ; count > 0; count-- {
				d.store(i, px)
				i++
			}
			continue
		}

		for ; count > 0; count-- {
			px, ok := d.next()
			if !ok {
				return fmt.Errorf("%w: raw pixel at %d", ErrTruncatedTGAData, i)
			}
			d.store(i, px)
			i++
		}
	}
	return nil
}

// next reads one pixel, stored as BGR(A) or a single gray byte.
func (d *tgaDecoder) next() ([4]float64, bool) {
	if d.pos+d.size > len(d.data) {
		return [4]float64{}, false
	}
	p := d.data[d.pos : d.pos+d.size]
	d.pos += d.size

	if d.size == 1 {
		v := float64(p[0]) / 255
		return [4]float64{v, v, v, 1}, true
	}
	a := 1.0
	if d.size == 4 {
		a = float64(p[3]) / 255
	}
	return [4]float64{float64(p[2]) / 255, float64(p[1]) / 255, float64(p[0]) / 255, a}, true
}

// store writes pixel i of the file order into the bottom-up buffer.
func (d *tgaDecoder) store(i int, px [4]float64) {
	x := i % d.buf.Width
	y := i / d.buf.Width
	if d.topDown {
		y = d.buf.Height - 1 - y
	}
	d.buf.Set(x, y, px)
}
