package formats

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/Faultbox/sunalign/pkg/pixmap"
)

// HDR format errors.
var (
	ErrInvalidHDRMagic      = errors.New("invalid HDR magic: expected '#?RADIANCE' or '#?RGBE'")
	ErrUnsupportedHDRFormat = errors.New("unsupported HDR format")
	ErrTruncatedHDRData     = errors.New("truncated HDR data")
)

var hdrMagics = [][]byte{
	[]byte("#?RADIANCE"),
	[]byte("#?RGBE"),
	[]byte("#?AUTOPANO"),
}

// HDRHeader holds the Radiance header fields that affect decoding.
type HDRHeader struct {
	Width  int
	Height int
	// XYZ is set for FORMAT=32-bit_rle_xyze files.
	XYZ bool
}

// ParseHDR decodes a Radiance (.hdr) image from raw bytes.
// Channels are linear RGB floats, alpha is 1 and rows are returned bottom-up.
// XYZE files are converted to linear RGB.
func ParseHDR(data []byte) (*pixmap.Buffer, error) {
	h, err := ParseHDRHeader(data)
	if err != nil {
		return nil, err
	}
	if need := h.Height * minHDRScanline(h.Width); need > len(data) {
		return nil, fmt.Errorf("%w: %dx%d image needs at least %d bytes, have %d",
			ErrTruncatedHDRData, h.Width, h.Height, need, len(data))
	}

	img, err := decodeRGBE(data)
	if err != nil {
		return nil, hdrError(err)
	}
	m, ok := img.(hdr.Image)
	if !ok {
		return nil, fmt.Errorf("%w: decoded %T", ErrUnsupportedHDRFormat, img)
	}

	b := m.Bounds()
	buf := pixmap.NewBuffer(b.Dx(), b.Dy())
	for sy := b.Min.Y; sy < b.Max.Y; sy++ {
		y := b.Max.Y - 1 - sy
		for sx := b.Min.X; sx < b.Max.X; sx++ {
			r, g, bl, _ := m.HDRAt(sx, sy).HDRRGBA()
			buf.Set(sx-b.Min.X, y, [4]float64{
				math.Max(r, 0),
				math.Max(g, 0),
				math.Max(bl, 0),
				1,
			})
		}
	}
	return buf, nil
}

// ParseHDRHeader reads only the header of a Radiance image. Images without a
// positive size or above MaxPixels are rejected.
func ParseHDRHeader(data []byte) (HDRHeader, error) {
	if !hasHDRMagic(data) {
		if len(data) == 0 {
			return HDRHeader{}, fmt.Errorf("%w: empty file", ErrTruncatedHDRData)
		}
		return HDRHeader{}, ErrInvalidHDRMagic
	}

	cfg, err := rgbe.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return HDRHeader{}, hdrError(err)
	}

	h := HDRHeader{
		Width:  cfg.Width,
		Height: cfg.Height,
		XYZ:    cfg.ColorModel == hdrcolor.XYZModel,
	}
	if h.Width <= 0 || h.Height <= 0 {
		return h, fmt.Errorf("%w: dimensions %dx%d", ErrUnsupportedHDRFormat, h.Width, h.Height)
	}
	if err := checkPixels(h.Width, h.Height); err != nil {
		return h, err
	}
	return h, nil
}

// EncodeHDR writes buf as a run-length encoded Radiance image in the usual
// "-Y H +X W" orientation. Negative and non-finite channels are written as 0.
func EncodeHDR(w io.Writer, buf *pixmap.Buffer) error {
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("encoding HDR: %w", err)
	}

	img := hdr.NewRGB(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		row := buf.Height - 1 - y
		for x := 0; x < buf.Width; x++ {
			px := buf.At(x, row)
			img.SetRGB(x, y, hdrcolor.RGB{
				R: radiance(px[0]),
				G: radiance(px[1]),
				B: radiance(px[2]),
			})
		}
	}

	if err := rgbe.Encode(w, img); err != nil {
		return fmt.Errorf("encoding HDR: %w", err)
	}
	return nil
}

// decodeRGBE runs the codec, turning a panic on a corrupt run length into an
// error.
func decodeRGBE(data []byte) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("%w: corrupt scanline: %v", ErrUnsupportedHDRFormat, r)
		}
	}()
	return rgbe.Decode(bytes.NewReader(data))
}

// hdrError maps codec errors onto the package's sentinel errors.
func hdrError(err error) error {
	if errors.Is(err, ErrUnsupportedHDRFormat) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrTruncatedHDRData, err)
	}

	var (
		format      rgbe.FormatError
		unsupported rgbe.UnsupportedError
	)
	if errors.As(err, &format) || errors.As(err, &unsupported) {
		return fmt.Errorf("%w: %v", ErrUnsupportedHDRFormat, err)
	}
	return fmt.Errorf("decoding HDR: %w", err)
}

func hasHDRMagic(data []byte) bool {
	for _, m := range hdrMagics {
		if bytes.HasPrefix(data, m) {
			return true
		}
	}
	return false
}

// minHDRScanline is the fewest bytes a scanline of the given width can take:
// flat pixels, or a run-length header plus one 127-byte run per channel chunk.
func minHDRScanline(width int) int {
	flat := 4 * width
	rle := 4 + 4*2*((width+126)/127)
	return min(flat, rle)
}

func radiance(v float64) float64 {
	if !(v > 0) || math.IsInf(v, 1) {
		return 0
	}
	return v
}
