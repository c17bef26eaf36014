// Package formats loads panoramas into pixel buffers and writes previews.
package formats

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp" // BMP decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF decoder registration

	"github.com/Faultbox/sunalign/pkg/pixmap"
)

var (
	// ErrUnsupportedImage is returned when no decoder recognizes the data.
	ErrUnsupportedImage = errors.New("unsupported image format")
	// ErrImageTooLarge is returned for images above MaxPixels.
	ErrImageTooLarge = errors.New("image too large")
)

const (
	// DefaultPreviewWidth is the width panoramas are reduced to before analysis.
	DefaultPreviewWidth = 1024
	// MaxPixels caps the decoded size, a 16K equirectangular panorama.
	MaxPixels = 16384 * 8192
)

// IsHDR reports whether path names a Radiance image.
func IsHDR(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hdr", ".pic", ".rgbe":
		return true
	}
	return false
}

// IsSupported reports whether Load can handle the file extension.
func IsSupported(path string) bool {
	if IsHDR(path) {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".tga":
		return true
	}
	return false
}

// Load reads an image file into a bottom-up buffer.
func Load(path string) (*pixmap.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if IsHDR(path) {
		return ParseHDR(data)
	}
	// Targa has no signature, so it is picked by extension.
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		return ParseTGA(data)
	}
	return Decode(data)
}

// Decode decodes any registered LDR format (PNG, JPEG, GIF, BMP, TIFF).
// A Radiance signature is detected and handed to ParseHDR.
func Decode(data []byte) (*pixmap.Buffer, error) {
	if hasHDRMagic(data) {
		return ParseHDR(data)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if err := checkPixels(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return FromImage(img), nil
}

// FromImage converts img to a float buffer with channels in [0,1].
// Colors are un-premultiplied and rows are flipped to bottom-up order.
func FromImage(img image.Image) *pixmap.Buffer {
	b := img.Bounds()
	buf := pixmap.NewBuffer(b.Dx(), b.Dy())

	for sy := b.Min.Y; sy < b.Max.Y; sy++ {
		y := b.Max.Y - 1 - sy
		for sx := b.Min.X; sx < b.Max.X; sx++ {
			c := color.NRGBA64Model.Convert(img.At(sx, sy)).(color.NRGBA64)
			buf.Set(sx-b.Min.X, y, [4]float64{
				float64(c.R) / 0xffff,
				float64(c.G) / 0xffff,
				float64(c.B) / 0xffff,
				float64(c.A) / 0xffff,
			})
		}
	}
	return buf
}

// ToImage converts buf to a top-down 16-bit image. Channels are divided by
// scale and clamped to [0,1].
func ToImage(buf *pixmap.Buffer, scale float64) *image.NRGBA64 {
	if scale <= 0 {
		scale = 1
	}
	img := image.NewNRGBA64(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		row := buf.Height - 1 - y
		for x := 0; x < buf.Width; x++ {
			px := buf.At(x, row)
			img.SetNRGBA64(x, y, color.NRGBA64{
				R: quantize(px[0] / scale),
				G: quantize(px[1] / scale),
				B: quantize(px[2] / scale),
				A: quantize(px[3]),
			})
		}
	}
	return img
}

// FitWidth returns buf reduced to maxWidth columns, keeping the aspect ratio.
// Buffers already narrow enough, or a non-positive maxWidth, return buf as is.
// The reduced buffer is opaque.
//
// Channels are resampled as log1p(v) scaled to 16 bits, so a dim sky next to
// a very bright sun keeps its value within a small relative error.
func FitWidth(buf *pixmap.Buffer, maxWidth int) *pixmap.Buffer {
	if maxWidth <= 0 || buf.Width <= maxWidth {
		return buf
	}

	height := buf.Height * maxWidth / buf.Width
	if height < 1 {
		height = 1
	}

	scale := math.Log1p(brightest(buf))
	src := logImage(buf, scale)
	dst := image.NewNRGBA64(image.Rect(0, 0, maxWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return fromLogImage(dst, scale)
}

// logImage stores log1p(v)/scale per channel in an opaque top-down image.
func logImage(buf *pixmap.Buffer, scale float64) *image.NRGBA64 {
	img := image.NewNRGBA64(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		row := buf.Height - 1 - y
		for x := 0; x < buf.Width; x++ {
			px := buf.At(x, row)
			img.SetNRGBA64(x, y, color.NRGBA64{
				R: quantize(math.Log1p(math.Max(px[0], 0)) / scale),
				G: quantize(math.Log1p(math.Max(px[1], 0)) / scale),
				B: quantize(math.Log1p(math.Max(px[2], 0)) / scale),
				A: 0xffff,
			})
		}
	}
	return img
}

// fromLogImage inverts logImage into a bottom-up buffer.
func fromLogImage(img *image.NRGBA64, scale float64) *pixmap.Buffer {
	b := img.Bounds()
	buf := pixmap.NewBuffer(b.Dx(), b.Dy())
	for sy := b.Min.Y; sy < b.Max.Y; sy++ {
		y := b.Max.Y - 1 - sy
		for sx := b.Min.X; sx < b.Max.X; sx++ {
			c := img.NRGBA64At(sx, sy)
			buf.Set(sx-b.Min.X, y, [4]float64{
				math.Expm1(float64(c.R) / 0xffff * scale),
				math.Expm1(float64(c.G) / 0xffff * scale),
				math.Expm1(float64(c.B) / 0xffff * scale),
				1,
			})
		}
	}
	return buf
}

// EncodePNG writes buf as a 16-bit PNG with channels clamped to [0,1].
func EncodePNG(w io.Writer, buf *pixmap.Buffer) error {
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	if err := png.Encode(w, ToImage(buf, 1)); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return nil
}

// Save writes buf to path, as Radiance for .hdr paths and PNG otherwise.
func Save(path string, buf *pixmap.Buffer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	if IsHDR(path) {
		err = EncodeHDR(f, buf)
	} else {
		err = EncodePNG(f, buf)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing file: %w", cerr)
	}
	return err
}

// PreviewPath returns the preview file name for an input image, placed in
// dir, or next to the input when dir is empty.
func PreviewPath(input, dir string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + "_sun_preview.png"
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, name)
}

func brightest(buf *pixmap.Buffer) float64 {
	peak := 0.0
	for i, v := range buf.Pix {
		if i%pixmap.Channels != 3 && v > peak {
			peak = v
		}
	}
	if peak <= 1 {
		return 1
	}
	return peak
}

// checkPixels rejects empty images and images above MaxPixels without
// overflowing on hostile dimensions.
func checkPixels(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrUnsupportedImage, width, height)
	}
	if width > MaxPixels/height {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, width, height, MaxPixels)
	}
	return nil
}

func quantize(v float64) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	return uint16(v*0xffff + 0.5)
}
