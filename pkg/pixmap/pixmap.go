// Package pixmap holds the in-memory pixel grids shared by the analysis
// packages: RGBA float buffers and single-channel float fields.
package pixmap

import (
	"errors"
	"fmt"
	"math"
)

// Channels is the fixed number of channels per pixel in a Buffer.
const Channels = 4

// Luminance weights (ITU-R BT.601).
const (
	WeightR = 0.299
	WeightG = 0.587
	WeightB = 0.114
)

// ErrPrecondition marks input the analysis refuses to work on: empty grids,
// mismatched sizes or non-finite samples.
var ErrPrecondition = errors.New("precondition violated")

// Buffer is an RGBA image with float channels in [0,1].
// Pixel (x, y) lives at Pix[(y*Width+x)*4 : (y*Width+x)*4+4]. Row 0 is the
// bottom of the image.
type Buffer struct {
	Width  int
	Height int
	Pix    []float64
}

// NewBuffer allocates a zeroed (transparent black) buffer.
func NewBuffer(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height*Channels),
	}
}

// Validate checks the buffer shape.
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("buffer: nil: %w", ErrPrecondition)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("buffer: dimensions %dx%d: %w", b.Width, b.Height, ErrPrecondition)
	}
	if len(b.Pix) != b.Width*b.Height*Channels {
		return fmt.Errorf("buffer: %d samples for %dx%d: %w", len(b.Pix), b.Width, b.Height, ErrPrecondition)
	}
	return nil
}

// Offset returns the index of the first channel of pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * Channels
}

// In reports whether (x, y) lies inside the buffer.
func (b *Buffer) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < b.Width && y < b.Height
}

// At returns the RGBA channels of pixel (x, y).
func (b *Buffer) At(x, y int) [4]float64 {
	i := b.Offset(x, y)
	return [4]float64{b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]}
}

// SetRGB overwrites the color channels of pixel (x, y), leaving alpha alone.
func (b *Buffer) SetRGB(x, y int, rgb [3]float64) {
	i := b.Offset(x, y)
	b.Pix[i] = rgb[0]
	b.Pix[i+1] = rgb[1]
	b.Pix[i+2] = rgb[2]
}

// Set overwrites all four channels of pixel (x, y).
func (b *Buffer) Set(x, y int, rgba [4]float64) {
	copy(b.Pix[b.Offset(x, y):], rgba[:])
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{Width: b.Width, Height: b.Height, Pix: make([]float64, len(b.Pix))}
	copy(c.Pix, b.Pix)
	return c
}

// Field is a single-channel row-major float grid.
type Field struct {
	Width  int
	Height int
	Data   []float64
}

// NewField allocates a zeroed field.
func NewField(width, height int) *Field {
	return &Field{Width: width, Height: height, Data: make([]float64, width*height)}
}

// At returns the value at (x, y).
func (f *Field) At(x, y int) float64 {
	return f.Data[y*f.Width+x]
}

// Set stores v at (x, y).
func (f *Field) Set(x, y int, v float64) {
	f.Data[y*f.Width+x] = v
}

// Validate checks the field shape and rejects NaN and infinities.
func (f *Field) Validate() error {
	if f == nil {
		return fmt.Errorf("field: nil: %w", ErrPrecondition)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("field: dimensions %dx%d: %w", f.Width, f.Height, ErrPrecondition)
	}
	if len(f.Data) != f.Width*f.Height {
		return fmt.Errorf("field: %d samples for %dx%d: %w", len(f.Data), f.Width, f.Height, ErrPrecondition)
	}
	for i, v := range f.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("field: sample %d is %v: %w", i, v, ErrPrecondition)
		}
	}
	return nil
}

// Luminance converts the buffer to a grayscale field using the BT.601
// weights. Alpha is ignored. Non-finite color channels are rejected.
func Luminance(b *Buffer) (*Field, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("luminance: %w", err)
	}

	f := NewField(b.Width, b.Height)
	for p := range f.Data {
		i := p * Channels
		r, g, bl := b.Pix[i], b.Pix[i+1], b.Pix[i+2]
		if !finite(r) || !finite(g) || !finite(bl) {
			return nil, fmt.Errorf("luminance: pixel (%d,%d) not finite: %w", p%b.Width, p/b.Width, ErrPrecondition)
		}
		f.Data[p] = WeightR*r + WeightG*g + WeightB*bl
	}
	return f, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
