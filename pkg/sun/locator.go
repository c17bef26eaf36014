// Package sun finds the dominant light source in an equirectangular
// panorama and marks it on the image.
package sun

import (
	"fmt"

	"github.com/Faultbox/sunalign/pkg/pixmap"
	"github.com/Faultbox/sunalign/pkg/smooth"
)

// Red is the default marker color.
var Red = [3]float64{1, 0, 0}

// Default marker rings, in pixels.
var (
	DefaultMarker = RingSpec{Radius: 50, Thickness: 4}
	DefaultPoint  = RingSpec{Radius: 5, Thickness: 4}
)

// Result describes the located light source.
type Result struct {
	Peak     Peak
	Position Position
}

// Locator runs the analysis with a fixed set of parameters.
// The zero value is not usable; create one with NewLocator.
type Locator struct {
	Sigma  float64
	Marker RingSpec
	Point  RingSpec
	Color  [3]float64
}

// Option configures a Locator.
type Option func(*Locator)

// WithSigma sets the width of the frequency-domain smoothing mask.
func WithSigma(sigma float64) Option {
	return func(l *Locator) { l.Sigma = sigma }
}

// WithMarker sets the outer annotation ring.
func WithMarker(r RingSpec) Option {
	return func(l *Locator) { l.Marker = r }
}

// WithPoint sets the inner center ring.
func WithPoint(r RingSpec) Option {
	return func(l *Locator) { l.Point = r }
}

// WithColor sets the RGB color used to paint both rings.
func WithColor(rgb [3]float64) Option {
	return func(l *Locator) { l.Color = rgb }
}

// NewLocator returns a Locator with the calibrated defaults applied before opts.
func NewLocator(opts ...Option) *Locator {
	l := &Locator{
		Sigma:  smooth.DefaultSigma,
		Marker: DefaultMarker,
		Point:  DefaultPoint,
		Color:  Red,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate finds the brightest region of buf, paints the marker rings around it
// in place and returns its pixel and angular position.
//
// Rows of buf are bottom-up, so latitude grows with y.
func (l *Locator) Locate(buf *pixmap.Buffer) (Result, error) {
	gray, err := pixmap.Luminance(buf)
	if err != nil {
		return Result{}, fmt.Errorf("locate: %w", err)
	}

	smoothed, err := smooth.Gaussian(gray, l.Sigma)
	if err != nil {
		return Result{}, fmt.Errorf("locate: %w", err)
	}

	peak := FindPeak(smoothed)

	Paint(buf, l.Marker.At(peak.X, peak.Y), l.Color)
	Paint(buf, l.Point.At(peak.X, peak.Y), l.Color)

	return Result{
		Peak:     peak,
		Position: ToAngular(peak.X, peak.Y, buf.Width, buf.Height),
	}, nil
}

// Locate runs a default Locator over buf.
func Locate(buf *pixmap.Buffer) (Result, error) {
	return NewLocator().Locate(buf)
}
