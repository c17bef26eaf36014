package sun

import (
	"fmt"
	"math"

	"github.com/Faultbox/sunalign/pkg/pixmap"
)

// Peak is the location of the global maximum of a field.
type Peak struct {
	X, Y  int
	Value float64
}

// FindPeak returns the maximum of f. When several samples share the maximum
// the first one in row-major order wins. f must not be empty.
func FindPeak(f *pixmap.Field) Peak {
	best := 0
	for i := 1; i < len(f.Data); i++ {
		if f.Data[i] > f.Data[best] {
			best = i
		}
	}
	return Peak{X: best % f.Width, Y: best / f.Width, Value: f.Data[best]}
}

// Position is an angular position on the panorama sphere, in degrees.
type Position struct {
	Longitude float64
	Latitude  float64
}

func (p Position) String() string {
	return fmt.Sprintf("lon=%.4f lat=%.4f", p.Longitude, p.Latitude)
}

// ToAngular maps pixel (x, y) of a width x height equirectangular image to
// longitude in [-180, 180) and latitude in [-90, 90).
//
// Column 0 is longitude -180. Row 0 is latitude -90, which is the bottom row
// for bottom-up buffers.
func ToAngular(x, y, width, height int) Position {
	lon := float64(x)*360/float64(width) - 180
	lat := -((float64(y) * -180 / float64(height)) + 90)
	return Position{Longitude: lon, Latitude: lat}
}

// ToPixel is the inverse of ToAngular, rounded to the nearest pixel and
// clamped to the image.
func ToPixel(p Position, width, height int) (x, y int) {
	x = int(math.Round((p.Longitude + 180) * float64(width) / 360))
	y = int(math.Round((p.Latitude + 90) * float64(height) / 180))
	return clampInt(x, 0, width-1), clampInt(y, 0, height-1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
