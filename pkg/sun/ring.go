package sun

import (
	"math"

	"github.com/Faultbox/sunalign/pkg/pixmap"
)

// RingSpec is the size of an annotation ring.
type RingSpec struct {
	Radius    float64
	Thickness float64
}

// At places the ring around a center pixel.
func (s RingSpec) At(x, y int) Ring {
	return Ring{CenterX: x, CenterY: y, Radius: s.Radius, Thickness: s.Thickness}
}

// Ring is an annulus of pixels whose distance d from the center satisfies
// Radius-Thickness <= d <= Radius.
type Ring struct {
	CenterX   int
	CenterY   int
	Radius    float64
	Thickness float64
}

// Contains reports whether pixel (x, y) belongs to the ring.
func (r Ring) Contains(x, y int) bool {
	d := math.Hypot(float64(x-r.CenterX), float64(y-r.CenterY))
	return d >= r.Radius-r.Thickness && d <= r.Radius
}

// Paint sets the RGB channels of every buffer pixel inside the ring to rgb.
// Alpha is left untouched and pixels outside the buffer are skipped.
// It returns the number of pixels painted.
func Paint(buf *pixmap.Buffer, r Ring, rgb [3]float64) int {
	if r.Radius < 0 {
		return 0
	}
	reach := int(math.Ceil(r.Radius))
	x0 := max(r.CenterX-reach, 0)
	y0 := max(r.CenterY-reach, 0)
	x1 := min(r.CenterX+reach, buf.Width-1)
	y1 := min(r.CenterY+reach, buf.Height-1)

	n := 0
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if r.Contains(x, y) {
				buf.SetRGB(x, y, rgb)
				n++
			}
		}
	}
	return n
}
