// Package smooth implements the frequency-domain low-pass filter applied to
// luminance fields before peak search.
package smooth

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/Faultbox/sunalign/pkg/pixmap"
)

// DefaultSigma is the mask width calibrated for ~1k wide panoramas.
const DefaultSigma = 100.0

// Gaussian low-pass filters f in the frequency domain.
//
// The field is transformed with a 2D DFT, the spectrum is centered (zero
// frequency at cols/2, rows/2), multiplied by
//
//	exp(-(((fx-cx)/sigma)^2 + ((fy-cy)/sigma)^2))
//
// and transformed back. The result holds the magnitude of each sample. The
// frequency grid samples [0, n] with n points along each axis.
//
// The input is not modified. Output has the same dimensions.
func Gaussian(f *pixmap.Field, sigma float64) (*pixmap.Field, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("smooth: %w", err)
	}
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("smooth: sigma %v: %w", sigma, pixmap.ErrPrecondition)
	}

	rows, cols := f.Height, f.Width

	spectrum := make([]complex128, rows*cols)
	for i, v := range f.Data {
		spectrum[i] = complex(v, 0)
	}
	p := newPlan(rows, cols)
	p.forward(spectrum)

	// Centre the spectrum and apply the mask in one pass.
	mx := maskAxis(cols, sigma)
	my := maskAxis(rows, sigma)
	filtered := make([]complex128, rows*cols)
	for y := 0; y < rows; y++ {
		sy := wrap(y-rows/2, rows)
		for x := 0; x < cols; x++ {
			sx := wrap(x-cols/2, cols)
			filtered[y*cols+x] = spectrum[sy*cols+sx] * complex(my[y]*mx[x], 0)
		}
	}

	// Inverting the centred spectrum directly only multiplies the spatial
	// result by a unit-modulus phase, which the magnitude discards.
	p.inverse(filtered)

	out := pixmap.NewField(cols, rows)
	for i, c := range filtered {
		out.Data[i] = cmplx.Abs(c)
	}
	return out, nil
}

// maskAxis returns the 1D factor exp(-((g_i-n/2)/sigma)^2) for grid
// positions g_i = i*n/(n-1). The 2D mask is the outer product of two axes.
func maskAxis(n int, sigma float64) []float64 {
	m := make([]float64, n)
	c := float64(n) / 2
	for i := range m {
		var g float64
		if n > 1 {
			g = float64(i) * float64(n) / float64(n-1)
		}
		d := (g - c) / sigma
		m[i] = math.Exp(-d * d)
	}
	return m
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// plan runs separable 2D transforms over a row-major grid.
type plan struct {
	rows, cols int
	rowFFT     *fourier.CmplxFFT
	colFFT     *fourier.CmplxFFT
	column     []complex128
}

func newPlan(rows, cols int) *plan {
	return &plan{
		rows:   rows,
		cols:   cols,
		rowFFT: fourier.NewCmplxFFT(cols),
		colFFT: fourier.NewCmplxFFT(rows),
		column: make([]complex128, rows),
	}
}

func (p *plan) forward(data []complex128) {
	p.apply(data, p.rowFFT.Coefficients, p.colFFT.Coefficients)
}

// inverse is normalized so that inverse(forward(x)) == x.
func (p *plan) inverse(data []complex128) {
	p.apply(data, p.rowFFT.Sequence, p.colFFT.Sequence)
	scale := complex(1/float64(p.rows*p.cols), 0)
	for i := range data {
		data[i] *= scale
	}
}

func (p *plan) apply(data []complex128, rowFn, colFn func(dst, src []complex128) []complex128) {
	for y := 0; y < p.rows; y++ {
		row := data[y*p.cols : (y+1)*p.cols]
		rowFn(row, row)
	}
	for x := 0; x < p.cols; x++ {
		for y := 0; y < p.rows; y++ {
			p.column[y] = data[y*p.cols+x]
		}
		colFn(p.column, p.column)
		for y := 0; y < p.rows; y++ {
			data[y*p.cols+x] = p.column[y]
		}
	}
}
