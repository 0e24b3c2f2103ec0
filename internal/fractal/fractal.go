// Package fractal evaluates escape-time iteration over an axis-aligned
// window of the complex plane.
package fractal

import "math"

// EscapeRadius2 is the squared bailout radius. It is far larger than the
// mathematical minimum of 4 so that the smooth-coloring fraction is
// accurate near the escape boundary.
const EscapeRadius2 = 1 << 18

// Window is a rectangle in complex-plane coordinates mapped linearly
// onto a pixel grid.
type Window struct {
	Xmin, Xmax float64
	Ymin, Ymax float64
}

// At returns the complex point for pixel (col, row) in a width×height
// image. Both axes include their endpoints: column 0 maps to Xmin,
// column width-1 maps to Xmax. Row 0 is the top of the image and maps
// to Ymax.
func (w Window) At(col, row, width, height int) complex128 {
	x := w.Xmin
	if width > 1 {
		x += float64(col) * (w.Xmax - w.Xmin) / float64(width-1)
	}
	y := w.Ymax
	if height > 1 {
		y -= float64(row) * (w.Ymax - w.Ymin) / float64(height-1)
	}
	return complex(x, y)
}

// Evaluate iterates z ← z² + c until |z|² exceeds EscapeRadius2 or
// maxIter is reached. It returns the iteration count and a smooth
// fraction in [0,1) from the log-escape normalization. Interior points
// return (maxIter, 0).
func Evaluate(c complex128, maxIter int) (int, float64) {
	cr, ci := real(c), imag(c)
	var zr, zi float64
	for n := 0; n < maxIter; n++ {
		r2 := zr*zr + zi*zi
		if r2 > EscapeRadius2 {
			// nu = n + 1 - log2(ln|z| / ln R) lands in (n, n+1].
			frac := 1 - math.Log2(math.Log(r2)/math.Log(EscapeRadius2))
			if frac < 0 {
				frac = 0
			}
			if frac >= 1 {
				frac = math.Nextafter(1, 0)
			}
			return n, frac
		}
		zr, zi = zr*zr-zi*zi+cr, 2*zr*zi+ci
	}
	return maxIter, 0
}

// Value collapses an Evaluate result into a single colorable value.
// Interior points yield exactly maxIter, the top of the color range.
func Value(n int, frac float64, maxIter int) float64 {
	if n >= maxIter {
		return float64(maxIter)
	}
	return float64(n) + frac
}
