package channels

import (
	"math"
)

// Human visual system model constants
const (
	displayPitch = 54.0 / 128.0 // mm per pixel on the reading display
	viewingRatio = 1 / 0.1146   // cycles/degree per cycles/mm at the viewing distance
	eyeBeta      = 1.3
	eyeC         = 0.04
)

// EyeFilter returns the h by w frequency-space weighting used by the NPWE observer.
// With eye set it is the contrast sensitivity function (f^2)^(beta/2) * exp(-c f^2);
// otherwise a uniform matrix normalized by the patch area.
func EyeFilter(h, w int, eye bool) []float64 {
	out := make([]float64, h*w)
	if !eye {
		v := 1 / float64(h*w)
		for i := range out {
			out[i] = v
		}
		return out
	}

	fx := eyeAxis(w)
	fy := eyeAxis(h)
	for i, y := range fy {
		for j, x := range fx {
			f2 := (x*x + y*y) * viewingRatio * viewingRatio
			out[i*w+j] = math.Pow(f2, eyeBeta/2) * math.Exp(-eyeC*f2)
		}
	}
	return out
}

// eyeAxis returns display frequencies (i - (n-1)/2) / (n-1) / pitch
func eyeAxis(n int) []float64 {
	f := centered(n)
	den := float64(n - 1)
	if den == 0 {
		den = 1
	}
	for i := range f {
		f[i] = f[i] / den / displayPitch
	}
	return f
}
