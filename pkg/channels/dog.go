package channels

import (
	"math"

	"gonum.org/v1/gonum/mat"

	apperrors "lcdct/internal/errors"
)

// DoGParams are the geometric-progression parameters of a difference-of-Gaussian bank
type DoGParams struct {
	A0       float64 // base bandwidth
	A        float64 // bandwidth ratio between neighbouring channels
	Q        float64 // ratio between the two Gaussians of one channel
	Channels int
}

// DoG parameter families
var dogFamilies = map[string]DoGParams{
	"dense":  {A0: 0.005, A: 1.4, Q: 1.67, Channels: 10},
	"sparse": {A0: 0.015, A: 2.0, Q: 2.0, Channels: 3},
}

// DoGFamily looks up a named parameter family.
func DoGFamily(name string) (DoGParams, error) {
	p, ok := dogFamilies[name]
	if !ok {
		return DoGParams{}, apperrors.Configurationf("unknown DOG family %q (want dense or sparse)", name)
	}
	return p, nil
}

// DifferenceOfGaussians builds band-pass channels in frequency space and returns
// the real part of their centered spatial-domain counterparts.
//
// Parameters:
//   - h, w: Patch height and width
//   - family: "dense" (10 channels) or "sparse" (3 channels)
//
// Returns:
//   - An (h*w) by channel count matrix
//   - A configuration error for an unknown family
func DifferenceOfGaussians(h, w int, family string) (*mat.Dense, error) {
	p, err := DoGFamily(family)
	if err != nil {
		return nil, err
	}

	f2 := frequencySquared(h, w)
	bank := mat.NewDense(h*w, p.Channels, nil)
	freq := make([]complex128, h*w)
	for c := 0; c < p.Channels; c++ {
		aj := p.A0 * math.Pow(p.A, float64(c))
		qa := p.Q * aj
		for i, v := range f2 {
			g := math.Exp(-v/(qa*qa)/2) - math.Exp(-v/(aj*aj)/2)
			freq[i] = complex(g, 0)
		}
		spatial := FFTShift(IFFT2(IFFTShift(freq, h, w), h, w), h, w)
		for i, v := range spatial {
			bank.Set(i, c, real(v))
		}
	}
	return bank, nil
}

// frequencySquared returns fx^2 + fy^2 on the normalized frequency grid
// f = (i - (n-1)/2) / n for each axis.
func frequencySquared(h, w int) []float64 {
	fx := centered(w)
	for i := range fx {
		fx[i] /= float64(w)
	}
	fy := centered(h)
	for i := range fy {
		fy[i] /= float64(h)
	}
	f2 := make([]float64, h*w)
	for i, y := range fy {
		for j, x := range fx {
			f2[i*w+j] = x*x + y*y
		}
	}
	return f2
}
