package channels

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Gabor builds nBands*nOrientations*len(phases) oriented band-limited channels.
//
// The first band is centered below f0 = 1/8 cycles/pixel and each further band
// halves the cutoff. The Gaussian envelope is sized so its FWHM matches the band's
// frequency span. Channels are ordered band, then orientation, then phase.
func Gabor(h, w, nBands, nOrientations int, phases []float64) *mat.Dense {
	if len(phases) == 0 {
		phases = []float64{0}
	}
	xs := centered(w)
	ys := centered(h)
	r2 := radiusSquared(h, w)

	nch := nBands * nOrientations * len(phases)
	bank := mat.NewDense(h*w, nch, nil)

	f0 := 1.0 / 8
	ch := 0
	for b := 0; b < nBands; b++ {
		f1 := f0 / 2
		fc := (f0 + f1) / 2
		wf := f0 - f1
		ws := 4 * math.Ln2 / (math.Pi * wf)

		for k := 0; k < nOrientations; k++ {
			theta := float64(k) * math.Pi / float64(nOrientations)
			cosT, sinT := math.Cos(theta), math.Sin(theta)
			for _, ph := range phases {
				for i, y := range ys {
					for j, x := range xs {
						p := i*w + j
						amp := math.Exp(-4 * math.Ln2 * r2[p] / (ws * ws))
						bank.Set(p, ch, amp*math.Cos(2*math.Pi*fc*(x*cosT+y*sinT)+ph))
					}
				}
				ch++
			}
		}
		f0 = f1
	}
	return bank
}
