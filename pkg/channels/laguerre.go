// Package channels synthesizes the channel banks used by channelized model observers.
//
// Every builder returns a *mat.Dense with one row per pixel (row-major, index y*w+x)
// and one column per channel, so a flattened image projects onto channel space with a
// single matrix product.
package channels

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// centered returns pixel coordinates relative to the patch center, i - (n-1)/2
func centered(n int) []float64 {
	c := make([]float64, n)
	mid := float64(n-1) / 2
	for i := range c {
		c[i] = float64(i) - mid
	}
	return c
}

// radiusSquared returns x^2 + y^2 on the centered h by w grid, row-major
func radiusSquared(h, w int) []float64 {
	xs := centered(w)
	ys := centered(h)
	r2 := make([]float64, h*w)
	for i, y := range ys {
		for j, x := range xs {
			r2[i*w+j] = x*x + y*y
		}
	}
	return r2
}

// Laguerre evaluates the Laguerre polynomials L_0..L_order at every x.
// Column j holds sum_{k=0}^{j} C(j,k) (-x)^k / k!.
func Laguerre(x []float64, order int) *mat.Dense {
	l := mat.NewDense(len(x), order+1, nil)
	for j := 0; j <= order; j++ {
		for i, v := range x {
			sum := 0.0
			for k := 0; k <= j; k++ {
				sum += binomial(j, k) * math.Pow(-v, float64(k)) / factorial(k)
			}
			l.Set(i, j, sum)
		}
	}
	return l
}

// LaguerreGaussian builds nChannels radially symmetric Laguerre-Gaussian channels
// with Gaussian width parameter width, scaled by sqrt(2)/width.
//
// Parameters:
//   - h, w: Patch height and width; the channels are centered on the patch
//   - nChannels: Number of channels, orders 0 to nChannels-1
//   - width: Gaussian envelope width in pixels
//
// Returns:
//   - An (h*w) by nChannels matrix with one row-major channel per column
func LaguerreGaussian(h, w, nChannels int, width float64) *mat.Dense {
	r2 := radiusSquared(h, w)
	arg := make([]float64, len(r2))
	for i, v := range r2 {
		arg[i] = 2 * math.Pi * v / (width * width)
	}
	l := Laguerre(arg, nChannels-1)

	scale := math.Sqrt2 / width
	bank := mat.NewDense(h*w, nChannels, nil)
	for i, v := range r2 {
		envelope := math.Exp(-math.Pi * v / (width * width))
		for j := 0; j < nChannels; j++ {
			bank.Set(i, j, l.At(i, j)*envelope*scale)
		}
	}
	return bank
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

func binomial(n, k int) float64 {
	return factorial(n) / (factorial(k) * factorial(n-k))
}
