package observer

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	apperrors "lcdct/internal/errors"
	"lcdct/internal/models"
)

// scoreCHO runs the channelized Hotelling protocol for a channel bank:
// project every sample on the channels, fit the Hotelling template
// w = pinv(K) * (mean present - mean absent) on the training split, then
// apply w to the test split.
func scoreCHO(bank *mat.Dense, s Split) (Metrics, error) {
	pixels, nch := bank.Dims()
	if pixels != s.AbsentTrain.Height()*s.AbsentTrain.Width() {
		return Metrics{}, apperrors.Validationf("channel bank has %d pixels, samples have %dx%d",
			pixels, s.AbsentTrain.Height(), s.AbsentTrain.Width())
	}

	absentCh := project(s.AbsentTrain, bank)
	presentCh := project(s.PresentTrain, bank)

	signal := mat.NewVecDense(nch, nil)
	for j := 0; j < nch; j++ {
		signal.SetVec(j, stat.Mean(mat.Col(nil, j, presentCh), nil)-stat.Mean(mat.Col(nil, j, absentCh), nil))
	}

	var kAbsent, kPresent mat.SymDense
	stat.CovarianceMatrix(&kAbsent, absentCh, nil)
	stat.CovarianceMatrix(&kPresent, presentCh, nil)
	pooled := mat.NewSymDense(nch, nil)
	pooled.AddSym(&kAbsent, &kPresent)
	pooled.ScaleSym(0.5, pooled)

	template, err := pinvSolve(pooled, signal)
	if err != nil {
		return Metrics{}, err
	}

	tAbsent := decisions(project(s.AbsentTest, bank), template)
	tPresent := decisions(project(s.PresentTest, bank), template)
	return decisionMetrics(tAbsent, tPresent), nil
}

// project maps an (N, Y, X) stack to its (N, channels) channel responses
func project(stack *models.Array, bank *mat.Dense) *mat.Dense {
	n := stack.Samples()
	pixels, nch := bank.Dims()
	flat := mat.NewDense(n, pixels, stack.Data)
	out := mat.NewDense(n, nch, nil)
	out.Mul(flat, bank)
	return out
}

// decisions applies the template to every row of ch
func decisions(ch *mat.Dense, template *mat.VecDense) []float64 {
	n, _ := ch.Dims()
	t := mat.NewVecDense(n, nil)
	t.MulVec(ch, template)
	return mat.Col(nil, 0, t)
}

// pinvSolve returns pinv(k) * b using the Moore-Penrose pseudo-inverse.
// Singular values at or below max(m, n) * eps * sigma_max are treated as zero,
// which keeps the template finite for near-singular covariance estimates.
func pinvSolve(k mat.Matrix, b *mat.VecDense) (*mat.VecDense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(k, mat.SVDThin); !ok {
		return nil, apperrors.NewProcessingError("covariance SVD did not converge", nil)
	}
	values := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	m, n := k.Dims()
	cutoff := 0.0
	if len(values) > 0 {
		cutoff = float64(max(m, n)) * epsilon * values[0]
	}

	utb := mat.NewVecDense(len(values), nil)
	utb.MulVec(u.T(), b)
	for i, sigma := range values {
		if sigma > cutoff {
			utb.SetVec(i, utb.AtVec(i)/sigma)
		} else {
			utb.SetVec(i, 0)
		}
	}

	out := mat.NewVecDense(n, nil)
	out.MulVec(&v, utb)
	return out, nil
}

// epsilon is the float64 machine epsilon used by LAPACK-style rank cutoffs
var epsilon = math.Nextafter(1, 2) - 1
