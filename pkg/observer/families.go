package observer

import (
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	apperrors "lcdct/internal/errors"
	"lcdct/internal/models"
	"lcdct/pkg/channels"
)

// LGObserver is a channelized Hotelling observer on Laguerre-Gauss channels
type LGObserver struct {
	samples

	// Channels is the number of Laguerre-Gauss channels
	Channels int

	// Width is the Gaussian envelope width in pixels
	Width float64
}

// NewLG binds a Laguerre-Gauss CHO to both stacks
func NewLG(present, absent *models.Array, nChannels int, width float64) (*LGObserver, error) {
	s, err := newSamples(present, absent)
	if err != nil {
		return nil, err
	}
	return &LGObserver{samples: s, Channels: nChannels, Width: width}, nil
}

func (o *LGObserver) Family() Family { return LGCHO }

func (o *LGObserver) Score(s Split) (Metrics, error) {
	if o.Width <= 0 {
		return Metrics{}, apperrors.Configurationf("Laguerre-Gauss channel width must be positive, got %g", o.Width)
	}
	bank := channels.LaguerreGaussian(s.AbsentTrain.Height(), s.AbsentTrain.Width(), o.Channels, o.Width)
	return scoreCHO(bank, s)
}

// WithSamples rebinds the observer; a positive insertSize resets Width to 2/3 of it
func (o *LGObserver) WithSamples(present, absent *models.Array, insertSize float64) (Observer, error) {
	width := o.Width
	if insertSize > 0 {
		width = lgWidth(insertSize)
	}
	return bound(NewLG(present, absent, o.Channels, width))
}

// DOGObserver is a channelized Hotelling observer on difference-of-Gaussians channels
type DOGObserver struct {
	samples

	// Variant names the DoG parameter set, dense or sparse
	Variant string
}

// NewDOG binds a DoG CHO to both stacks. The family is checked eagerly.
func NewDOG(present, absent *models.Array, family string) (*DOGObserver, error) {
	if _, err := channels.DoGFamily(family); err != nil {
		return nil, err
	}
	s, err := newSamples(present, absent)
	if err != nil {
		return nil, err
	}
	return &DOGObserver{samples: s, Variant: family}, nil
}

func (o *DOGObserver) Family() Family { return DOGCHO }

func (o *DOGObserver) Score(s Split) (Metrics, error) {
	bank, err := channels.DifferenceOfGaussians(s.AbsentTrain.Height(), s.AbsentTrain.Width(), o.Variant)
	if err != nil {
		return Metrics{}, err
	}
	return scoreCHO(bank, s)
}

func (o *DOGObserver) WithSamples(present, absent *models.Array, _ float64) (Observer, error) {
	return bound(NewDOG(present, absent, o.Variant))
}

// GaborObserver is a channelized Hotelling observer on Gabor channels
type GaborObserver struct {
	samples
	Bands        int
	Orientations int
	Phases       []float64
}

// NewGabor binds a Gabor CHO to both stacks. Nil phases means a single zero phase.
func NewGabor(present, absent *models.Array, bands, orientations int, phases []float64) (*GaborObserver, error) {
	s, err := newSamples(present, absent)
	if err != nil {
		return nil, err
	}
	if len(phases) == 0 {
		phases = []float64{0}
	}
	return &GaborObserver{
		samples:      s,
		Bands:        bands,
		Orientations: orientations,
		Phases:       append([]float64(nil), phases...),
	}, nil
}

func (o *GaborObserver) Family() Family { return GaborCHO }

func (o *GaborObserver) Score(s Split) (Metrics, error) {
	bank := channels.Gabor(s.AbsentTrain.Height(), s.AbsentTrain.Width(), o.Bands, o.Orientations, o.Phases)
	return scoreCHO(bank, s)
}

func (o *GaborObserver) WithSamples(present, absent *models.Array, _ float64) (Observer, error) {
	return bound(NewGabor(present, absent, o.Bands, o.Orientations, o.Phases))
}

// NPWEObserver is the non-prewhitening matched filter with an optional eye filter
type NPWEObserver struct {
	samples

	// Eye applies the contrast sensitivity function instead of a flat weighting
	Eye bool
}

// NewNPWE binds an NPWE observer to both stacks
func NewNPWE(present, absent *models.Array, eye bool) (*NPWEObserver, error) {
	s, err := newSamples(present, absent)
	if err != nil {
		return nil, err
	}
	return &NPWEObserver{samples: s, Eye: eye}, nil
}

func (o *NPWEObserver) Family() Family { return NPWE }

// Score builds the filtered template spectrum from the mean training difference image
// and correlates it with every filtered test spectrum.
func (o *NPWEObserver) Score(s Split) (Metrics, error) {
	h, w := s.AbsentTrain.Height(), s.AbsentTrain.Width()
	eye := channels.EyeFilter(h, w, o.Eye)

	diff := make([]float64, h*w)
	meanPresent := meanImage(s.PresentTrain)
	meanAbsent := meanImage(s.AbsentTrain)
	for i := range diff {
		diff[i] = meanPresent[i] - meanAbsent[i]
	}
	template := channels.Spectrum(diff, h, w)
	for i := range template {
		template[i] *= complex(eye[i], 0)
	}

	respond := func(stack *models.Array) []float64 {
		out := make([]float64, stack.Samples())
		for k := range out {
			spec := channels.Spectrum(stack.Sample(k), h, w)
			var sum complex128
			for i, v := range spec {
				sum += cmplx.Conj(template[i]) * v * complex(eye[i], 0)
			}
			out[k] = real(sum)
		}
		return out
	}

	return decisionMetrics(respond(s.AbsentTest), respond(s.PresentTest)), nil
}

func (o *NPWEObserver) WithSamples(present, absent *models.Array, _ float64) (Observer, error) {
	return bound(NewNPWE(present, absent, o.Eye))
}

// meanImage averages a stack over its samples
func meanImage(stack *models.Array) []float64 {
	n := stack.Samples()
	plane := stack.Height() * stack.Width()
	flat := mat.NewDense(n, plane, stack.Data)
	out := make([]float64, plane)
	for j := range out {
		out[j] = mat.Sum(flat.ColView(j)) / float64(n)
	}
	return out
}
