// Package phantom generates synthetic low contrast phantom scans: a reference
// image with circular inserts and noisy signal-present and signal-absent stacks.
package phantom

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "lcdct/internal/errors"
	"lcdct/internal/models"
	"lcdct/pkg/inserts"
)

// Options describe the simulated phantom and acquisition
type Options struct {
	// Size is the image height and width in pixels
	Size int `yaml:"size"`

	// Codes are the insert contrasts in HU; Radii gives each insert's radius in pixels
	Codes []float64 `yaml:"codes"`
	Radii []int     `yaml:"radii"`

	// Samples is the number of repeat scans per stack
	Samples int `yaml:"samples"`

	// NoiseSigma is the noise standard deviation in HU at dose 100
	NoiseSigma float64 `yaml:"noiseSigma"`

	// Dose in percent of the reference dose; noise scales with 1/sqrt(dose)
	Dose int `yaml:"dose"`

	Seed uint64 `yaml:"seed"`
}

// DefaultOptions returns a 128 pixel phantom with the four standard inserts
func DefaultOptions() Options {
	return Options{
		Size:       128,
		Codes:      inserts.KnownCodes,
		Radii:      []int{7, 9, 12, 16},
		Samples:    20,
		NoiseSigma: 10,
		Dose:       100,
	}
}

func (o Options) validate() error {
	if o.Size < 8 {
		return apperrors.Configurationf("phantom size %d is too small", o.Size)
	}
	if len(o.Codes) != len(o.Radii) || len(o.Codes) > 4 {
		return apperrors.Configurationf("phantom needs at most 4 inserts with one radius per code, got %d codes and %d radii",
			len(o.Codes), len(o.Radii))
	}
	if o.Samples < 1 || o.Dose < 1 || o.NoiseSigma < 0 {
		return apperrors.Configurationf("samples, dose and noise must be positive")
	}
	return nil
}

// centers places up to four inserts on the quadrant diagonals
func (o Options) centers() [][2]int {
	q := o.Size / 4
	return [][2]int{{q, q}, {q, o.Size - 1 - q}, {o.Size - 1 - q, q}, {o.Size - 1 - q, o.Size - 1 - q}}
}

// Reference returns the noiseless image: each insert's code inside its disk, 0 elsewhere
func Reference(o Options) (*models.Array, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	ref := models.NewImage(o.Size, o.Size)
	for i, c := range o.centers()[:len(o.Codes)] {
		r := o.Radii[i]
		for y := max(0, c[0]-r); y <= min(o.Size-1, c[0]+r); y++ {
			for x := max(0, c[1]-r); x <= min(o.Size-1, c[1]+r); x++ {
				dy, dx := y-c[0], x-c[1]
				if dy*dy+dx*dx < r*r {
					ref.Set(o.Codes[i], y, x)
				}
			}
		}
	}
	return ref, nil
}

// Generate returns the reference image and o.Samples noisy scans with and without
// the inserts. Equal options give identical stacks.
func Generate(o Options) (present, absent, reference *models.Array, err error) {
	reference, err = Reference(o)
	if err != nil {
		return nil, nil, nil, err
	}
	noise := distuv.Normal{
		Mu:    0,
		Sigma: o.NoiseSigma * math.Sqrt(100/float64(o.Dose)),
		Src:   rand.NewSource(o.Seed),
	}

	present = models.NewStack(o.Samples, o.Size, o.Size)
	absent = models.NewStack(o.Samples, o.Size, o.Size)
	for k := 0; k < o.Samples; k++ {
		p := present.Sample(k)
		for i, v := range reference.Data {
			p[i] = v + noise.Rand()
		}
	}
	for i := range absent.Data {
		absent.Data[i] = noise.Rand()
	}
	return present, absent, reference, nil
}
