// Package observer implements the channelized Hotelling and non-prewhitening eye
// model observers.
//
// An observer owns a pair of signal-present and signal-absent image stacks with each
// sample's own spatial mean removed. A reader study repeatedly splits those stacks into
// training and testing partitions and scores the test partition with a template fitted
// on the training partition.
package observer

import (
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	apperrors "lcdct/internal/errors"
	"lcdct/internal/models"
)

// Family selects an observer model. Its String form is the name used in configs,
// on the command line and in the observer column of results.
type Family int

const (
	// LGCHO is the channelized Hotelling observer with Laguerre-Gauss channels.
	LGCHO Family = iota
	// DOGCHO is the channelized Hotelling observer with difference-of-Gaussians channels.
	DOGCHO
	// GaborCHO is the channelized Hotelling observer with Gabor channels.
	GaborCHO
	// NPWE is the non-prewhitening observer with an optional eye filter.
	NPWE
)

var familyNames = map[Family]string{
	LGCHO:    "LG_CHO_2D",
	DOGCHO:   "DOG_CHO_2D",
	GaborCHO: "GABOR_CHO_2D",
	NPWE:     "NPWE_2D",
}

// Families lists every supported family in a stable order.
var Families = []Family{LGCHO, DOGCHO, GaborCHO, NPWE}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseFamily resolves a family name case-insensitively.
//
// Parameters:
//   - name: A family name such as "LG_CHO_2D"; surrounding spaces are ignored
//
// Returns:
//   - The matching Family
//   - A configuration error naming the value when the name is unknown
func ParseFamily(name string) (Family, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, f := range Families {
		if familyNames[f] == upper {
			return f, nil
		}
	}
	return 0, apperrors.Configurationf("unknown observer %q", name)
}

// Metrics are the figures of merit of one scored split.
type Metrics struct {
	AUC float64
	SNR float64
}

// Split is one train/test partition of both stacks.
type Split struct {
	AbsentTrain  *models.Array
	AbsentTest   *models.Array
	PresentTrain *models.Array
	PresentTest  *models.Array
}

// Observer is a model observer bound to one pair of ROI stacks.
type Observer interface {
	// Family identifies the observer model.
	Family() Family

	// Samples returns the stored mean-removed stacks. Callers must not modify them.
	Samples() (present, absent *models.Array)

	// Split partitions both stacks with a permutation seeded by seed.
	Split(trainFraction float64, seed uint64) (Split, error)

	// Score fits the observer on the training partition and scores the test partition.
	// It never modifies the observer.
	Score(s Split) (Metrics, error)

	// WithSamples returns a copy bound to new stacks. For Laguerre-Gaussian observers
	// the channel width is reset to 2/3 of insertSize when insertSize is positive.
	WithSamples(present, absent *models.Array, insertSize float64) (Observer, error)
}

// samples holds the mean-removed stacks shared by every observer family
type samples struct {
	present *models.Array
	absent  *models.Array
}

// newSamples validates both stacks and stores copies with per-sample means removed
func newSamples(present, absent *models.Array) (samples, error) {
	if present == nil || absent == nil {
		return samples{}, apperrors.Validationf("signal present and signal absent stacks are required")
	}
	if present.Rank() != 3 {
		return samples{}, apperrors.Validationf("signal_present must be 3D (N, Y, X), got shape %v", present.Shape)
	}
	if absent.Rank() != 3 {
		return samples{}, apperrors.Validationf("signal_absent must be 3D (N, Y, X), got shape %v", absent.Shape)
	}
	if present.Height() != absent.Height() || present.Width() != absent.Width() {
		return samples{}, apperrors.Validationf("signal present %v and signal absent %v differ in image size", present.Shape, absent.Shape)
	}
	return samples{present: removeSampleMeans(present), absent: removeSampleMeans(absent)}, nil
}

func (s samples) Samples() (present, absent *models.Array) {
	return s.present, s.absent
}

// Split shuffles each stack independently with generators seeded identically.
// The training part holds floor(trainFraction*N) samples and the rest are tested.
func (s samples) Split(trainFraction float64, seed uint64) (Split, error) {
	aTrain, aTest, err := splitStack(s.absent, trainFraction, seed)
	if err != nil {
		return Split{}, err
	}
	pTrain, pTest, err := splitStack(s.present, trainFraction, seed)
	if err != nil {
		return Split{}, err
	}
	return Split{AbsentTrain: aTrain, AbsentTest: aTest, PresentTrain: pTrain, PresentTest: pTest}, nil
}

func splitStack(stack *models.Array, trainFraction float64, seed uint64) (train, test *models.Array, err error) {
	n := stack.Samples()
	nTrain := int(trainFraction * float64(n))
	if nTrain < 1 || n-nTrain < 1 {
		return nil, nil, apperrors.Validationf("split fraction %g of %d samples leaves an empty partition", trainFraction, n)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return takeSamples(stack, perm[:nTrain]), takeSamples(stack, perm[nTrain:]), nil
}

// takeSamples copies the selected samples into a new stack
func takeSamples(stack *models.Array, idx []int) *models.Array {
	out := models.NewStack(len(idx), stack.Height(), stack.Width())
	for i, k := range idx {
		copy(out.Sample(i), stack.Sample(k))
	}
	return out
}

// removeSampleMeans returns a copy with every sample's own mean subtracted
func removeSampleMeans(stack *models.Array) *models.Array {
	out := stack.Clone()
	for i := 0; i < out.Samples(); i++ {
		img := out.Sample(i)
		if len(img) == 0 {
			continue
		}
		mean := stat.Mean(img, nil)
		for j := range img {
			img[j] -= mean
		}
	}
	return out
}
