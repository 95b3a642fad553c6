package phantom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	apperrors "lcdct/internal/errors"
	"lcdct/pkg/inserts"
)

func TestReference(t *testing.T) {
	opts := DefaultOptions()
	ref, err := Reference(opts)
	require.NoError(t, err)
	assert.Equal(t, []int{128, 128}, ref.Shape)

	masks, err := inserts.TruthMasks(ref, inserts.KnownCodes, inserts.DefaultTolerance)
	require.NoError(t, err)
	for i, m := range masks {
		// A strict disk of radius r spans 2r-1 pixels
		assert.Equal(t, float64(2*opts.Radii[i]-1), inserts.InsertSize(m), "code %g", opts.Codes[i])
		assert.Equal(t, opts.Codes[i], inserts.InsertHU(ref, m))
	}
	assert.Equal(t, 14.0, ref.At(32, 32))
	assert.Equal(t, 0.0, ref.At(64, 64))
}

func TestReferenceInsertsAreLocated(t *testing.T) {
	opts := DefaultOptions()
	ref, err := Reference(opts)
	require.NoError(t, err)

	found, circles, err := inserts.FindInsertCenters(ref, inserts.DefaultLocatorOptions())
	require.NoError(t, err)
	require.Len(t, circles, len(opts.Codes))

	centers := opts.centers()
	for i, c := range circles {
		assert.Equal(t, opts.Codes[i], c.Code)
		assert.InDelta(t, centers[i][0], c.Row, 1, "row of code %g", c.Code)
		assert.InDelta(t, centers[i][1], c.Col, 1, "col of code %g", c.Code)
		assert.InDelta(t, opts.Radii[i], c.Radius, 1, "radius of code %g", c.Code)
	}

	// The estimated reference yields truth masks of about the true insert sizes
	masks, err := inserts.TruthMasks(found, opts.Codes, inserts.DefaultTolerance)
	require.NoError(t, err)
	for i, m := range masks {
		assert.InDelta(t, float64(2*opts.Radii[i]-1), inserts.InsertSize(m), 2, "code %g", opts.Codes[i])
	}
}

func TestGenerate(t *testing.T) {
	opts := DefaultOptions()
	opts.Size = 64
	opts.Samples = 8
	opts.Seed = 3

	present, absent, ref, err := Generate(opts)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 64, 64}, present.Shape)
	assert.Equal(t, []int{8, 64, 64}, absent.Shape)
	assert.Equal(t, []int{64, 64}, ref.Shape)

	mean, std := stat.MeanStdDev(absent.Data, nil)
	assert.InDelta(t, 0, mean, 0.5)
	assert.InDelta(t, 10, std, 0.5)

	again, _, _, err := Generate(opts)
	require.NoError(t, err)
	assert.Equal(t, present.Data, again.Data)

	// Quarter dose doubles the noise
	opts.Dose = 25
	_, absent, _, err = Generate(opts)
	require.NoError(t, err)
	_, std = stat.MeanStdDev(absent.Data, nil)
	assert.InDelta(t, 20, std, 1)
}

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	opts.Radii = opts.Radii[:2]
	_, err := Reference(opts)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))

	opts = DefaultOptions()
	opts.Dose = 0
	_, _, _, err = Generate(opts)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}
