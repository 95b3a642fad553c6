package inserts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lcdct/internal/errors"
	"lcdct/internal/models"
)

func TestTruthMasks(t *testing.T) {
	ref := models.NewImage(32, 32)
	paintDisk(ref, 16, 16, 4, 14)
	ref.Set(7, 3, 28) // isolated pixel removed by the median filter
	ref.Set(14.5, 30, 2)

	masks, err := TruthMasks(ref, KnownCodes, DefaultTolerance)
	require.NoError(t, err)
	require.Len(t, masks, 4)

	assert.Equal(t, 45, masks[0].Count())
	assert.False(t, masks[0].At(30, 2))
	for _, m := range masks[1:] {
		assert.Equal(t, 0, m.Count())
	}

	reg, ok := LabelFirstRegion(masks[0])
	require.True(t, ok)
	assert.Equal(t, 13, reg.MinRow)
	assert.Equal(t, 19, reg.MaxRow)
	assert.Equal(t, 7, reg.Size())
	cy, cx := reg.Centroid()
	assert.InDelta(t, 16.0, cy, 1e-12)
	assert.InDelta(t, 16.0, cx, 1e-12)
	assert.Equal(t, 7.0, InsertSize(masks[0]))
	assert.Equal(t, 0.0, InsertSize(masks[1]))

	_, err = TruthMasks(models.NewStack(2, 4, 4), KnownCodes, DefaultTolerance)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestTruthMaskToleranceIsStrict(t *testing.T) {
	ref := models.NewImage(5, 5)
	for i := range ref.Data {
		ref.Data[i] = 6 // exactly one away from 7
	}
	masks, err := TruthMasks(ref, []float64{7}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, masks[0].Count())
}

func TestMedianReflectsBorders(t *testing.T) {
	m := NewMask(5, 5)
	for c := 0; c < 5; c++ {
		m.Set(0, c, true)
	}
	out := median3x3(m)
	for c := 0; c < 5; c++ {
		assert.True(t, out.At(0, c), "border row kept at column %d", c)
		assert.False(t, out.At(1, c))
	}

	single := NewMask(1, 1)
	single.Set(0, 0, true)
	assert.True(t, median3x3(single).At(0, 0))
}

func TestLabelFirstRegion(t *testing.T) {
	m := NewMask(6, 6)
	// Diagonal chain starting at (1, 3)
	m.Set(1, 3, true)
	m.Set(2, 2, true)
	m.Set(3, 1, true)
	// Separate blob later in raster order
	m.Set(5, 5, true)

	reg, ok := LabelFirstRegion(m)
	require.True(t, ok)
	assert.Len(t, reg.Pixels, 3)
	assert.Equal(t, 1, reg.MinRow)
	assert.Equal(t, 3, reg.MaxRow)
	assert.Equal(t, 1, reg.MinCol)
	assert.Equal(t, 3, reg.MaxCol)
	assert.Equal(t, 3, reg.Size())

	_, ok = LabelFirstRegion(NewMask(3, 3))
	assert.False(t, ok)
}

func TestCropROIWithWidth(t *testing.T) {
	mask := rectMask(40, 40, 13, 19, 13, 19)
	stack := rampStack(3, 40, 40)

	roi, ok := CropROI(mask, stack, 14)
	require.True(t, ok)
	assert.Equal(t, []int{3, 15, 15}, roi.Shape)
	assert.Equal(t, stack.At(2, 9, 9), roi.At(2, 0, 0))
	assert.Equal(t, stack.At(1, 23, 23), roi.At(1, 14, 14))

	// The crop owns its data
	roi.Set(-1, 0, 0, 0)
	assert.NotEqual(t, -1.0, stack.At(0, 9, 9))
}

func TestCropROIFromBoundingBox(t *testing.T) {
	mask := rectMask(40, 40, 10, 16, 20, 24)
	img := rampStack(1, 40, 40)
	plane, err := models.FromData(img.Data, 40, 40)
	require.NoError(t, err)

	roi, ok := CropROI(mask, plane, 0)
	require.True(t, ok)
	// Half extents round(7/2) = 4 and round(5/2) = 2
	assert.Equal(t, []int{9, 5}, roi.Shape)
	assert.Equal(t, plane.At(9, 20), roi.At(0, 0))
}

func TestCropROIClipsAtBorder(t *testing.T) {
	mask := rectMask(20, 20, 0, 2, 0, 2)
	roi, ok := CropROI(mask, rampStack(2, 20, 20), 6)
	require.True(t, ok)
	assert.Equal(t, []int{2, 5, 5}, roi.Shape)

	_, ok = CropROI(NewMask(20, 20), rampStack(2, 20, 20), 6)
	assert.False(t, ok)
}

func TestCentroidRoundsHalfToEven(t *testing.T) {
	// Rows 2..3 give a centroid row of 2.5, rounded to 2
	reg, ok := LabelFirstRegion(rectMask(10, 10, 2, 3, 5, 5))
	require.True(t, ok)
	cy, cx := reg.Center()
	assert.Equal(t, 2, cy)
	assert.Equal(t, 5, cx)

	// Rows 3..4 give 3.5, rounded to 4
	reg, _ = LabelFirstRegion(rectMask(10, 10, 3, 4, 5, 5))
	cy, _ = reg.Center()
	assert.Equal(t, 4, cy)
}

func TestInsertHU(t *testing.T) {
	ref := models.NewImage(1, 6)
	copy(ref.Data, []float64{5, 3, 5, 3, 7, 9})
	m := NewMask(1, 6)
	for c := 0; c < 5; c++ {
		m.Set(0, c, true)
	}
	assert.Equal(t, 3.0, InsertHU(ref, m))

	m.Set(0, 1, false)
	assert.Equal(t, 5.0, InsertHU(ref, m))

	assert.Equal(t, 0.0, InsertHU(ref, NewMask(1, 6)))
}

func TestFindInsertCenters(t *testing.T) {
	img := models.NewImage(96, 96)
	paintDisk(img, 24, 24, 9, 1)
	paintDisk(img, 64, 64, 15, 1)

	ref, circles, err := FindInsertCenters(img, DefaultLocatorOptions())
	require.NoError(t, err)
	require.Len(t, circles, 2)

	assert.Equal(t, 14.0, ref.At(24, 24), "smaller insert gets the first code")
	assert.Equal(t, 7.0, ref.At(64, 64))
	assert.Equal(t, 0.0, ref.At(0, 95))
	assert.InDelta(t, 9, circles[0].Radius, 1)
	assert.InDelta(t, 15, circles[1].Radius, 1)
	assert.InDelta(t, 24, circles[0].Row, 1)
	assert.InDelta(t, 64, circles[1].Col, 1)
}

func TestFindInsertCentersUnequalContrast(t *testing.T) {
	img := models.NewImage(128, 128)
	want := []Circle{
		{Row: 32, Col: 32, Radius: 7, Code: 14},
		{Row: 32, Col: 95, Radius: 9, Code: 7},
		{Row: 95, Col: 32, Radius: 12, Code: 5},
		{Row: 95, Col: 95, Radius: 16, Code: 3},
	}
	for _, c := range want {
		drawDisk(img, c)
	}

	ref, circles, err := FindInsertCenters(img, DefaultLocatorOptions())
	require.NoError(t, err)
	require.Len(t, circles, len(want))
	for i, c := range circles {
		assert.Equal(t, want[i].Code, c.Code)
		assert.InDelta(t, want[i].Row, c.Row, 1, "row of code %g", c.Code)
		assert.InDelta(t, want[i].Col, c.Col, 1, "col of code %g", c.Code)
		assert.InDelta(t, want[i].Radius, c.Radius, 1, "radius of code %g", c.Code)
		assert.Equal(t, want[i].Code, ref.At(want[i].Row, want[i].Col))
	}
}

func TestRefineRadius(t *testing.T) {
	img := models.NewImage(64, 64)
	drawDisk(img, Circle{Row: 32, Col: 32, Radius: 12, Code: 1})
	gray, ok := normalizedGray(img)
	require.True(t, ok)
	edges := edgeMap(gray, DefaultLocatorOptions())

	// the coarse search only visits odd radii
	for _, coarse := range []int{11, 13} {
		got := refineRadius(edges, 64, 64, Circle{Row: 32, Col: 32, Radius: coarse})
		assert.InDelta(t, 12, got, 1, "from %d", coarse)
	}
}

func TestFindInsertCentersConstantImage(t *testing.T) {
	ref, circles, err := FindInsertCenters(models.NewImage(30, 30), DefaultLocatorOptions())
	require.NoError(t, err)
	assert.Empty(t, circles)
	for _, v := range ref.Data {
		assert.Equal(t, 0.0, v)
	}

	_, _, err = FindInsertCenters(models.NewStack(1, 3, 3), DefaultLocatorOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestApproximateGroundTruth(t *testing.T) {
	present := models.NewStack(3, 96, 96)
	absent := models.NewStack(3, 96, 96)
	for k := 0; k < 3; k++ {
		plane, err := models.FromData(present.Sample(k), 96, 96)
		require.NoError(t, err)
		paintDisk(plane, 30, 60, 11, 5)
	}

	ref, err := ApproximateGroundTruth(present, absent, DefaultLocatorOptions())
	require.NoError(t, err)
	assert.Equal(t, 14.0, ref.At(30, 60))

	_, err = ApproximateGroundTruth(present, models.NewStack(3, 95, 96), DefaultLocatorOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

// paintDisk sets pixels strictly within radius of (row, col) to value
func paintDisk(img *models.Array, row, col, radius int, value float64) {
	drawDisk(img, Circle{Row: row, Col: col, Radius: radius, Code: value})
}

func rectMask(h, w, r0, r1, c0, c1 int) *Mask {
	m := NewMask(h, w)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			m.Set(r, c, true)
		}
	}
	return m
}

func rampStack(n, h, w int) *models.Array {
	s := models.NewStack(n, h, w)
	for i := range s.Data {
		s.Data[i] = float64(i)
	}
	return s
}
