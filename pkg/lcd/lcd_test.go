package lcd

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	apperrors "lcdct/internal/errors"
	"lcdct/internal/models"
	"lcdct/pkg/observer"
)

func TestMeasureSingleInsert(t *testing.T) {
	ref := models.NewImage(32, 32)
	paintDisk(ref, 16, 16, 4, 14)
	present, absent := makeStacks(10, 32, 32, ref, 1)

	opts := seeded(3, 7)
	table, err := Measure(context.Background(), present, absent, ref, Specs("LG_CHO_2D"), opts)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	for i, r := range table.Rows {
		assert.Equal(t, "LG_CHO_2D", r.Observer)
		assert.Equal(t, i, r.Reader)
		assert.Equal(t, 14.0, r.InsertHU)
		assert.Equal(t, 14.0, r.InsertDiameterPix)
		assert.GreaterOrEqual(t, r.AUC, 0.0)
		assert.LessOrEqual(t, r.AUC, 1.0)
	}
}

func TestMeasureWithoutSpecsUsesLG(t *testing.T) {
	ref := models.NewImage(32, 32)
	paintDisk(ref, 16, 16, 4, 14)
	present, absent := makeStacks(10, 32, 32, ref, 4)

	want, err := Measure(context.Background(), present, absent, ref, Specs("LG_CHO_2D"), seeded(2, 11))
	require.NoError(t, err)
	got, err := Measure(context.Background(), present, absent, ref, nil, seeded(2, 11))
	require.NoError(t, err)

	require.Equal(t, 2, got.Len())
	assert.Equal(t, want.Rows, got.Rows)
}

func TestMeasureIsDeterministic(t *testing.T) {
	ref := models.NewImage(32, 32)
	paintDisk(ref, 16, 16, 4, 14)
	present, absent := makeStacks(10, 32, 32, ref, 2)
	specs := Specs("LG_CHO_2D", "NPWE_2D")

	render := func() []byte {
		table, err := Measure(context.Background(), present, absent, ref, specs, seeded(4, 123))
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, table))
		return buf.Bytes()
	}
	assert.Equal(t, render(), render())
}

func TestMeasureOrdering(t *testing.T) {
	ref := models.NewImage(48, 48)
	paintDisk(ref, 12, 12, 4, 14)
	paintDisk(ref, 34, 34, 3, 7)
	present, absent := makeStacks(12, 48, 48, ref, 3)

	opts := seeded(2, 5)
	opts.Workers = 4
	specs := Specs("LG_CHO_2D", "NPWE_2D", "GABOR_CHO_2D")
	table, err := Measure(context.Background(), present, absent, ref, specs, opts)
	require.NoError(t, err)
	require.Equal(t, 3*2*2, table.Len())

	expected := []struct {
		observer string
		hu       float64
	}{
		{"LG_CHO_2D", 14}, {"LG_CHO_2D", 7},
		{"NPWE_2D", 14}, {"NPWE_2D", 7},
		{"GABOR_CHO_2D", 14}, {"GABOR_CHO_2D", 7},
	}
	for i, e := range expected {
		for reader := 0; reader < 2; reader++ {
			r := table.Rows[2*i+reader]
			assert.Equal(t, e.observer, r.Observer)
			assert.Equal(t, e.hu, r.InsertHU)
			assert.Equal(t, reader, r.Reader)
		}
	}

	// Diameters come from each insert's own size
	assert.Equal(t, 14.0, table.Rows[0].InsertDiameterPix)
	assert.Equal(t, 10.0, table.Rows[2].InsertDiameterPix)
}

func TestMeasureEmptyReference(t *testing.T) {
	present, absent := makeStacks(4, 16, 16, models.NewImage(16, 16), 4)

	table, err := Measure(context.Background(), present, absent, models.NewImage(16, 16), Specs("LG_CHO_2D"), DefaultOptions())
	require.NoError(t, err)
	assert.True(t, table.Empty())
	assert.Equal(t, 0, table.Len())
}

func TestMeasureRejectsImages(t *testing.T) {
	ref := models.NewImage(16, 16)
	_, absent := makeStacks(4, 16, 16, ref, 5)

	_, err := Measure(context.Background(), models.NewImage(16, 16), absent, ref, Specs("LG_CHO_2D"), DefaultOptions())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "signal_present must be 3D (N, Y, X)")

	_, err = Measure(context.Background(), absent, absent, models.NewImage(8, 8), Specs("LG_CHO_2D"), DefaultOptions())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestMeasureUnknownObserver(t *testing.T) {
	ref := models.NewImage(32, 32)
	paintDisk(ref, 16, 16, 4, 14)
	present, absent := makeStacks(6, 32, 32, ref, 6)

	_, err := Measure(context.Background(), present, absent, ref, Specs("LG_CHO_2D", "HOTELLING_3D"), seeded(2, 1))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
	assert.Contains(t, err.Error(), "HOTELLING_3D")
}

func TestMeasureWithInstance(t *testing.T) {
	ref := models.NewImage(32, 32)
	paintDisk(ref, 16, 16, 4, 14)
	present, absent := makeStacks(10, 32, 32, ref, 7)

	tmpl, err := observer.NewLG(present, absent, 4, 99)
	require.NoError(t, err)

	table, err := Measure(context.Background(), present, absent, ref, []ObserverSpec{Instance(tmpl)}, seeded(2, 8))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "LG_CHO_2D", table.Rows[0].Observer)

	// The template is left as it was
	assert.Equal(t, 99.0, tmpl.Width)
	p, _ := tmpl.Samples()
	assert.Equal(t, []int{10, 32, 32}, p.Shape)
}

func TestWriteCSVAndSummary(t *testing.T) {
	table := models.NewResultTable(
		models.ReaderRecord{Observer: "LG_CHO_2D", Reader: 0, AUC: 0.75, SNR: 1.5, InsertHU: 14, InsertDiameterPix: 14},
		models.ReaderRecord{Observer: "LG_CHO_2D", Reader: 1, AUC: 0.85, SNR: 2.5, InsertHU: 14, InsertDiameterPix: 14},
	)
	table.Annotate("recon", "fbp")
	table.Annotate("dose_level", "100")

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"observer", "reader", "auc", "snr", "insert_HU", "insert_diameter_pix", "recon", "dose_level"}, rows[0])
	assert.Equal(t, []string{"LG_CHO_2D", "1", "0.85", "2.5", "14", "14", "fbp", "100"}, rows[2])

	summary := Summarize(table)
	require.Len(t, summary, 1)
	assert.Equal(t, 2, summary[0].Readers)
	assert.InDelta(t, 0.8, summary[0].AUCMean, 1e-12)
	assert.InDelta(t, math.Sqrt(0.005), summary[0].AUCStd, 1e-12)
	assert.InDelta(t, 2.0, summary[0].SNRMean, 1e-12)

	buf.Reset()
	require.NoError(t, WriteSummary(&buf, table))
	assert.Contains(t, buf.String(), "LG_CHO_2D")
	assert.Contains(t, buf.String(), "fbp")
}

func seeded(readers int, seed uint64) Options {
	opts := DefaultOptions()
	opts.Readers = readers
	opts.Seed = &seed
	return opts
}

// paintDisk writes value strictly within radius of (row, col)
func paintDisk(img *models.Array, row, col, radius int, value float64) {
	for r := 0; r < img.Height(); r++ {
		for c := 0; c < img.Width(); c++ {
			dy, dx := r-row, c-col
			if dy*dy+dx*dx < radius*radius {
				img.Set(value, r, c)
			}
		}
	}
}

// makeStacks returns noisy stacks; present images add the reference scaled to 0.2
func makeStacks(n, h, w int, ref *models.Array, seed uint64) (present, absent *models.Array) {
	rng := rand.New(rand.NewSource(seed))
	present = models.NewStack(n, h, w)
	absent = models.NewStack(n, h, w)
	for k := 0; k < n; k++ {
		p, a := present.Sample(k), absent.Sample(k)
		for i := range p {
			p[i] = 0.2*ref.Data[i] + rng.NormFloat64()
			a[i] = rng.NormFloat64()
		}
	}
	return present, absent
}
