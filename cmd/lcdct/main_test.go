package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lcdct/internal/errors"
	"lcdct/pkg/dataset"
	"lcdct/pkg/observer"
)

func TestChannelBank(t *testing.T) {
	params := observer.DefaultParams()
	tests := []struct {
		family   observer.Family
		channels int
	}{
		{observer.LGCHO, 5},
		{observer.DOGCHO, 10},
		{observer.GaborCHO, 16},
		{observer.NPWE, 1},
	}
	for _, tt := range tests {
		t.Run(tt.family.String(), func(t *testing.T) {
			bank, err := channelBank(tt.family, 15, params)
			require.NoError(t, err)
			rows, cols := bank.Dims()
			assert.Equal(t, 15*15, rows)
			assert.Equal(t, tt.channels, cols)
		})
	}

	_, err := channelBank(observer.LGCHO, 0, params)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestSynthThenMeasure(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "missing.yaml")
	data := filepath.Join(dir, "data")
	results := filepath.Join(dir, "out", "results.csv")
	metrics := filepath.Join(dir, "metrics.prom")

	rootCmd.SetArgs([]string{"synth", "--config", configFile, "--out", data,
		"--size", "64", "--samples", "8", "--dose", "100"})
	require.NoError(t, rootCmd.Execute())
	assert.FileExists(t, filepath.Join(data, "fbp", dataset.GroundTruthFile))
	assert.DirExists(t, filepath.Join(data, "fbp", "dose_100", dataset.PresentDir))

	rootCmd.SetArgs([]string{"measure", "--config", configFile, "--metrics-file", metrics,
		"--data", data, "--readers", "2", "--seed", "1", "--out", results})
	require.NoError(t, rootCmd.Execute())

	f, err := os.Open(results)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	// one header plus four inserts times two readers
	require.Len(t, rows, 9)
	assert.Equal(t, []string{"observer", "reader", "auc", "snr", "insert_HU", "insert_diameter_pix", "recon", "dose_level"}, rows[0])
	assert.Equal(t, "LG_CHO_2D", rows[1][0])
	assert.Equal(t, "fbp", rows[1][6])
	assert.Equal(t, "100", rows[1][7])
	assert.FileExists(t, metrics)
}
