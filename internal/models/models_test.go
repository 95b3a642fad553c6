package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayIndexing(t *testing.T) {
	stack := NewStack(2, 3, 4)
	assert.Equal(t, 3, stack.Rank())
	assert.Equal(t, 24, stack.Len())
	assert.Equal(t, 2, stack.Samples())
	assert.Equal(t, 3, stack.Height())
	assert.Equal(t, 4, stack.Width())

	stack.Set(7, 1, 2, 3)
	assert.Equal(t, 7.0, stack.Data[23])
	assert.Equal(t, 7.0, stack.At(1, 2, 3))

	// Sample is a view
	stack.Sample(1)[0] = 5
	assert.Equal(t, 5.0, stack.At(1, 0, 0))

	clone := stack.Clone()
	clone.Data[0] = 9
	assert.Equal(t, 0.0, stack.Data[0])
	assert.True(t, clone.SameShape(stack))
	assert.False(t, stack.SameShape(NewImage(3, 4)))

	assert.Panics(t, func() { stack.At(2, 0, 0) })
	assert.Panics(t, func() { stack.At(0, 0) })
}

func TestFromData(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	img, err := FromData(data, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, img.Samples())
	assert.Equal(t, 6.0, img.At(1, 2))

	_, err = FromData(data, 4, 2)
	assert.Error(t, err)
}

func TestResultTableColumns(t *testing.T) {
	first := NewResultTable(ReaderRecord{Observer: "LG_CHO_2D", Reader: 0})
	first.Annotate("recon", "fbp")
	first.Annotate("dose_level", "100")

	second := NewResultTable(ReaderRecord{Observer: "NPWE_2D", Reader: 0, Extra: map[string]string{"site": "A"}})
	second.Annotate("recon", "DL")

	all := NewResultTable()
	assert.True(t, all.Empty())
	all.Append(first)
	all.Append(second)
	all.Append(nil)

	require.Equal(t, 2, all.Len())
	assert.Equal(t, []string{"recon", "dose_level", "site"}, all.ExtraColumns())
	assert.Equal(t, append(append([]string{}, BaseColumns...), "recon", "dose_level", "site"), all.Columns())
	assert.Equal(t, "DL", all.Rows[1].Extra["recon"])
	assert.Empty(t, all.Rows[1].Extra["dose_level"])
}

func TestResultTableExtraKeysFromRows(t *testing.T) {
	row := ReaderRecord{Observer: "LG_CHO_2D", Extra: map[string]string{
		"site": "A", "recon": "fbp", "dose_level": "100", "kernel": "soft",
	}}
	for i := 0; i < 20; i++ {
		table := NewResultTable(row, ReaderRecord{Extra: map[string]string{"batch": "1", "recon": "DL"}})
		assert.Equal(t, []string{"dose_level", "kernel", "recon", "site", "batch"}, table.ExtraColumns())
	}
}
