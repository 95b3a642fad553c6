// Package inserts locates low contrast inserts in a reference image and crops
// regions of interest around them.
package inserts

import (
	"math"

	apperrors "lcdct/internal/errors"
	"lcdct/internal/models"
)

// KnownCodes are the radiodensity values of the phantom inserts, largest contrast
// first. The same order assigns codes to detected circles by ascending radius.
var KnownCodes = []float64{14, 7, 5, 3}

// DefaultTolerance is the half-width of the value band accepted around a code
const DefaultTolerance = 1.0

// Mask is a boolean image
type Mask struct {
	Height int
	Width  int
	Data   []bool
}

// NewMask allocates an empty h by w mask.
func NewMask(h, w int) *Mask {
	return &Mask{Height: h, Width: w, Data: make([]bool, h*w)}
}

// At reports whether pixel (r, c) is set
func (m *Mask) At(r, c int) bool {
	return m.Data[r*m.Width+c]
}

// Set marks pixel (r, c)
func (m *Mask) Set(r, c int, v bool) {
	m.Data[r*m.Width+c] = v
}

// Count returns the number of set pixels
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// TruthMasks returns one mask per code marking reference pixels within tolerance
// of the code, cleaned with a 3x3 median filter. Masks follow the order of codes.
//
// Parameters:
//   - reference: The 2D reference image
//   - codes: Insert radiodensity codes in HU
//   - tolerance: A pixel matches when |value - code| < tolerance
//
// Returns:
//   - One mask per code, possibly empty
//   - A validation error when reference is not 2D
func TruthMasks(reference *models.Array, codes []float64, tolerance float64) ([]*Mask, error) {
	if reference == nil || reference.Rank() != 2 {
		var shape []int
		if reference != nil {
			shape = reference.Shape
		}
		return nil, apperrors.Validationf("reference image must be 2D (Y, X), got shape %v", shape)
	}
	h, w := reference.Height(), reference.Width()

	masks := make([]*Mask, len(codes))
	for k, code := range codes {
		raw := NewMask(h, w)
		for i, v := range reference.Data {
			raw.Data[i] = math.Abs(v-code) < tolerance
		}
		masks[k] = median3x3(raw)
	}
	return masks, nil
}

// median3x3 applies a 3x3 median filter to a binary mask, which reduces to a
// majority vote. Borders reflect about the edge pixel (-1 maps to 0, n to n-1).
func median3x3(m *Mask) *Mask {
	out := NewMask(m.Height, m.Width)
	for r := 0; r < m.Height; r++ {
		for c := 0; c < m.Width; c++ {
			votes := 0
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					if m.At(reflect(r+dr, m.Height), reflect(c+dc, m.Width)) {
						votes++
					}
				}
			}
			out.Set(r, c, votes >= 5)
		}
	}
	return out
}

func reflect(i, n int) int {
	switch {
	case i < 0:
		return -i - 1
	case i >= n:
		return 2*n - i - 1
	default:
		return i
	}
}
