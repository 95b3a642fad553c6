package inserts

import (
	"math"

	"lcdct/internal/models"
)

// Region is one 8-connected component of a mask
type Region struct {
	// Bounding box, inclusive
	MinRow, MinCol int
	MaxRow, MaxCol int

	// Pixels holds (row, col) of every member in discovery order
	Pixels [][2]int
}

// Height is the bounding box row span
func (r Region) Height() int { return r.MaxRow - r.MinRow + 1 }

// Width is the bounding box column span
func (r Region) Width() int { return r.MaxCol - r.MinCol + 1 }

// Size is the larger bounding box span, the insert diameter estimate
func (r Region) Size() int { return max(r.Height(), r.Width()) }

// Centroid returns the mean (row, col) of the member pixels
func (r Region) Centroid() (row, col float64) {
	for _, p := range r.Pixels {
		row += float64(p[0])
		col += float64(p[1])
	}
	n := float64(len(r.Pixels))
	return row / n, col / n
}

// Center returns the centroid rounded half to even
func (r Region) Center() (row, col int) {
	cy, cx := r.Centroid()
	return int(math.RoundToEven(cy)), int(math.RoundToEven(cx))
}

var neighbours = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

// LabelFirstRegion returns the 8-connected component containing the first set pixel
// in raster order. It reports false for an empty mask.
func LabelFirstRegion(m *Mask) (Region, bool) {
	if m == nil {
		return Region{}, false
	}
	seed := -1
	for i, v := range m.Data {
		if v {
			seed = i
			break
		}
	}
	if seed < 0 {
		return Region{}, false
	}

	visited := make([]bool, len(m.Data))
	visited[seed] = true
	queue := [][2]int{{seed / m.Width, seed % m.Width}}
	reg := Region{MinRow: queue[0][0], MinCol: queue[0][1], MaxRow: queue[0][0], MaxCol: queue[0][1]}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		reg.Pixels = append(reg.Pixels, p)
		reg.MinRow, reg.MaxRow = min(reg.MinRow, p[0]), max(reg.MaxRow, p[0])
		reg.MinCol, reg.MaxCol = min(reg.MinCol, p[1]), max(reg.MaxCol, p[1])

		for _, d := range neighbours {
			r, c := p[0]+d[0], p[1]+d[1]
			if r < 0 || r >= m.Height || c < 0 || c >= m.Width {
				continue
			}
			idx := r*m.Width + c
			if m.Data[idx] && !visited[idx] {
				visited[idx] = true
				queue = append(queue, [2]int{r, c})
			}
		}
	}
	return reg, true
}

// InsertSize returns the size of the first region of m, or 0 when m is empty
func InsertSize(m *Mask) float64 {
	reg, ok := LabelFirstRegion(m)
	if !ok {
		return 0
	}
	return float64(reg.Size())
}

// CropROI crops arr around the rounded centroid of the first region of m.
// With width > 0 both half extents are round(width/2); otherwise they are half the
// bounding box height and width. The window [c-half, c+half+1) is clipped to the
// array. Stacks keep their sample axis. The result never aliases arr.
// It reports false when m has no region.
func CropROI(m *Mask, arr *models.Array, width int) (*models.Array, bool) {
	reg, ok := LabelFirstRegion(m)
	if !ok {
		return nil, false
	}
	cy, cx := reg.Center()

	var halfY, halfX int
	if width > 0 {
		halfY = int(math.RoundToEven(float64(width) / 2))
		halfX = halfY
	} else {
		halfY = int(math.RoundToEven(float64(reg.Height()) / 2))
		halfX = int(math.RoundToEven(float64(reg.Width()) / 2))
	}

	h, w := arr.Height(), arr.Width()
	y0, y1 := max(0, cy-halfY), min(h, cy+halfY+1)
	x0, x1 := max(0, cx-halfX), min(w, cx+halfX+1)
	ny, nx := max(0, y1-y0), max(0, x1-x0)

	n := arr.Samples()
	var out *models.Array
	if arr.Rank() == 3 {
		out = models.NewStack(n, ny, nx)
	} else {
		out = models.NewImage(ny, nx)
	}
	if ny == 0 || nx == 0 {
		return out, true
	}
	for k := 0; k < n; k++ {
		src := arr.Sample(k)
		dst := out.Sample(k)
		for r := 0; r < ny; r++ {
			copy(dst[r*nx:(r+1)*nx], src[(y0+r)*w+x0:(y0+r)*w+x1])
		}
	}
	return out, true
}

// InsertHU returns the most frequent reference value under m, the smallest on ties,
// or 0 when m is empty
func InsertHU(reference *models.Array, m *Mask) float64 {
	counts := make(map[float64]int)
	for i, v := range m.Data {
		if v {
			counts[reference.Data[i]]++
		}
	}
	best, bestCount := 0.0, 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}
