package inserts

import (
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/blur"

	apperrors "lcdct/internal/errors"
	"lcdct/internal/logger"
	"lcdct/internal/models"
)

// LocatorOptions tune the circular Hough search used when no reference image exists.
type LocatorOptions struct {
	// MinRadius and MaxRadius bound the search. Candidates are collected every second
	// radius from MinRadius and refined to the best single pixel radius afterwards.
	MinRadius int
	MaxRadius int

	// MaxInserts caps the number of circles kept.
	MaxInserts int

	// MinDistance is the minimum row and column separation between circle centers.
	MinDistance int

	// BlurRadius is the bild Gaussian radius applied before edge detection.
	// The resulting standard deviation is sqrt(2*BlurRadius) pixels.
	BlurRadius float64

	// LowThreshold and HighThreshold are the hysteresis thresholds on the gradient
	// magnitude of the image rescaled to [0, 1]. Weak edges survive only when
	// connected to a strong one.
	LowThreshold  float64
	HighThreshold float64

	// PeakThreshold is the fraction of the strongest normalized vote kept as a candidate.
	PeakThreshold float64

	// Codes are assigned to detected circles by ascending radius.
	Codes []float64
}

// DefaultLocatorOptions returns the search settings for the standard phantom.
func DefaultLocatorOptions() LocatorOptions {
	return LocatorOptions{
		MinRadius:     7,
		MaxRadius:     22,
		MaxInserts:    4,
		MinDistance:   20,
		BlurRadius:    4,
		LowThreshold:  0.05,
		HighThreshold: 0.1,
		PeakThreshold: 0.5,
		Codes:         KnownCodes,
	}
}

// Circle is a detected insert outline.
type Circle struct {
	Row, Col int
	Radius   int
	Votes    float64
	Code     float64
}

// FindInsertCenters detects circular inserts in a 2D image and returns a reference
// image holding each insert's code inside its disk and zero elsewhere.
// Detection is best effort: an image without clear circles yields an empty reference.
//
// Parameters:
//   - img: The 2D image to search, in any value range
//   - opts: Radius range, thresholds and the codes assigned by ascending radius
//
// Returns:
//   - The rasterized reference image
//   - The detected circles ordered by radius, each carrying its code
//   - A validation error for a non-2D image or a configuration error for bad radii
func FindInsertCenters(img *models.Array, opts LocatorOptions) (*models.Array, []Circle, error) {
	if img == nil || img.Rank() != 2 {
		return nil, nil, apperrors.Validationf("insert search needs a 2D image")
	}
	if opts.MinRadius < 1 || opts.MaxRadius <= opts.MinRadius {
		return nil, nil, apperrors.Configurationf("invalid radius range [%d, %d)", opts.MinRadius, opts.MaxRadius)
	}
	h, w := img.Height(), img.Width()
	out := models.NewImage(h, w)

	gray, ok := normalizedGray(img)
	if !ok {
		logger.Logger.Warn("Constant image, no inserts to locate")
		return out, nil, nil
	}

	edges := edgeMap(gray, opts)
	circles := houghCircles(edges, h, w, opts)

	// Smallest radius gets the first code
	sort.SliceStable(circles, func(i, j int) bool { return circles[i].Radius < circles[j].Radius })
	if len(circles) > len(opts.Codes) {
		circles = circles[:len(opts.Codes)]
	}
	for i := range circles {
		circles[i].Code = opts.Codes[i]
		drawDisk(out, circles[i])
	}

	logger.WithField("circles", len(circles)).Debug("Hough insert search finished")
	return out, circles, nil
}

// ApproximateGroundTruth estimates a reference image from repeated scans: the mean
// signal-present image minus the mean signal-absent image is searched for circles.
func ApproximateGroundTruth(present, absent *models.Array, opts LocatorOptions) (*models.Array, error) {
	if present == nil || absent == nil || present.Rank() != 3 || absent.Rank() != 3 {
		return nil, apperrors.Validationf("ground truth estimation needs two 3D stacks")
	}
	if present.Height() != absent.Height() || present.Width() != absent.Width() {
		return nil, apperrors.Validationf("stacks %v and %v differ in image size", present.Shape, absent.Shape)
	}
	diff := models.NewImage(present.Height(), present.Width())
	mp, ma := stackMean(present), stackMean(absent)
	for i := range diff.Data {
		diff.Data[i] = mp[i] - ma[i]
	}
	ref, _, err := FindInsertCenters(diff, opts)
	return ref, err
}

func stackMean(stack *models.Array) []float64 {
	out := make([]float64, stack.Height()*stack.Width())
	n := stack.Samples()
	for k := 0; k < n; k++ {
		for i, v := range stack.Sample(k) {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(n)
	}
	return out
}

// normalizedGray maps the image range to 0-255. It reports false for constant images.
func normalizedGray(img *models.Array) (*image.Gray, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range img.Data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if !(hi > lo) {
		return nil, false
	}
	h, w := img.Height(), img.Width()
	gray := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range img.Data {
		gray.Pix[i] = uint8(math.Round((v - lo) / (hi - lo) * 255))
	}
	return gray, true
}

// edgeMap smooths the image, takes the Sobel gradient and keeps pixels that are
// maxima along their dominant gradient axis and pass the hysteresis thresholds.
func edgeMap(gray *image.Gray, opts LocatorOptions) []bool {
	b := gray.Bounds()
	h, w := b.Dy(), b.Dx()

	smooth := blur.Gaussian(gray, opts.BlurRadius)
	level := func(r, c int) float64 {
		r, c = min(max(r, 0), h-1), min(max(c, 0), w-1)
		return float64(smooth.Pix[r*smooth.Stride+c*4]) / 255
	}

	gx := make([]float64, h*w)
	gy := make([]float64, h*w)
	mag := make([]float64, h*w)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			i := r*w + c
			gx[i] = level(r-1, c+1) + 2*level(r, c+1) + level(r+1, c+1) -
				level(r-1, c-1) - 2*level(r, c-1) - level(r+1, c-1)
			gy[i] = level(r+1, c-1) + 2*level(r+1, c) + level(r+1, c+1) -
				level(r-1, c-1) - 2*level(r-1, c) - level(r-1, c+1)
			mag[i] = math.Hypot(gx[i], gy[i])
		}
	}

	at := func(r, c int) float64 {
		r, c = min(max(r, 0), h-1), min(max(c, 0), w-1)
		return mag[r*w+c]
	}
	weak := make([]bool, h*w)
	edges := make([]bool, h*w)
	var queue []int
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			i := r*w + c
			m := mag[i]
			if m < opts.LowThreshold || m == 0 {
				continue
			}
			if math.Abs(gx[i]) >= math.Abs(gy[i]) {
				weak[i] = m >= at(r, c-1) && m >= at(r, c+1)
			} else {
				weak[i] = m >= at(r-1, c) && m >= at(r+1, c)
			}
			if weak[i] && m >= opts.HighThreshold {
				edges[i] = true
				queue = append(queue, i)
			}
		}
	}

	// grow strong edges through connected weak ones
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		r, c := i/w, i%w
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				y, x := r+dr, c+dc
				if y < 0 || y >= h || x < 0 || x >= w {
					continue
				}
				if j := y*w + x; weak[j] && !edges[j] {
					edges[j] = true
					queue = append(queue, j)
				}
			}
		}
	}
	return edges
}

// shellOffsets returns the integer offsets whose distance from the origin lies in
// [lo, hi].
func shellOffsets(lo, hi float64) [][2]int {
	var out [][2]int
	n := int(math.Ceil(hi))
	for dy := -n; dy <= n; dy++ {
		for dx := -n; dx <= n; dx++ {
			if d := math.Hypot(float64(dy), float64(dx)); d >= lo && d <= hi {
				out = append(out, [2]int{dy, dx})
			}
		}
	}
	return out
}

// radiusShell holds the offsets where the smoothed outline of a strict disk of the
// given radius lands: between the last pixel inside and the first pixel outside.
func radiusShell(radius int) [][2]int {
	return shellOffsets(float64(radius)-1.25, float64(radius)+0.25)
}

// searchShell covers the outlines of radius and radius+1 at once.
func searchShell(radius int) [][2]int {
	return shellOffsets(float64(radius)-1.25, float64(radius)+1.25)
}

// shellVotes is the fraction of offsets around (row, col) that land on an edge.
func shellVotes(edges []bool, h, w, row, col int, offsets [][2]int) float64 {
	if len(offsets) == 0 {
		return 0
	}
	hits := 0
	for _, o := range offsets {
		y, x := row+o[0], col+o[1]
		if y >= 0 && y < h && x >= 0 && x < w && edges[y*w+x] {
			hits++
		}
	}
	return float64(hits) / float64(len(offsets))
}

// houghCircles votes every edge pixel onto candidate centers for every second radius,
// normalizes by shell size, keeps the strongest well separated peaks and then refines
// each peak's radius to a single pixel.
func houghCircles(edges []bool, h, w int, opts LocatorOptions) []Circle {
	var candidates []Circle
	best := 0.0

	for radius := opts.MinRadius; radius < opts.MaxRadius; radius += 2 {
		offsets := searchShell(radius)
		acc := make([]float64, h*w)
		for i, e := range edges {
			if !e {
				continue
			}
			r, c := i/w, i%w
			for _, o := range offsets {
				cy, cx := r+o[0], c+o[1]
				if cy >= 0 && cy < h && cx >= 0 && cx < w {
					acc[cy*w+cx]++
				}
			}
		}
		norm := float64(len(offsets))
		for i := range acc {
			acc[i] /= norm
		}

		for r := 0; r < h; r++ {
			for c := 0; c < w; c++ {
				v := acc[r*w+c]
				if v == 0 || !localMax(acc, h, w, r, c) {
					continue
				}
				candidates = append(candidates, Circle{Row: r, Col: c, Radius: radius, Votes: v})
				best = math.Max(best, v)
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Votes > candidates[j].Votes })

	var picked []Circle
	for _, cand := range candidates {
		if len(picked) == opts.MaxInserts || cand.Votes < opts.PeakThreshold*best {
			break
		}
		clash := false
		for _, p := range picked {
			if abs(p.Row-cand.Row) < opts.MinDistance && abs(p.Col-cand.Col) < opts.MinDistance {
				clash = true
				break
			}
		}
		if !clash {
			picked = append(picked, cand)
		}
	}

	for i := range picked {
		picked[i].Radius = refineRadius(edges, h, w, picked[i])
	}
	return picked
}

// refineRadius picks the single pixel radius around a coarse candidate whose outline
// shell holds the largest share of edges.
func refineRadius(edges []bool, h, w int, c Circle) int {
	bestRadius, bestVotes := c.Radius, -1.0
	for radius := max(1, c.Radius-1); radius <= c.Radius+2; radius++ {
		if v := shellVotes(edges, h, w, c.Row, c.Col, radiusShell(radius)); v > bestVotes {
			bestRadius, bestVotes = radius, v
		}
	}
	return bestRadius
}

func localMax(acc []float64, h, w, r, c int) bool {
	v := acc[r*w+c]
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			y, x := r+dr, c+dc
			if (dr == 0 && dc == 0) || y < 0 || y >= h || x < 0 || x >= w {
				continue
			}
			if acc[y*w+x] > v {
				return false
			}
		}
	}
	return true
}

// drawDisk fills pixels strictly inside the circle with its code
func drawDisk(img *models.Array, c Circle) {
	r2 := float64(c.Radius * c.Radius)
	for r := max(0, c.Row-c.Radius); r <= min(img.Height()-1, c.Row+c.Radius); r++ {
		for col := max(0, c.Col-c.Radius); col <= min(img.Width()-1, c.Col+c.Radius); col++ {
			dy, dx := float64(r-c.Row), float64(col-c.Col)
			if dy*dy+dx*dx < r2 {
				img.Set(c.Code, r, col)
			}
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
