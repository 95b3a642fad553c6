package channels

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"
)

// PreviewScale is the pixel magnification applied to each channel tile
const PreviewScale = 4

// Preview renders every channel of bank as a grayscale tile, min-max normalized per
// channel, and lays the tiles out in a near-square grid.
func Preview(bank *mat.Dense, h, w int) (*image.NRGBA, error) {
	pixels, nch := bank.Dims()
	if pixels != h*w {
		return nil, fmt.Errorf("bank has %d rows, want %d for a %dx%d patch", pixels, h*w, h, w)
	}
	cols := int(math.Ceil(math.Sqrt(float64(nch))))
	rows := (nch + cols - 1) / cols

	tileW, tileH := w*PreviewScale, h*PreviewScale
	const gap = 2
	canvas := imaging.New(cols*(tileW+gap)+gap, rows*(tileH+gap)+gap, color.Black)

	for c := 0; c < nch; c++ {
		tile := channelImage(mat.Col(nil, c, bank), h, w)
		scaled := imaging.Resize(tile, tileW, tileH, imaging.NearestNeighbor)
		pos := image.Pt(gap+(c%cols)*(tileW+gap), gap+(c/cols)*(tileH+gap))
		canvas = imaging.Paste(canvas, scaled, pos)
	}
	return canvas, nil
}

// SavePreview writes Preview(bank) to path; the format follows the file extension
func SavePreview(bank *mat.Dense, h, w int, path string) error {
	img, err := Preview(bank, h, w)
	if err != nil {
		return err
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("error saving channel preview: %w", err)
	}
	return nil
}

// channelImage normalizes one channel to 0-255
func channelImage(values []float64, h, w int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			g := 0.0
			if span > 0 {
				g = (values[i*w+j] - lo) / span * 255
			}
			img.SetGray(j, i, color.Gray{Y: uint8(g)})
		}
	}
	return img
}
