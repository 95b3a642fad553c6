// Package dataset reads and writes image stacks stored as directories of
// grayscale image files.
//
// A dataset directory holds one sub-directory per reconstruction, each holding
// dose_### directories with signal_present/ and signal_absent/ image series:
//
//	data/
//	  fbp/
//	    ground_truth.png
//	    dose_100/signal_present/000.png ...
//	    dose_100/signal_absent/000.png ...
//
// Stored gray levels carry an offset (1000 for CT numbers) that is removed on load.
package dataset

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	apperrors "lcdct/internal/errors"
	"lcdct/internal/logger"
	"lcdct/internal/models"
)

const (
	// DefaultOffset is the stored gray level of 0 HU
	DefaultOffset = 1000

	// GroundTruthFile is the reference image name inside a recon directory
	GroundTruthFile = "ground_truth.png"

	PresentDir = "signal_present"
	AbsentDir  = "signal_absent"
)

var imageExtensions = map[string]bool{
	".png": true, ".tif": true, ".tiff": true, ".jpg": true, ".jpeg": true, ".bmp": true,
}

// LoadImage reads one grayscale image and subtracts offset from every pixel.
// 16-bit images keep their full range.
func LoadImage(path string, offset float64) (*models.Array, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	return imageToArray(img, offset), nil
}

// LoadStack reads every image in dir, ordered by the number in the file name,
// into an (N, Y, X) stack
func LoadStack(dir string, offset float64) (*models.Array, error) {
	files, err := imageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperrors.Validationf("no images found in %s", dir)
	}

	var stack *models.Array
	for i, name := range files {
		img, err := LoadImage(filepath.Join(dir, name), offset)
		if err != nil {
			return nil, err
		}
		if stack == nil {
			stack = models.NewStack(len(files), img.Height(), img.Width())
		} else if img.Height() != stack.Height() || img.Width() != stack.Width() {
			return nil, apperrors.Validationf("image %s is %dx%d, expected %dx%d",
				name, img.Height(), img.Width(), stack.Height(), stack.Width())
		}
		copy(stack.Sample(i), img.Data)
	}

	logger.WithFields(logrus.Fields{
		"dir":    dir,
		"images": stack.Samples(),
		"height": stack.Height(),
		"width":  stack.Width(),
	}).Debug("Loaded image stack")
	return stack, nil
}

// LoadDataset reads the signal_present and signal_absent stacks below dir
func LoadDataset(dir string, offset float64) (present, absent *models.Array, err error) {
	present, err = LoadStack(filepath.Join(dir, PresentDir), offset)
	if err != nil {
		return nil, nil, err
	}
	absent, err = LoadStack(filepath.Join(dir, AbsentDir), offset)
	if err != nil {
		return nil, nil, err
	}
	return present, absent, nil
}

// DoseDir is one dose level directory of a reconstruction
type DoseDir struct {
	Dose int
	Path string
}

// DoseLevels lists the dose_### directories of reconDir in ascending dose
func DoseLevels(reconDir string) ([]DoseDir, error) {
	entries, err := os.ReadDir(reconDir)
	if err != nil {
		return nil, fmt.Errorf("error reading recon directory: %w", err)
	}
	var out []DoseDir
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "dose_") {
			continue
		}
		dose, err := strconv.Atoi(strings.TrimPrefix(e.Name(), "dose_"))
		if err != nil {
			continue
		}
		out = append(out, DoseDir{Dose: dose, Path: filepath.Join(reconDir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dose < out[j].Dose })
	return out, nil
}

// DosePath returns the directory of one dose level
func DosePath(reconDir string, dose int) string {
	return filepath.Join(reconDir, fmt.Sprintf("dose_%03d", dose))
}

// SaveImage writes a 2D array as a 16-bit grayscale image after adding offset.
// Values are rounded and clamped to the 16-bit range.
func SaveImage(path string, arr *models.Array, offset float64) error {
	if arr.Rank() != 2 {
		return apperrors.Validationf("SaveImage needs a 2D array, got shape %v", arr.Shape)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	img := floatToGray16(arr.Data, arr.Width(), arr.Height(), offset)
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("error saving image %s: %w", path, err)
	}
	return nil
}

// SaveStack writes every sample of an (N, Y, X) stack to dir as 000.png, 001.png, ...
func SaveStack(dir string, arr *models.Array, offset float64) error {
	if arr.Rank() != 3 {
		return apperrors.Validationf("SaveStack needs a 3D array, got shape %v", arr.Shape)
	}
	for i := 0; i < arr.Samples(); i++ {
		plane, err := models.FromData(arr.Sample(i), arr.Height(), arr.Width())
		if err != nil {
			return err
		}
		if err := SaveImage(filepath.Join(dir, fmt.Sprintf("%03d.png", i)), plane, offset); err != nil {
			return err
		}
	}
	return nil
}

// imageFiles lists image file names in dir, ordered by their embedded number and
// then lexically
func imageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading image directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		ni, nj := extractNumber(files[i]), extractNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})
	return files, nil
}

// extractNumber returns the digits of a file name as a number, or 0
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if n, err := strconv.Atoi(digits.String()); err == nil {
		return n
	}
	return 0
}

// imageToArray converts gray levels to floats minus offset
func imageToArray(img image.Image, offset float64) *models.Array {
	b := img.Bounds()
	out := models.NewImage(b.Dy(), b.Dx())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Data[y*b.Dx()+x] = grayLevel(img, b.Min.X+x, b.Min.Y+y) - offset
		}
	}
	return out
}

// grayLevel reads a pixel at the native bit depth of the image
func grayLevel(img image.Image, x, y int) float64 {
	switch g := img.(type) {
	case *image.Gray16:
		return float64(g.Gray16At(x, y).Y)
	case *image.Gray:
		return float64(g.GrayAt(x, y).Y)
	default:
		return float64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
	}
}

// floatToGray16 converts values plus offset to a 16-bit grayscale image
func floatToGray16(data []float64, width, height int, offset float64) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := math.Round(data[y*width+x] + offset)
			v = math.Min(math.Max(v, 0), math.MaxUint16)
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}
	return img
}
