package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	apperrors "lcdct/internal/errors"
	"lcdct/pkg/channels"
	"lcdct/pkg/observer"
)

var channelsFlags struct {
	family string
	size   int
	width  float64
	out    string
}

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Render an observer's channel bank as an image",
	Example: `  lcdct channels --family LG_CHO_2D --size 31 --out lg.png
  lcdct channels --family NPWE_2D --size 64 --out eye.png`,
	RunE: runChannels,
}

func init() {
	f := channelsCmd.Flags()
	f.StringVar(&channelsFlags.family, "family", "LG_CHO_2D", "Observer family")
	f.IntVar(&channelsFlags.size, "size", 31, "Patch height and width in pixels")
	f.Float64Var(&channelsFlags.width, "width", 0, "Laguerre-Gauss width (default: size/3)")
	f.StringVar(&channelsFlags.out, "out", "channels.png", "Output image")
}

func runChannels(cmd *cobra.Command, args []string) error {
	family, err := observer.ParseFamily(channelsFlags.family)
	if err != nil {
		return err
	}
	bank, err := channelBank(family, channelsFlags.size, observer.Params{
		LGChannels:        cfg.Observer.LGChannels,
		LGWidth:           channelsFlags.width,
		DOGFamily:         cfg.Observer.DOGFamily,
		GaborBands:        cfg.Observer.GaborBands,
		GaborOrientations: cfg.Observer.GaborOrientations,
		GaborPhases:       cfg.Observer.GaborPhases,
		EyeFilter:         cfg.Observer.EyeFilter,
	})
	if err != nil {
		return err
	}
	if err := channels.SavePreview(bank, channelsFlags.size, channelsFlags.size, channelsFlags.out); err != nil {
		return err
	}

	_, n := bank.Dims()
	fmt.Printf("%s: %d channels saved to %s\n", family, n, channelsFlags.out)
	return nil
}

// channelBank builds the pixels by channels matrix of a family. NPWE has no bank,
// so its frequency weighting is shown as a single channel.
func channelBank(family observer.Family, size int, p observer.Params) (*mat.Dense, error) {
	if size < 1 {
		return nil, apperrors.Configurationf("patch size must be positive, got %d", size)
	}
	switch family {
	case observer.LGCHO:
		width := p.LGWidth
		if width <= 0 {
			width = float64(size) / 3
		}
		return channels.LaguerreGaussian(size, size, p.LGChannels, width), nil
	case observer.DOGCHO:
		return channels.DifferenceOfGaussians(size, size, p.DOGFamily)
	case observer.GaborCHO:
		return channels.Gabor(size, size, p.GaborBands, p.GaborOrientations, p.GaborPhases), nil
	default:
		eye := channels.EyeFilter(size, size, p.EyeFilter)
		return mat.NewDense(size*size, 1, eye), nil
	}
}
