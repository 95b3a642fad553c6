package observer

import (
	apperrors "lcdct/internal/errors"
	"lcdct/internal/models"
)

// Params are the family specific settings used by New
type Params struct {
	// LGChannels is the number of Laguerre-Gauss channels
	LGChannels int

	// LGWidth is used only when no insert size is available
	LGWidth float64

	// DOGFamily selects the dense or sparse difference-of-Gaussians bank
	DOGFamily string

	GaborBands        int
	GaborOrientations int
	GaborPhases       []float64

	// EyeFilter enables the contrast sensitivity weighting of NPWE
	EyeFilter bool
}

// DefaultParams returns the standard observer settings.
func DefaultParams() Params {
	return Params{
		LGChannels:        5,
		DOGFamily:         "dense",
		GaborBands:        4,
		GaborOrientations: 4,
		GaborPhases:       []float64{0},
	}
}

// lgWidth is the Laguerre-Gauss envelope width matched to an insert size
func lgWidth(insertSize float64) float64 {
	return 2.0 / 3.0 * insertSize
}

// New builds an observer of the given family bound to both stacks.
// Laguerre-Gauss width is 2/3 of insertSize, or params.LGWidth when insertSize is zero.
// Zero-valued params fall back to DefaultParams.
//
// Parameters:
//   - family: The observer model to build
//   - present, absent: (N, Y, X) stacks of signal-present and signal-absent ROIs
//   - insertSize: The insert size in pixels, 0 when unknown
//   - params: Family specific settings
//
// Returns:
//   - The observer, holding mean-removed copies of both stacks
//   - A validation error for malformed stacks or a configuration error for bad params
func New(family Family, present, absent *models.Array, insertSize float64, params Params) (Observer, error) {
	switch family {
	case LGCHO:
		width := params.LGWidth
		if insertSize > 0 {
			width = lgWidth(insertSize)
		}
		if width <= 0 {
			return nil, apperrors.Configurationf("LG_CHO_2D needs an insert size or a positive channel width")
		}
		channels := params.LGChannels
		if channels <= 0 {
			channels = DefaultParams().LGChannels
		}
		return bound(NewLG(present, absent, channels, width))
	case DOGCHO:
		variant := params.DOGFamily
		if variant == "" {
			variant = DefaultParams().DOGFamily
		}
		return bound(NewDOG(present, absent, variant))
	case GaborCHO:
		bands, orientations := params.GaborBands, params.GaborOrientations
		if bands <= 0 {
			bands = DefaultParams().GaborBands
		}
		if orientations <= 0 {
			orientations = DefaultParams().GaborOrientations
		}
		return bound(NewGabor(present, absent, bands, orientations, params.GaborPhases))
	case NPWE:
		return bound(NewNPWE(present, absent, params.EyeFilter))
	default:
		return nil, apperrors.Configurationf("unknown observer %q", family.String())
	}
}

// NewNamed resolves name with ParseFamily and calls New.
func NewNamed(name string, present, absent *models.Array, insertSize float64, params Params) (Observer, error) {
	family, err := ParseFamily(name)
	if err != nil {
		return nil, err
	}
	return New(family, present, absent, insertSize, params)
}

// bound converts a concrete constructor result into an interface value without
// producing a typed nil on error
func bound[T Observer](obs T, err error) (Observer, error) {
	if err != nil {
		return nil, err
	}
	return obs, nil
}
