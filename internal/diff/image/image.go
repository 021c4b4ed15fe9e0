package image

import (
	"comparison-controller/internal/raster"
	"image/color"
	"math"

	"golang.org/x/xerrors"
)

const DefaultThreshold = 0.3

type DiffSpec struct {
	// Threshold is the match sensitivity in [0, 1]; lower is stricter.
	Threshold float64
	// IncludeAA counts pixels detected as anti-aliasing as differences.
	IncludeAA bool
	// Alpha fades unchanged pixels towards white in the output.
	Alpha     float64
	DiffColor color.NRGBA
	AAColor   color.NRGBA
}

func DefaultDiffSpec() DiffSpec {
	return DiffSpec{
		Threshold: DefaultThreshold,
		Alpha:     0.1,
		DiffColor: color.NRGBA{R: 255, A: 255},
		AAColor:   color.NRGBA{R: 255, G: 255, A: 255},
	}
}

func (s DiffSpec) Validate() error {
	if math.IsNaN(s.Threshold) || s.Threshold < 0 || s.Threshold > 1 {
		return xerrors.Errorf("threshold must be within [0, 1], got %v", s.Threshold)
	}
	if math.IsNaN(s.Alpha) || s.Alpha < 0 || s.Alpha > 1 {
		return xerrors.Errorf("alpha must be within [0, 1], got %v", s.Alpha)
	}
	return nil
}

type DiffResult struct {
	Image         *raster.Image
	MismatchCount int64
	// DiffAmount is the share of the canvas flagged as different (0.0 to 1.0).
	DiffAmount float64
}

type Differ interface {
	Calculate(baseline *raster.Image, target *raster.Image) (*DiffResult, error)
}
