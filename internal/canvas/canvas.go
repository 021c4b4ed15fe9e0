package canvas

import (
	"comparison-controller/internal/errs"
	"comparison-controller/internal/raster"
	"fmt"

	"golang.org/x/xerrors"
)

type Size struct {
	Width  int
	Height int
}

// DefaultSize is used when neither an intrinsic nor an explicit size is known.
var DefaultSize = Size{Width: 1280, Height: 720}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

func SizeOf(img *raster.Image) Size {
	return Size{Width: img.Width, Height: img.Height}
}

type Reconciler struct {
	defaultSize Size
}

func NewReconciler(defaultSize Size) *Reconciler {
	if !defaultSize.Valid() {
		defaultSize = DefaultSize
	}
	return &Reconciler{
		defaultSize: defaultSize,
	}
}

// Target picks the capture and composition size. The first non-nil intrinsic
// raster wins; otherwise each explicit dimension greater than zero is used
// and the remaining ones fall back to the default.
func (r *Reconciler) Target(explicit Size, intrinsic ...*raster.Image) Size {
	for _, img := range intrinsic {
		if img != nil {
			return SizeOf(img)
		}
	}

	target := r.defaultSize
	if explicit.Width > 0 {
		target.Width = explicit.Width
	}
	if explicit.Height > 0 {
		target.Height = explicit.Height
	}
	return target
}

// Verify fails with errs.ErrDimensionMismatch unless both rasters share the
// same geometry.
func Verify(baseline *raster.Image, reference *raster.Image) error {
	if baseline.SameSize(reference) {
		return nil
	}
	return errs.New(errs.ErrDimensionMismatch, "", xerrors.Errorf("baseline is %s but reference is %s", SizeOf(baseline), SizeOf(reference)))
}
