package compare

import (
	"comparison-controller/internal/canvas"
	diffimage "comparison-controller/internal/diff/image"
	"comparison-controller/internal/overlay"

	"golang.org/x/xerrors"
)

type DiffFormat string

const (
	DiffFormatPixel     DiffFormat = "pixel"
	DiffFormatRectangle DiffFormat = "rectangle"
)

func ParseDiffFormat(s string) (DiffFormat, error) {
	switch DiffFormat(s) {
	case "", DiffFormatPixel:
		return DiffFormatPixel, nil
	case DiffFormatRectangle:
		return DiffFormatRectangle, nil
	default:
		return "", xerrors.Errorf("unknown diff format %q, must be pixel or rectangle", s)
	}
}

type Options struct {
	// Size is the requested viewport. Zero dimensions fall back to the
	// default; an intrinsic source overrides both.
	Size   canvas.Size
	Blend  overlay.BlendSpec
	Diff   diffimage.DiffSpec
	Format DiffFormat
}

func DefaultOptions() Options {
	return Options{
		Blend:  overlay.BlendSpec{Opacity: overlay.DefaultOpacity},
		Diff:   diffimage.DefaultDiffSpec(),
		Format: DiffFormatPixel,
	}
}

func (o Options) Validate() error {
	if o.Size.Width < 0 || o.Size.Height < 0 {
		return xerrors.Errorf("invalid size %s", o.Size)
	}
	if err := o.Blend.Validate(); err != nil {
		return err
	}
	if err := o.Diff.Validate(); err != nil {
		return err
	}
	if _, err := ParseDiffFormat(string(o.Format)); err != nil {
		return err
	}
	return nil
}

func (o Options) differ() diffimage.Differ {
	if o.Format == DiffFormatRectangle {
		return diffimage.NewRectangleDiff(o.Diff)
	}
	return diffimage.NewPixelDiff(o.Diff)
}
