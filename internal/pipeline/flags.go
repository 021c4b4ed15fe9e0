package pipeline

import (
	"comparison-controller/internal/canvas"
	"comparison-controller/internal/capture"
	"comparison-controller/internal/compare"
	diffimage "comparison-controller/internal/diff/image"
	"comparison-controller/internal/env"
	"comparison-controller/internal/overlay"
	"flag"
	"strings"

	"golang.org/x/xerrors"
)

// RequestFlags binds the command line of the comparing binaries.
type RequestFlags struct {
	width         int
	height        int
	opacity       float64
	threshold     float64
	includeAA     bool
	diffFormat    string
	maskSelectors string
	headers       capture.HeaderFlag
}

func (f *RequestFlags) Register(fs *flag.FlagSet) {
	fs.IntVar(&f.width, "width", env.OrDefault("WIDTH", 0), "Viewport width in pixels, defaults to VIEWPORT_WIDTH. Ignored when a design is compared")
	fs.IntVar(&f.height, "height", env.OrDefault("HEIGHT", 0), "Viewport height in pixels, defaults to VIEWPORT_HEIGHT. Ignored when a design is compared")
	fs.Float64Var(&f.opacity, "opacity", env.OrDefault("OPACITY", overlay.DefaultOpacity), "Opacity of the reference in the overlay (0.0 to 1.0)")
	fs.Float64Var(&f.threshold, "threshold", env.OrDefault("THRESHOLD", diffimage.DefaultThreshold), "Matching threshold (0.0 to 1.0), lower is stricter")
	fs.BoolVar(&f.includeAA, "include-aa", env.OrDefault("INCLUDE_AA", false), "Count anti-aliased pixels as differences")
	fs.StringVar(&f.diffFormat, "diff-format", env.OrDefault("DIFF_FORMAT", "pixel"), "Diff format (pixel or rectangle)")
	fs.StringVar(&f.maskSelectors, "mask-selectors", env.OrDefault("MASK_SELECTORS", ""), "Comma-separated list of CSS selectors to mask during capture")
	// CAPTURE_HEADERS holds one "Name: value" per line, -H adds to it.
	for _, line := range strings.Split(env.OrDefault("CAPTURE_HEADERS", ""), "\n") {
		if strings.TrimSpace(line) != "" {
			f.headers = append(f.headers, line)
		}
	}
	fs.Var(&f.headers, "H", "Add HTTP header to page captures (can be used multiple times, e.g., -H 'Authorization: Bearer token')")
}

// Request builds a request from the two positional arguments.
func (f *RequestFlags) Request(args []string) (Request, error) {
	if len(args) != 2 {
		return Request{}, xerrors.Errorf("expected baseline and reference, got %d arguments", len(args))
	}

	format, err := compare.ParseDiffFormat(f.diffFormat)
	if err != nil {
		return Request{}, err
	}

	headers, err := capture.ParseHeaders(f.headers)
	if err != nil {
		return Request{}, err
	}

	opts := compare.DefaultOptions()
	opts.Size = canvas.Size{Width: f.width, Height: f.height}
	opts.Blend.Opacity = f.opacity
	opts.Diff.Threshold = f.threshold
	opts.Diff.IncludeAA = f.includeAA
	opts.Format = format
	if err := opts.Validate(); err != nil {
		return Request{}, err
	}

	return Request{
		Baseline:      args[0],
		Reference:     args[1],
		MaskSelectors: capture.SplitSelectors(f.maskSelectors),
		Headers:       headers,
		Options:       opts,
	}, nil
}
