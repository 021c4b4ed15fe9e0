package capture

import (
	"context"
	"net/url"

	"golang.org/x/xerrors"
)

type CaptureRequest struct {
	URL    string
	Width  int
	Height int

	// MaskSelectors are CSS selectors painted black before the screenshot so
	// volatile content does not show up as a difference.
	MaskSelectors []string
	Headers       map[string]string
}

func (r CaptureRequest) Validate() error {
	u, err := url.Parse(r.URL)
	if err != nil {
		return xerrors.Errorf("failed to parse URL %s: %w", r.URL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return xerrors.Errorf("URL must be absolute http(s), got %s", r.URL)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return xerrors.Errorf("invalid viewport %dx%d", r.Width, r.Height)
	}
	return nil
}

// Capturer renders a page and returns the PNG encoded viewport.
type Capturer interface {
	Capture(ctx context.Context, request CaptureRequest) ([]byte, error)
}
