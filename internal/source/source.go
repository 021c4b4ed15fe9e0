package source

import (
	"comparison-controller/internal/canvas"
	"comparison-controller/internal/capture"
	"comparison-controller/internal/errs"
	"comparison-controller/internal/figma"
	"comparison-controller/internal/raster"
	"comparison-controller/internal/storage"
	"context"

	"golang.org/x/xerrors"
)

// Source produces one side of a comparison.
type Source interface {
	// Acquire returns the raster. Sources without an intrinsic size render
	// at the given size; intrinsic ones ignore it.
	Acquire(ctx context.Context, size canvas.Size) (*raster.Image, error)
	// Intrinsic reports whether the raster has a fixed size of its own.
	Intrinsic() bool
	// String returns the reference the source was created from.
	String() string
}

// Exporter renders a node of a design file as encoded image bytes.
type Exporter interface {
	ExportNode(ctx context.Context, fileKey string, nodeID string) ([]byte, error)
}

type Page struct {
	capturer capture.Capturer
	request  capture.CaptureRequest
}

// NewPage captures url with the given masks and extra headers. Width and
// Height of the request are filled in by Acquire.
func NewPage(capturer capture.Capturer, url string, maskSelectors []string, headers map[string]string) *Page {
	return &Page{
		capturer: capturer,
		request: capture.CaptureRequest{
			URL:           url,
			MaskSelectors: maskSelectors,
			Headers:       headers,
		},
	}
}

func (p *Page) Acquire(ctx context.Context, size canvas.Size) (*raster.Image, error) {
	request := p.request
	request.Width = size.Width
	request.Height = size.Height

	data, err := p.capturer.Capture(ctx, request)
	if err != nil {
		return nil, errs.WithSource(err, p.String())
	}
	return decode(data, p.String())
}

func (p *Page) Intrinsic() bool {
	return false
}

func (p *Page) String() string {
	return p.request.URL
}

type Design struct {
	raw       string
	reference figma.Reference
	exporter  Exporter
}

// NewDesign parses the design link right away so a malformed reference is
// reported before anything is captured or exported.
func NewDesign(exporter Exporter, raw string) (*Design, error) {
	reference, err := figma.ParseReference(raw)
	if err != nil {
		return nil, err
	}
	return &Design{
		raw:       raw,
		reference: reference,
		exporter:  exporter,
	}, nil
}

func (d *Design) Acquire(ctx context.Context, size canvas.Size) (*raster.Image, error) {
	data, err := d.exporter.ExportNode(ctx, d.reference.FileKey, d.reference.NodeID)
	if err != nil {
		return nil, errs.WithSource(err, d.String())
	}
	return decode(data, d.String())
}

func (d *Design) Intrinsic() bool {
	return true
}

func (d *Design) String() string {
	return d.raw
}

func (d *Design) Reference() figma.Reference {
	return d.reference
}

// Stored reads a previously captured or uploaded image from storage.
type Stored struct {
	url     string
	storage storage.Storage
}

func NewStored(s storage.Storage, url string) *Stored {
	return &Stored{
		url:     url,
		storage: s,
	}
}

func (s *Stored) Acquire(ctx context.Context, size canvas.Size) (*raster.Image, error) {
	data, err := s.storage.Get(ctx, s.url)
	if err != nil {
		return nil, errs.New(errs.ErrExportUnavailable, s.url, err)
	}
	return decode(data, s.String())
}

func (s *Stored) Intrinsic() bool {
	return true
}

func (s *Stored) String() string {
	return s.url
}

// Encoded wraps image bytes that are already in memory, such as an upload.
type Encoded struct {
	name string
	data []byte
}

func NewEncoded(name string, data []byte) *Encoded {
	return &Encoded{
		name: name,
		data: data,
	}
}

func (e *Encoded) Acquire(ctx context.Context, size canvas.Size) (*raster.Image, error) {
	return decode(e.data, e.String())
}

func (e *Encoded) Intrinsic() bool {
	return true
}

func (e *Encoded) String() string {
	return e.name
}

func decode(data []byte, source string) (*raster.Image, error) {
	img, err := raster.Decode(data)
	if err != nil {
		return nil, errs.WithSource(xerrors.Errorf("failed to decode image: %w", err), source)
	}
	return img, nil
}
