package source

import (
	"comparison-controller/internal/capture"
	"comparison-controller/internal/errs"
	"comparison-controller/internal/figma"
	"comparison-controller/internal/storage"
	"net/url"
	"strings"

	"golang.org/x/xerrors"
)

// Resolver turns reference strings into sources. Collaborators left nil make
// the matching reference kinds unresolvable.
type Resolver struct {
	Capturer capture.Capturer
	Exporter Exporter
	Storage  storage.Storage

	MaskSelectors []string
	Headers       map[string]string
}

// Resolve picks the source kind from the form of ref: figma.com links are
// designs when an exporter is set and pages otherwise, other http(s) URLs are
// pages, and storage URLs or plain paths are stored images.
func (r *Resolver) Resolve(ref string) (Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errs.New(errs.ErrInvalidReference, ref, xerrors.New("empty reference"))
	}

	if figma.IsDesignURL(ref) {
		if r.Exporter != nil {
			return NewDesign(r.Exporter, ref)
		}
		// Without export access the design is screenshotted like any page,
		// typically a prototype link.
		if r.Capturer == nil {
			return nil, errs.New(errs.ErrInvalidReference, ref, xerrors.New("design references are not enabled"))
		}
		return NewPage(r.Capturer, ref, r.MaskSelectors, r.Headers), nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, errs.New(errs.ErrInvalidReference, ref, err)
	}

	switch u.Scheme {
	case "http", "https":
		if r.Capturer == nil {
			return nil, errs.New(errs.ErrInvalidReference, ref, xerrors.New("page references are not enabled"))
		}
		if u.Host == "" {
			return nil, errs.New(errs.ErrInvalidReference, ref, xerrors.New("missing host"))
		}
		return NewPage(r.Capturer, ref, r.MaskSelectors, r.Headers), nil
	case "s3", "file", "":
		if r.Storage == nil {
			return nil, errs.New(errs.ErrInvalidReference, ref, xerrors.New("stored references are not enabled"))
		}
		return NewStored(r.Storage, ref), nil
	default:
		return nil, errs.New(errs.ErrInvalidReference, ref, xerrors.Errorf("unsupported scheme %q", u.Scheme))
	}
}
