package raster

import (
	"bytes"
	"comparison-controller/internal/errs"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/xerrors"
)

// Decode parses PNG, JPEG, GIF, WebP, BMP or TIFF bytes. Failures carry
// errs.ErrEncoding.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, errs.New(errs.ErrEncoding, "", xerrors.New("empty image data"))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errs.New(errs.ErrEncoding, "", xerrors.Errorf("failed to decode image: %w", err))
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, errs.New(errs.ErrEncoding, "", xerrors.Errorf("image has no pixels (%dx%d)", bounds.Dx(), bounds.Dy()))
	}

	return FromImage(img), nil
}

// Encode serializes img as PNG.
func Encode(img *Image) ([]byte, error) {
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img.NRGBA()); err != nil {
		return nil, errs.New(errs.ErrEncoding, "", xerrors.Errorf("failed to encode image: %w", err))
	}
	return buffer.Bytes(), nil
}
