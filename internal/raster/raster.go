package raster

import (
	"image"
	"image/color"

	"golang.org/x/xerrors"
)

// Image is a decoded pixel grid with straight (non-premultiplied) RGBA
// channels, row-major from the top-left corner. Pix always holds exactly
// Width*Height*4 bytes. Operations in this module never modify an Image after
// construction.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

func New(width int, height int, pix []uint8) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, xerrors.Errorf("invalid dimensions %dx%d", width, height)
	}
	if len(pix) != width*height*4 {
		return nil, xerrors.Errorf("pixel buffer holds %d bytes, want %d for %dx%d", len(pix), width*height*4, width, height)
	}
	return &Image{
		Width:  width,
		Height: height,
		Pix:    pix,
	}, nil
}

// Blank returns an image of the given size with every channel zeroed.
func Blank(width int, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}
}

// Fill returns an image of the given size painted with a single color.
func Fill(width int, height int, c color.NRGBA) *Image {
	img := Blank(width, height)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func (i *Image) SameSize(o *Image) bool {
	return i.Width == o.Width && i.Height == o.Height
}

func (i *Image) PixOffset(x int, y int) int {
	return (y*i.Width + x) * 4
}

func (i *Image) NRGBAAt(x int, y int) color.NRGBA {
	offset := i.PixOffset(x, y)
	return color.NRGBA{R: i.Pix[offset], G: i.Pix[offset+1], B: i.Pix[offset+2], A: i.Pix[offset+3]}
}

// Clone returns a deep copy that may be modified freely.
func (i *Image) Clone() *Image {
	pix := make([]uint8, len(i.Pix))
	copy(pix, i.Pix)
	return &Image{
		Width:  i.Width,
		Height: i.Height,
		Pix:    pix,
	}
}

// NRGBA returns a standard library view backed by a copy of the pixels.
func (i *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    i.Clone().Pix,
		Stride: i.Width * 4,
		Rect:   image.Rect(0, 0, i.Width, i.Height),
	}
}

// FromImage converts any image into an Image. Sources without an alpha
// channel come out fully opaque.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	dst := Blank(bounds.Dx(), bounds.Dy())

	switch s := src.(type) {
	case *image.NRGBA:
		for y := 0; y < dst.Height; y++ {
			start := s.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(dst.Pix[dst.PixOffset(0, y):dst.PixOffset(0, y+1)], s.Pix[start:start+dst.Width*4])
		}
	case *image.RGBA:
		for y := 0; y < dst.Height; y++ {
			start := s.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			row := s.Pix[start : start+dst.Width*4]
			out := dst.Pix[dst.PixOffset(0, y):dst.PixOffset(0, y+1)]
			for x := 0; x < len(row); x += 4 {
				r, g, b, a := unpremultiply(row[x], row[x+1], row[x+2], row[x+3])
				out[x] = r
				out[x+1] = g
				out[x+2] = b
				out[x+3] = a
			}
		}
	case *image.YCbCr:
		for y := 0; y < dst.Height; y++ {
			for x := 0; x < dst.Width; x++ {
				yOffset := s.YOffset(bounds.Min.X+x, bounds.Min.Y+y)
				cOffset := s.COffset(bounds.Min.X+x, bounds.Min.Y+y)
				r, g, b := ycbcrToRGB(s.Y[yOffset], s.Cb[cOffset], s.Cr[cOffset])
				offset := dst.PixOffset(x, y)
				dst.Pix[offset] = r
				dst.Pix[offset+1] = g
				dst.Pix[offset+2] = b
				dst.Pix[offset+3] = 255
			}
		}
	default:
		for y := 0; y < dst.Height; y++ {
			for x := 0; x < dst.Width; x++ {
				c := color.NRGBAModel.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
				offset := dst.PixOffset(x, y)
				dst.Pix[offset] = c.R
				dst.Pix[offset+1] = c.G
				dst.Pix[offset+2] = c.B
				dst.Pix[offset+3] = c.A
			}
		}
	}

	return dst
}

func unpremultiply(r uint8, g uint8, b uint8, a uint8) (uint8, uint8, uint8, uint8) {
	switch a {
	case 255:
		return r, g, b, a
	case 0:
		return 0, 0, 0, 0
	}
	c := color.NRGBAModel.Convert(color.RGBA{R: r, G: g, B: b, A: a}).(color.NRGBA)
	return c.R, c.G, c.B, c.A
}

// ycbcrToRGB follows ITU-R BT.601 full range, as stored by JPEG (JFIF).
// Coefficients are scaled by 2^16:
// R = Y + 1.402 (Cr-128), G = Y - 0.344136 (Cb-128) - 0.714136 (Cr-128),
// B = Y + 1.772 (Cb-128).
func ycbcrToRGB(y uint8, cb uint8, cr uint8) (uint8, uint8, uint8) {
	const (
		crToR = 91881
		cbToG = 22554
		crToG = 46802
		cbToB = 116130
	)

	yy := int32(y) * 0x10101
	cb1 := int32(cb) - 128
	cr1 := int32(cr) - 128

	r := (yy + crToR*cr1) >> 16
	g := (yy - cbToG*cb1 - crToG*cr1) >> 16
	b := (yy + cbToB*cb1) >> 16

	return clamp8(r), clamp8(g), clamp8(b)
}

func clamp8(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
