package raster

import (
	"bytes"
	"comparison-controller/internal/errs"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNew(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		img, err := New(2, 1, make([]uint8, 8))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if img.Width != 2 || img.Height != 1 {
			t.Errorf("Expected 2x1, got %dx%d", img.Width, img.Height)
		}
	})

	t.Run("BufferLengthMismatch", func(t *testing.T) {
		if _, err := New(2, 2, make([]uint8, 8)); err == nil {
			t.Errorf("Expected error for short pixel buffer")
		}
	})

	t.Run("NonPositiveDimensions", func(t *testing.T) {
		if _, err := New(0, 2, nil); err == nil {
			t.Errorf("Expected error for zero width")
		}
	})
}

func TestFromImage(t *testing.T) {
	t.Run("OpaqueRGBAGetsOpaqueAlpha", func(t *testing.T) {
		src := image.NewRGBA(image.Rect(0, 0, 3, 2))
		draw.Draw(src, src.Bounds(), &image.Uniform{C: color.RGBA{R: 10, G: 20, B: 30, A: 255}}, image.Point{}, draw.Src)

		img := FromImage(src)

		if diff := cmp.Diff(color.NRGBA{R: 10, G: 20, B: 30, A: 255}, img.NRGBAAt(2, 1)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("PremultipliedIsConverted", func(t *testing.T) {
		src := image.NewRGBA(image.Rect(0, 0, 1, 1))
		src.SetRGBA(0, 0, color.RGBA{R: 100, G: 50, B: 0, A: 128})

		got := FromImage(src).NRGBAAt(0, 0)
		want := color.NRGBAModel.Convert(color.RGBA{R: 100, G: 50, B: 0, A: 128}).(color.NRGBA)

		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("SubImageOffset", func(t *testing.T) {
		src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
		src.SetNRGBA(2, 2, color.NRGBA{R: 255, A: 255})

		img := FromImage(src.SubImage(image.Rect(2, 2, 4, 4)))

		if img.Width != 2 || img.Height != 2 {
			t.Fatalf("Expected 2x2, got %dx%d", img.Width, img.Height)
		}
		if diff := cmp.Diff(color.NRGBA{R: 255, A: 255}, img.NRGBAAt(0, 0)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
}

func TestCodec(t *testing.T) {
	t.Run("RoundTripPNG", func(t *testing.T) {
		img := Fill(4, 3, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
		img.Pix[img.PixOffset(1, 1)+3] = 128

		data, err := Encode(img)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		decoded, err := Decode(data)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if diff := cmp.Diff(img, decoded); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("DecodeJPEG", func(t *testing.T) {
		src := image.NewRGBA(image.Rect(0, 0, 16, 8))
		draw.Draw(src, src.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
		var buffer bytes.Buffer
		if err := jpeg.Encode(&buffer, src, &jpeg.Options{Quality: 90}); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		img, err := Decode(buffer.Bytes())
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if img.Width != 16 || img.Height != 8 {
			t.Errorf("Expected 16x8, got %dx%d", img.Width, img.Height)
		}
		if got := img.NRGBAAt(3, 3); got.A != 255 || got.R < 250 {
			t.Errorf("Expected near white opaque pixel, got %+v", got)
		}
	})

	t.Run("MalformedBytes", func(t *testing.T) {
		_, err := Decode([]byte("definitely not an image"))
		if !errors.Is(err, errs.ErrEncoding) {
			t.Errorf("Expected ErrEncoding, got %v", err)
		}
	})

	t.Run("EmptyBytes", func(t *testing.T) {
		_, err := Decode(nil)
		if !errors.Is(err, errs.ErrEncoding) {
			t.Errorf("Expected ErrEncoding, got %v", err)
		}
	})

	t.Run("EncodeDoesNotAliasPixels", func(t *testing.T) {
		img := Fill(1, 1, color.NRGBA{G: 255, A: 255})
		view := img.NRGBA()
		view.Pix[1] = 0

		if img.Pix[1] != 255 {
			t.Errorf("Expected source pixels to stay untouched")
		}
	})
}

func BenchmarkEncode(b *testing.B) {
	img := Fill(1920, 1080, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(img); err != nil {
			b.Fatal(err)
		}
	}
}
