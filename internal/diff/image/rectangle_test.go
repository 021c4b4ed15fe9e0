package image

import (
	"comparison-controller/internal/errs"
	"comparison-controller/internal/raster"
	"errors"
	"fmt"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func fillRect(img *raster.Image, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			drawPixel(img, img.PixOffset(x, y), black)
		}
	}
}

func TestRectangleDiff_Calculate(t *testing.T) {
	rd := NewRectangleDiff(DefaultDiffSpec())

	t.Run("NoDifference", func(t *testing.T) {
		img1 := createTestImage(100, 100, white)
		img2 := createTestImage(100, 100, white)

		result, err := rd.Calculate(img1, img2)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if result.DiffAmount != 0.0 {
			t.Errorf("Expected DiffAmount to be 0.0, got %f", result.DiffAmount)
		}
		if n := countColor(result.Image, red); n != 0 {
			t.Errorf("Expected no outline pixels, got %d", n)
		}
	})

	t.Run("CompleteDifference", func(t *testing.T) {
		img1 := createTestImage(100, 100, white)
		img2 := createTestImage(100, 100, black)

		result, err := rd.Calculate(img1, img2)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if result.DiffAmount != 1.0 {
			t.Errorf("Expected DiffAmount to be 1.0, got %f", result.DiffAmount)
		}
		if result.MismatchCount != 10000 {
			t.Errorf("Expected MismatchCount to be 10000, got %d", result.MismatchCount)
		}
	})

	t.Run("PartialDifference", func(t *testing.T) {
		img1 := createTestImage(100, 100, white)
		img2 := createTestImage(100, 100, white)
		fillRect(img2, 0, 0, 100, 50)

		result, err := rd.Calculate(img1, img2)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if result.DiffAmount != 0.5 {
			t.Errorf("Expected DiffAmount to be 0.5, got %f", result.DiffAmount)
		}
	})

	t.Run("OutlineDrawnOnTarget", func(t *testing.T) {
		img1 := createTestImage(40, 40, white)
		img2 := createTestImage(40, 40, white)
		fillRect(img2, 10, 10, 20, 20)

		result, err := rd.Calculate(img1, img2)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if got := result.Image.NRGBAAt(9, 15); got != red {
			t.Errorf("Expected outline at (9, 15), got %+v", got)
		}
		if got := result.Image.NRGBAAt(15, 15); got != black {
			t.Errorf("Expected target content inside the box, got %+v", got)
		}
		if got := result.Image.NRGBAAt(0, 0); got != white {
			t.Errorf("Expected target content outside the box, got %+v", got)
		}
		if got := img2.NRGBAAt(9, 15); got != white {
			t.Errorf("Expected target to be left untouched, got %+v", got)
		}
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := rd.Calculate(createTestImage(10, 10, white), createTestImage(10, 11, white))
		if !errors.Is(err, errs.ErrDimensionMismatch) {
			t.Errorf("Expected ErrDimensionMismatch, got %v", err)
		}
	})
}

func TestRectangleDiff_findRectangles(t *testing.T) {
	type region struct {
		x0, y0, x1, y1 int
	}

	tests := []struct {
		name     string
		regions  []region
		expected []Rectangle
	}{
		func() struct {
			name     string
			regions  []region
			expected []Rectangle
		} {
			_, _, line, _ := runtime.Caller(0)
			return struct {
				name     string
				regions  []region
				expected []Rectangle
			}{
				name:     fmt.Sprintf("L%d", line),
				regions:  []region{{5, 5, 10, 10}},
				expected: []Rectangle{{X: 5, Y: 5, Width: 5, Height: 5}},
			}
		}(),
		func() struct {
			name     string
			regions  []region
			expected []Rectangle
		} {
			_, _, line, _ := runtime.Caller(0)
			return struct {
				name     string
				regions  []region
				expected []Rectangle
			}{
				name:     fmt.Sprintf("L%d", line),
				regions:  []region{{5, 5, 10, 10}, {15, 5, 20, 10}},
				expected: []Rectangle{{X: 5, Y: 5, Width: 15, Height: 5}},
			}
		}(),
		func() struct {
			name     string
			regions  []region
			expected []Rectangle
		} {
			_, _, line, _ := runtime.Caller(0)
			return struct {
				name     string
				regions  []region
				expected []Rectangle
			}{
				name:    fmt.Sprintf("L%d", line),
				regions: []region{{0, 0, 5, 5}, {60, 60, 70, 70}},
				expected: []Rectangle{
					{X: 0, Y: 0, Width: 5, Height: 5},
					{X: 60, Y: 60, Width: 10, Height: 10},
				},
			}
		}(),
		func() struct {
			name     string
			regions  []region
			expected []Rectangle
		} {
			_, _, line, _ := runtime.Caller(0)
			return struct {
				name     string
				regions  []region
				expected []Rectangle
			}{
				name:     fmt.Sprintf("L%d", line),
				regions:  []region{{30, 30, 32, 32}},
				expected: nil,
			}
		}(),
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			const width, height = 80, 80
			mask := make([]bool, width*height)
			for _, r := range tt.regions {
				for y := r.y0; y < r.y1; y++ {
					for x := r.x0; x < r.x1; x++ {
						mask[y*width+x] = true
					}
				}
			}

			got := NewRectangleDiff(DefaultDiffSpec()).findRectangles(mask, width, height)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("(-expected +got):\n%s", diff)
			}
		})
	}
}

func BenchmarkRectangleDiff_Calculate_Small(b *testing.B) {
	rd := NewRectangleDiff(DefaultDiffSpec())
	img1 := createTestImage(1920, 1080, white)
	img2 := createTestImage(1920, 1080, white)
	fillRect(img2, 100, 100, 400, 300)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rd.Calculate(img1, img2); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRectangleDiff_Calculate_Large(b *testing.B) {
	rd := NewRectangleDiff(DefaultDiffSpec())
	img1 := createTestImage(3840, 2160, white)
	img2 := createTestImage(3840, 2160, white)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rd.Calculate(img1, img2); err != nil {
			b.Fatal(err)
		}
	}
}
