package image

import (
	"comparison-controller/internal/raster"
)

const (
	mergeCloseness   = 10
	outlineThickness = 3
)

type Rectangle struct {
	X      int
	Y      int
	Width  int
	Height int
}

// RectangleDiff outlines connected regions of mismatching pixels on top of the
// target image instead of painting every pixel.
type RectangleDiff struct {
	pixel *PixelDiff
	spec  DiffSpec
}

func NewRectangleDiff(spec DiffSpec) *RectangleDiff {
	return &RectangleDiff{
		pixel: NewPixelDiff(spec),
		spec:  spec,
	}
}

func (r *RectangleDiff) Calculate(baseline *raster.Image, target *raster.Image) (*DiffResult, error) {
	pixelResult, mask, err := r.pixel.compare(baseline, target)
	if err != nil {
		return nil, err
	}

	result := target.Clone()
	if pixelResult.MismatchCount == 0 {
		return &DiffResult{
			Image: result,
		}, nil
	}

	rectangles := r.findRectangles(mask, target.Width, target.Height)
	for _, rect := range rectangles {
		r.drawOutline(result, rect)
	}

	return &DiffResult{
		Image:         result,
		MismatchCount: pixelResult.MismatchCount,
		DiffAmount:    r.calculateDiffAmount(rectangles, target.Width, target.Height),
	}, nil
}

func (r *RectangleDiff) drawOutline(img *raster.Image, rect Rectangle) {
	set := func(x int, y int) {
		if x >= 0 && x < img.Width && y >= 0 && y < img.Height {
			drawPixel(img, img.PixOffset(x, y), r.spec.DiffColor)
		}
	}

	for thickness := 0; thickness < outlineThickness; thickness++ {
		for x := rect.X - thickness; x < rect.X+rect.Width+thickness; x++ {
			set(x, rect.Y-thickness)
			set(x, rect.Y+rect.Height+thickness)
		}
		for y := rect.Y - thickness; y < rect.Y+rect.Height+thickness; y++ {
			set(rect.X-thickness, y)
			set(rect.X+rect.Width+thickness, y)
		}
	}
}

func (r *RectangleDiff) findRectangles(mask []bool, width int, height int) []Rectangle {
	visited := make([]bool, len(mask))

	var rectangles []Rectangle
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask[y*width+x] && !visited[y*width+x] {
				rect := r.findBoundingBox(mask, visited, x, y, width, height)
				if rect.Width > 2 && rect.Height > 2 {
					rectangles = append(rectangles, rect)
				}
			}
		}
	}

	return r.mergeRectangles(rectangles)
}

type point struct {
	x int
	y int
}

func (r *RectangleDiff) findBoundingBox(mask []bool, visited []bool, startX int, startY int, width int, height int) Rectangle {
	minX := startX
	minY := startY
	maxX := startX
	maxY := startY

	queue := []point{{startX, startY}}
	visited[startY*width+startX] = true

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		minX = min(minX, p.x)
		maxX = max(maxX, p.x)
		minY = min(minY, p.y)
		maxY = max(maxY, p.y)

		// Check 8 neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}

				nx := p.x + dx
				ny := p.y + dy
				if nx < 0 || nx >= width || ny < 0 || ny >= height {
					continue
				}
				i := ny*width + nx
				if mask[i] && !visited[i] {
					visited[i] = true
					queue = append(queue, point{nx, ny})
				}
			}
		}
	}

	return Rectangle{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX + 1,
		Height: maxY - minY + 1,
	}
}

func (r *RectangleDiff) mergeRectangles(rects []Rectangle) []Rectangle {
	if len(rects) <= 1 {
		return rects
	}

	merged := make([]Rectangle, 0)
	used := make([]bool, len(rects))

	for i := 0; i < len(rects); i++ {
		if used[i] {
			continue
		}

		current := rects[i]
		mergedAny := true

		for mergedAny {
			mergedAny = false
			for j := i + 1; j < len(rects); j++ {
				if used[j] {
					continue
				}

				if rectanglesOverlap(current, rects[j]) || rectanglesClose(current, rects[j], mergeCloseness) {
					current = combineRectangles(current, rects[j])
					used[j] = true
					mergedAny = true
				}
			}
		}

		merged = append(merged, current)
	}

	return merged
}

func rectanglesOverlap(r1 Rectangle, r2 Rectangle) bool {
	return !(r1.X+r1.Width <= r2.X || r2.X+r2.Width <= r1.X ||
		r1.Y+r1.Height <= r2.Y || r2.Y+r2.Height <= r1.Y)
}

func rectanglesClose(r1 Rectangle, r2 Rectangle, threshold int) bool {
	return rectanglesOverlap(expand(r1, threshold), expand(r2, threshold))
}

func expand(r Rectangle, by int) Rectangle {
	return Rectangle{
		X:      r.X - by,
		Y:      r.Y - by,
		Width:  r.Width + 2*by,
		Height: r.Height + 2*by,
	}
}

func combineRectangles(r1 Rectangle, r2 Rectangle) Rectangle {
	minX := min(r1.X, r2.X)
	minY := min(r1.Y, r2.Y)
	maxX := max(r1.X+r1.Width, r2.X+r2.Width)
	maxY := max(r1.Y+r1.Height, r2.Y+r2.Height)

	return Rectangle{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

func (r *RectangleDiff) calculateDiffAmount(rectangles []Rectangle, width int, height int) float64 {
	totalDiffArea := 0
	for _, rect := range rectangles {
		totalDiffArea += rect.Width * rect.Height
	}

	totalArea := width * height
	if totalArea == 0 {
		return 0.0
	}

	return min(float64(totalDiffArea)/float64(totalArea), 1.0)
}
