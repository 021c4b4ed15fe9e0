package image

import (
	"bytes"
	"comparison-controller/internal/canvas"
	"comparison-controller/internal/raster"
	"image/color"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
)

type PixelDiff struct {
	spec DiffSpec
}

func NewPixelDiff(spec DiffSpec) *PixelDiff {
	return &PixelDiff{
		spec,
	}
}

func (p *PixelDiff) Calculate(baseline *raster.Image, target *raster.Image) (*DiffResult, error) {
	result, _, err := p.compare(baseline, target)
	return result, err
}

// compare also returns the per-pixel mismatch mask, indexed y*width+x.
func (p *PixelDiff) compare(baseline *raster.Image, target *raster.Image) (*DiffResult, []bool, error) {
	if err := p.spec.Validate(); err != nil {
		return nil, nil, err
	}
	if err := canvas.Verify(baseline, target); err != nil {
		return nil, nil, err
	}

	diff := raster.Blank(baseline.Width, baseline.Height)
	mask := make([]bool, baseline.Width*baseline.Height)
	identical := bytes.Equal(baseline.Pix, target.Pix)
	maxDelta := maxYIQDelta * p.spec.Threshold * p.spec.Threshold

	var mismatchCount int64

	// Use GOMAXPROCS instead of runtime.NumCPU() to consider cgroup.
	// https://tip.golang.org/doc/go1.25#container-aware-gomaxprocs
	numWorkers := runtime.GOMAXPROCS(0)
	rowsPerWorker := baseline.Height / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if i == numWorkers-1 {
			endY = baseline.Height
		}

		go func(startY int, endY int) {
			defer wg.Done()
			if identical {
				p.processIdentical(baseline, diff, startY, endY)
				return
			}
			p.processRows(baseline, target, diff, mask, maxDelta, startY, endY, &mismatchCount)
		}(startY, endY)
	}
	wg.Wait()

	totalPixelCount := int64(baseline.Width * baseline.Height)

	return &DiffResult{
		Image:         diff,
		MismatchCount: mismatchCount,
		DiffAmount:    float64(mismatchCount) / float64(totalPixelCount),
	}, mask, nil
}

func (p *PixelDiff) processIdentical(baseline *raster.Image, diff *raster.Image, startY int, endY int) {
	for y := startY; y < endY; y++ {
		for x := 0; x < baseline.Width; x++ {
			p.drawGray(baseline, diff, baseline.PixOffset(x, y))
		}
	}
}

func (p *PixelDiff) processRows(baseline *raster.Image, target *raster.Image, diff *raster.Image, mask []bool, maxDelta float64, startY int, endY int, mismatchCount *int64) {
	var localCount int64

	for y := startY; y < endY; y++ {
		for x := 0; x < baseline.Width; x++ {
			offset := baseline.PixOffset(x, y)

			delta := colorDelta(baseline, target, offset, offset, false)
			if math.Abs(delta) <= maxDelta {
				p.drawGray(baseline, diff, offset)
				continue
			}

			// At threshold 0 every change counts, anti-aliased or not.
			if !p.spec.IncludeAA && p.spec.Threshold > 0 && (antialiased(baseline, x, y, target) || antialiased(target, x, y, baseline)) {
				drawPixel(diff, offset, p.spec.AAColor)
				continue
			}

			drawPixel(diff, offset, p.spec.DiffColor)
			mask[y*baseline.Width+x] = true
			localCount++
		}
	}

	atomic.AddInt64(mismatchCount, localCount)
}

// drawGray paints the luma of the source pixel faded towards white.
func (p *PixelDiff) drawGray(src *raster.Image, diff *raster.Image, offset int) {
	luma := rgb2y(float64(src.Pix[offset]), float64(src.Pix[offset+1]), float64(src.Pix[offset+2]))
	value := blendWhite(luma, p.spec.Alpha*float64(src.Pix[offset+3])/255)

	v := uint8(math.Max(0, math.Min(255, math.Round(value))))
	drawPixel(diff, offset, color.NRGBA{R: v, G: v, B: v, A: 255})
}

func drawPixel(img *raster.Image, offset int, c color.NRGBA) {
	img.Pix[offset] = c.R
	img.Pix[offset+1] = c.G
	img.Pix[offset+2] = c.B
	img.Pix[offset+3] = c.A
}
