package overlay

import (
	"comparison-controller/internal/canvas"
	"comparison-controller/internal/raster"
	"math"
	"runtime"
	"sync"

	"golang.org/x/xerrors"
)

const DefaultOpacity = 0.3

type BlendSpec struct {
	// Opacity applied to the reference before it is composited over the
	// baseline, in [0, 1].
	Opacity float64
}

func (s BlendSpec) Validate() error {
	if math.IsNaN(s.Opacity) || s.Opacity < 0 || s.Opacity > 1 {
		return xerrors.Errorf("opacity must be within [0, 1], got %v", s.Opacity)
	}
	return nil
}

type Compositor struct{}

func NewCompositor() *Compositor {
	return &Compositor{}
}

// Blend renders reference at spec.Opacity over baseline using the "over"
// operator on straight alpha:
//
//	out_c = ref_c*ref_a + base_c*(1-ref_a)
//	out_a = ref_a + base_a*(1-ref_a)
//
// where ref_a is the reference alpha scaled by the opacity.
func (c *Compositor) Blend(baseline *raster.Image, reference *raster.Image, spec BlendSpec) (*raster.Image, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := canvas.Verify(baseline, reference); err != nil {
		return nil, err
	}

	result := raster.Blank(baseline.Width, baseline.Height)

	// Use GOMAXPROCS instead of runtime.NumCPU() to consider cgroup.
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
			c.blendRows(baseline, reference, result, spec.Opacity, startY, endY)
		}(startY, endY)
	}
	wg.Wait()

	return result, nil
}

func (c *Compositor) blendRows(baseline *raster.Image, reference *raster.Image, result *raster.Image, opacity float64, startY int, endY int) {
	start := baseline.PixOffset(0, startY)
	end := baseline.PixOffset(0, endY)

	for offset := start; offset < end; offset += 4 {
		alpha := float64(reference.Pix[offset+3]) / 255 * opacity
		inverse := 1 - alpha

		result.Pix[offset] = channel(float64(reference.Pix[offset])*alpha + float64(baseline.Pix[offset])*inverse)
		result.Pix[offset+1] = channel(float64(reference.Pix[offset+1])*alpha + float64(baseline.Pix[offset+1])*inverse)
		result.Pix[offset+2] = channel(float64(reference.Pix[offset+2])*alpha + float64(baseline.Pix[offset+2])*inverse)
		result.Pix[offset+3] = channel(255*alpha + float64(baseline.Pix[offset+3])*inverse)
	}
}

func channel(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
