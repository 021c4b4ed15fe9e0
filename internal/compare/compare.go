package compare

import (
	"comparison-controller/internal/canvas"
	diffimage "comparison-controller/internal/diff/image"
	"comparison-controller/internal/errs"
	"comparison-controller/internal/overlay"
	"comparison-controller/internal/raster"
	"comparison-controller/internal/source"
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Result holds both outputs PNG encoded. They share the normalized input
// dimensions.
type Result struct {
	Overlay       []byte
	Diff          []byte
	Width         int
	Height        int
	MismatchCount int64
	DiffAmount    float64
}

type Comparator struct {
	log        logr.Logger
	reconciler *canvas.Reconciler
	compositor *overlay.Compositor
	tracer     trace.Tracer
}

func NewComparator(log logr.Logger, defaultSize canvas.Size) *Comparator {
	return &Comparator{
		log:        log.WithName("compare"),
		reconciler: canvas.NewReconciler(defaultSize),
		compositor: overlay.NewCompositor(),
		tracer:     otel.Tracer("comparison-controller/internal/compare"),
	}
}

// Compare acquires both sources, brings them to a common canvas and produces
// the overlay and the difference map. Sources with an intrinsic size are
// acquired first because their size decides the capture viewport of the
// others.
func (c *Comparator) Compare(ctx context.Context, baseline source.Source, reference source.Source, opts Options) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "Compare", trace.WithAttributes(
		attribute.String("baseline", baseline.String()),
		attribute.String("reference", reference.String()),
	))
	defer span.End()

	result, err := c.compare(ctx, baseline, reference, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (c *Comparator) compare(ctx context.Context, baseline source.Source, reference source.Source, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	sources := []source.Source{baseline, reference}
	images := make([]*raster.Image, len(sources))

	if err := c.acquire(ctx, sources, images, true, canvas.Size{}); err != nil {
		return nil, err
	}

	target := c.reconciler.Target(opts.Size, images...)
	c.log.V(1).Info("canvas reconciled", "size", target.String(), "baseline", baseline.String(), "reference", reference.String())

	if err := c.acquire(ctx, sources, images, false, target); err != nil {
		return nil, err
	}

	result, err := c.CompareImages(ctx, images[0], images[1], opts)
	if errors.Is(err, errs.ErrDimensionMismatch) {
		return nil, errs.WithSource(err, baseline.String()+", "+reference.String())
	}
	return result, err
}

func (c *Comparator) acquire(ctx context.Context, sources []source.Source, images []*raster.Image, intrinsic bool, size canvas.Size) error {
	eg, ctx := errgroup.WithContext(ctx)
	for i, s := range sources {
		if s.Intrinsic() != intrinsic {
			continue
		}
		eg.Go(func() error {
			ctx, span := c.tracer.Start(ctx, "Acquire", trace.WithAttributes(
				attribute.String("source", s.String()),
				attribute.Bool("intrinsic", intrinsic),
			))
			defer span.End()

			started := time.Now()
			img, err := s.Acquire(ctx, size)
			if err != nil {
				span.RecordError(err)
				return err
			}
			c.log.V(1).Info("source acquired", "source", s.String(), "size", canvas.SizeOf(img).String(), "elapsed", time.Since(started).String())
			images[i] = img
			return nil
		})
	}
	return eg.Wait()
}

// CompareImages runs composition and differencing on rasters that are
// already decoded. Both must share the same dimensions.
func (c *Comparator) CompareImages(ctx context.Context, baseline *raster.Image, reference *raster.Image, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := canvas.Verify(baseline, reference); err != nil {
		return nil, err
	}

	_, span := c.tracer.Start(ctx, "CompareImages", trace.WithAttributes(
		attribute.Int("width", baseline.Width),
		attribute.Int("height", baseline.Height),
		attribute.String("format", string(opts.Format)),
	))
	defer span.End()

	var (
		overlayPNG []byte
		diffPNG    []byte
		diffResult *diffimage.DiffResult
	)

	var eg errgroup.Group
	eg.Go(func() error {
		blended, err := c.compositor.Blend(baseline, reference, opts.Blend)
		if err != nil {
			return xerrors.Errorf("failed to blend: %w", err)
		}
		overlayPNG, err = raster.Encode(blended)
		return err
	})
	eg.Go(func() error {
		var err error
		diffResult, err = opts.differ().Calculate(baseline, reference)
		if err != nil {
			return xerrors.Errorf("failed to diff: %w", err)
		}
		diffPNG, err = raster.Encode(diffResult.Image)
		return err
	})
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("mismatchCount", diffResult.MismatchCount),
		attribute.Float64("diffAmount", diffResult.DiffAmount),
	)
	c.log.Info("comparison finished",
		"size", canvas.SizeOf(baseline).String(),
		"mismatchCount", diffResult.MismatchCount,
		"diffAmount", diffResult.DiffAmount,
	)

	return &Result{
		Overlay:       overlayPNG,
		Diff:          diffPNG,
		Width:         baseline.Width,
		Height:        baseline.Height,
		MismatchCount: diffResult.MismatchCount,
		DiffAmount:    diffResult.DiffAmount,
	}, nil
}
