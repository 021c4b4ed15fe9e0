package pipeline

import (
	"comparison-controller/internal/compare"
	"comparison-controller/internal/sink"
	"comparison-controller/internal/source"
	"comparison-controller/internal/storage"
	"context"

	"github.com/go-logr/logr"
	"golang.org/x/xerrors"
)

type Request struct {
	Baseline  string
	Reference string

	MaskSelectors []string
	Headers       map[string]string

	Options compare.Options
}

// Pipeline resolves both references, compares them and stores the outputs.
type Pipeline struct {
	Resolver   source.Resolver
	Comparator *compare.Comparator
	Sink       *sink.Sink
	Log        logr.Logger

	// Storage is the backend outputs are written to. Entry points reuse it
	// to serve or upload artifacts.
	Storage storage.Storage

	closers []func() error
}

func (p *Pipeline) Run(ctx context.Context, request Request) (*sink.Report, error) {
	resolver := p.Resolver
	resolver.MaskSelectors = request.MaskSelectors
	resolver.Headers = request.Headers

	baseline, err := resolver.Resolve(request.Baseline)
	if err != nil {
		return nil, err
	}
	reference, err := resolver.Resolve(request.Reference)
	if err != nil {
		return nil, err
	}

	result, err := p.Comparator.Compare(ctx, baseline, reference, request.Options)
	if err != nil {
		return nil, err
	}

	locations, err := p.Sink.Put(ctx, request.Baseline, request.Reference, result)
	if err != nil {
		return nil, xerrors.Errorf("failed to store comparison: %w", err)
	}

	p.Log.Info("comparison stored",
		"baseline", request.Baseline,
		"reference", request.Reference,
		"mismatchCount", result.MismatchCount,
		"diffAmount", result.DiffAmount,
	)

	return sink.NewReport(result, locations), nil
}
