package sink

import (
	"comparison-controller/internal/compare"
	"comparison-controller/internal/storage"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const keyPrefix = "Comparison"

// Locations are the storage identifiers of a persisted result.
type Locations struct {
	Overlay string `json:"overlayURL"`
	Diff    string `json:"diffURL"`
}

type Sink struct {
	storage storage.Storage
	log     logr.Logger
	now     func() time.Time
}

func New(s storage.Storage, log logr.Logger) *Sink {
	return &Sink{
		storage: s,
		log:     log.WithName("sink"),
		now:     time.Now,
	}
}

// Put writes overlay and diff side by side. Either both are stored or, when
// one write fails, the other is removed again.
func (s *Sink) Put(ctx context.Context, baselineRef string, referenceRef string, result *compare.Result) (*Locations, error) {
	pairID := PairID(baselineRef, referenceRef)
	timestamp := s.now().UTC().Format("20060102T150405.000000000Z")

	overlayKey := fmt.Sprintf("%s/overlay/%s/%s.png", keyPrefix, pairID, timestamp)
	diffKey := fmt.Sprintf("%s/diff/%s/%s.png", keyPrefix, pairID, timestamp)

	var overlayURL, diffURL string

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		url, err := s.storage.Put(egCtx, overlayKey, result.Overlay)
		if err != nil {
			return xerrors.Errorf("failed to store overlay: %w", err)
		}
		overlayURL = url
		return nil
	})
	eg.Go(func() error {
		url, err := s.storage.Put(egCtx, diffKey, result.Diff)
		if err != nil {
			return xerrors.Errorf("failed to store diff: %w", err)
		}
		diffURL = url
		return nil
	})

	if err := eg.Wait(); err != nil {
		s.rollback(context.WithoutCancel(ctx), overlayURL, diffURL)
		return nil, err
	}

	s.log.Info("stored comparison", "overlayURL", overlayURL, "diffURL", diffURL)

	return &Locations{
		Overlay: overlayURL,
		Diff:    diffURL,
	}, nil
}

func (s *Sink) rollback(ctx context.Context, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := s.storage.Delete(ctx, url); err != nil {
			s.log.Error(err, "failed to remove partial result", "url", url)
		}
	}
}

// PairID names a baseline and reference pair so results of the same pair
// group together in storage.
func PairID(baselineRef string, referenceRef string) string {
	h := sha256.New()
	h.Write([]byte(baselineRef))
	h.Write([]byte{0})
	h.Write([]byte(referenceRef))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
