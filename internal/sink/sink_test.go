package sink

import (
	"comparison-controller/internal/compare"
	"comparison-controller/internal/errs"
	"comparison-controller/internal/storage"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/xerrors"
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (m *memoryStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	if m.failOn != "" && strings.Contains(key, m.failOn) {
		return "", errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "mem://" + key
	m.objects[url] = data
	return url, nil
}

func (m *memoryStorage) Get(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *memoryStorage) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, url)
	return nil
}

var _ storage.Storage = (*memoryStorage)(nil)

func newTestSink(s storage.Storage) *Sink {
	sink := New(s, logr.Discard())
	sink.now = func() time.Time {
		return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	}
	return sink
}

func TestSink_Put(t *testing.T) {
	s := newMemoryStorage()
	result := &compare.Result{Overlay: []byte("overlay"), Diff: []byte("diff")}

	locations, err := newTestSink(s).Put(context.Background(), "http://localhost:3000/", "https://www.figma.com/design/x", result)
	if err != nil {
		t.Fatal(err)
	}

	pairID := PairID("http://localhost:3000/", "https://www.figma.com/design/x")
	want := &Locations{
		Overlay: "mem://Comparison/overlay/" + pairID + "/20240501T123000.000000000Z.png",
		Diff:    "mem://Comparison/diff/" + pairID + "/20240501T123000.000000000Z.png",
	}
	if diff := cmp.Diff(want, locations); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	for url, data := range map[string]string{want.Overlay: "overlay", want.Diff: "diff"} {
		got, err := s.Get(context.Background(), url)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(data, string(got)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	}
}

func TestSink_PutRollsBack(t *testing.T) {
	s := newMemoryStorage()
	s.failOn = "/diff/"
	result := &compare.Result{Overlay: []byte("overlay"), Diff: []byte("diff")}

	if _, err := newTestSink(s).Put(context.Background(), "a", "b", result); err == nil {
		t.Fatal("expected error")
	}
	if len(s.objects) != 0 {
		t.Errorf("expected no objects after a failed write, got %v", s.objects)
	}
}

func TestPairID(t *testing.T) {
	if got := PairID("a", "b"); len(got) != 16 {
		t.Errorf("expected 16 hex characters, got %q", got)
	}
	if PairID("a", "b") == PairID("b", "a") {
		t.Errorf("expected the pair order to matter")
	}
	if PairID("ab", "c") == PairID("a", "bc") {
		t.Errorf("expected references to be separated")
	}
	if PairID("a", "b") != PairID("a", "b") {
		t.Errorf("expected a stable identifier")
	}
}

func TestNewReport(t *testing.T) {
	t.Parallel()

	got := NewReport(&compare.Result{
		Width:         800,
		Height:        600,
		MismatchCount: 12,
		DiffAmount:    0.25,
	}, &Locations{Overlay: "file:///tmp/o.png", Diff: "file:///tmp/d.png"})

	want := &Report{
		OverlayURL:    "file:///tmp/o.png",
		DiffURL:       "file:///tmp/d.png",
		MismatchCount: 12,
		DiffAmount:    0.25,
		Width:         800,
		Height:        600,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestErrorReport(t *testing.T) {
	t.Parallel()

	err := errs.New(errs.ErrInvalidReference, "https://www.figma.com/design/bad", xerrors.New("missing node-id"))
	got := ErrorReport(err)

	if got.ErrorSource != "https://www.figma.com/design/bad" {
		t.Errorf("ErrorSource = %q", got.ErrorSource)
	}
	if got.Error != err.Error() {
		t.Errorf("Error = %q, want %q", got.Error, err.Error())
	}
}
