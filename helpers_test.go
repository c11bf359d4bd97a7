package rdata_test

import (
	"context"
	"errors"
	"testing"
	"time"

	rdata "github.com/goliatone/go-rendererdata"
	"github.com/goliatone/go-rendererdata/pkg/store"
	"github.com/google/uuid"
)

var (
	errFlush  = errors.New("disk full")
	errDelete = errors.New("asset locked")
)

func testRegistry(t *testing.T) *rdata.TypeRegistry {
	t.Helper()
	registry, err := rdata.NewTypeRegistry(
		rdata.TypeInfo{Name: "TypeA", Defaults: map[string]any{"intensity": 1.0}},
		rdata.TypeInfo{Name: "TypeB"},
		rdata.TypeInfo{Name: "Single", DisallowMultiple: true},
		rdata.TypeInfo{Name: "ScreenSpaceShadows", Category: rdata.CategoryExperimental},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry
}

func newAsset() *rdata.Asset {
	return &rdata.Asset{GUID: uuid.New(), Name: "Renderer2D"}
}

func openModel(t *testing.T, asset *rdata.Asset, persistence rdata.Persistence, opts ...rdata.Option) *rdata.Model {
	t.Helper()
	base := []rdata.Option{
		rdata.WithPersistence(persistence),
		rdata.WithRegistry(testRegistry(t)),
	}
	model, err := rdata.Open(asset, append(base, opts...)...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return model
}

func requireAligned(t *testing.T, asset *rdata.Asset) {
	t.Helper()
	if len(asset.Features) != len(asset.FeatureMap) {
		t.Fatalf("misaligned lists: %d features, %d ids", len(asset.Features), len(asset.FeatureMap))
	}
}

// flakyStore fails the next flushes or child deletions on demand.
type flakyStore struct {
	*store.MemoryStore
	flushErrs []error
	deleteErr error
	deletes   int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: store.NewMemoryStore()}
}

func (s *flakyStore) Flush(ctx context.Context) error {
	if len(s.flushErrs) > 0 {
		err := s.flushErrs[0]
		s.flushErrs = s.flushErrs[1:]
		return err
	}
	return s.MemoryStore.Flush(ctx)
}

func (s *flakyStore) DeleteChild(ctx context.Context, parent *rdata.Asset, child *rdata.Object) error {
	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.DeleteChild(ctx, parent, child)
}

type recordingMetrics struct {
	ops    []string
	errs   []error
	counts map[string]int
}

func (m *recordingMetrics) ObserveOperation(op string, _ time.Duration, err error) {
	m.ops = append(m.ops, op)
	m.errs = append(m.errs, err)
}

func (m *recordingMetrics) SetFeatureCount(asset string, count int) {
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[asset] = count
}
