package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	rdata "github.com/goliatone/go-rendererdata"
	"github.com/google/uuid"
)

// Record is what MemoryStore saved for an asset on its last flush.
type Record struct {
	Features   []uuid.UUID
	FeatureMap []rdata.StableID
	Children   []rdata.StableID
}

// MemoryStore is an in-memory Persistence. Children are kept by reference.
type MemoryStore struct {
	mu       sync.RWMutex
	children map[uuid.UUID]map[rdata.StableID]*rdata.Object
	dirty    map[uuid.UUID]*rdata.Asset
	saved    map[uuid.UUID]Record
	flushes  int
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		children: map[uuid.UUID]map[rdata.StableID]*rdata.Object{},
		dirty:    map[uuid.UUID]*rdata.Asset{},
		saved:    map[uuid.UUID]Record{},
	}
}

// Seed stores children under parent and returns their identifiers, in
// order. It is used to prepare assets in tests and examples.
func (s *MemoryStore) Seed(parent *rdata.Asset, children ...*rdata.Object) []rdata.StableID {
	ids := make([]rdata.StableID, len(children))
	for i, child := range children {
		ids[i], _ = s.StoreChild(context.Background(), parent, child)
	}
	return ids
}

// StoreChild implements rdata.Persistence.
func (s *MemoryStore) StoreChild(_ context.Context, parent *rdata.Asset, child *rdata.Object) (rdata.StableID, error) {
	if parent == nil || child == nil {
		return 0, fmt.Errorf("store: parent and child are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.children[parent.GUID]
	if set == nil {
		set = map[rdata.StableID]*rdata.Object{}
		s.children[parent.GUID] = set
	}
	id := allocate(parent.GUID, child.ID, func(id rdata.StableID) (uuid.UUID, bool) {
		obj, ok := set[id]
		if !ok {
			return uuid.Nil, false
		}
		return obj.ID, true
	})
	set[id] = child
	return id, nil
}

// DeleteChild implements rdata.Persistence.
func (s *MemoryStore) DeleteChild(_ context.Context, parent *rdata.Asset, child *rdata.Object) error {
	if parent == nil || child == nil {
		return fmt.Errorf("store: parent and child are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, obj := range s.children[parent.GUID] {
		if obj.ID == child.ID {
			delete(s.children[parent.GUID], id)
			return nil
		}
	}
	return fmt.Errorf("store: child %s not found under %s", child.ID, parent.GUID)
}

// Children implements rdata.Persistence.
func (s *MemoryStore) Children(_ context.Context, parent *rdata.Asset) ([]rdata.Child, error) {
	if parent == nil {
		return nil, fmt.Errorf("store: parent is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rdata.Child, 0, len(s.children[parent.GUID]))
	for id, obj := range s.children[parent.GUID] {
		out = append(out, rdata.Child{ID: id, Object: obj})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MarkDirty implements rdata.Persistence.
func (s *MemoryStore) MarkDirty(_ context.Context, parent *rdata.Asset) error {
	if parent == nil {
		return fmt.Errorf("store: parent is required")
	}
	s.mu.Lock()
	s.dirty[parent.GUID] = parent
	s.mu.Unlock()
	return nil
}

// Flush implements rdata.Persistence by recording every dirty asset.
func (s *MemoryStore) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for guid, asset := range s.dirty {
		record := Record{
			Features:   make([]uuid.UUID, len(asset.Features)),
			FeatureMap: append([]rdata.StableID(nil), asset.FeatureMap...),
		}
		for i, obj := range asset.Features {
			if obj != nil {
				record.Features[i] = obj.ID
			}
		}
		for id := range s.children[guid] {
			record.Children = append(record.Children, id)
		}
		sort.Slice(record.Children, func(i, j int) bool { return record.Children[i] < record.Children[j] })
		s.saved[guid] = record
		delete(s.dirty, guid)
	}
	s.flushes++
	return nil
}

// Saved returns the record written for parent by the last flush.
func (s *MemoryStore) Saved(parent uuid.UUID) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.saved[parent]
	return record, ok
}

// Flushes returns how many times Flush ran.
func (s *MemoryStore) Flushes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flushes
}

// Forget drops a stored child without going through the model, the way an
// externally deleted sub-object disappears.
func (s *MemoryStore) Forget(parent uuid.UUID, id rdata.StableID) {
	s.mu.Lock()
	delete(s.children[parent], id)
	s.mu.Unlock()
}
