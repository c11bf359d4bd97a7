// Package history is an in-memory undo/redo service for feature models.
//
// A group collects the steps recorded between BeginGroup and EndGroup. Undo
// reverts the steps of the newest group in reverse order; Redo replays them
// in recording order. The model records its list state before it edits, so
// undoing a removal stores the destroyed child again before the list that
// references it is restored.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	rdata "github.com/goliatone/go-rendererdata"
)

// ErrNothingToUndo is returned by Undo on an empty undo stack.
var ErrNothingToUndo = errors.New("history: nothing to undo")

// ErrNothingToRedo is returned by Redo on an empty redo stack.
var ErrNothingToRedo = errors.New("history: nothing to redo")

// DefaultLimit is the number of groups kept when no limit is configured.
const DefaultLimit = 100

// Option configures a Service.
type Option func(*Service)

// WithLimit caps the number of undo groups kept.
func WithLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// Service implements rdata.History.
type Service struct {
	mu          sync.Mutex
	persistence rdata.Persistence
	limit       int
	undo        []*group
	redo        []*group
	open        *group
	depth       int
}

type group struct {
	label string
	steps []step
}

type step interface {
	undo(ctx context.Context, p rdata.Persistence) error
	redo(ctx context.Context, p rdata.Persistence) error
	seal()
}

// New returns a service that stores and deletes children through
// persistence.
func New(persistence rdata.Persistence, opts ...Option) *Service {
	s := &Service{persistence: persistence, limit: DefaultLimit}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// BeginGroup opens a group. Nested groups fold into the outermost one.
func (s *Service) BeginGroup(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depth++
	if s.open == nil {
		s.open = &group{label: label}
	}
}

// EndGroup closes the current group. Closing the outermost group pushes it
// on the undo stack and clears the redo stack; empty groups are dropped.
func (s *Service) EndGroup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depth == 0 {
		return
	}
	s.depth--
	if s.depth > 0 {
		return
	}
	g := s.open
	s.open = nil
	if g == nil || len(g.steps) == 0 {
		return
	}
	for _, st := range g.steps {
		st.seal()
	}
	s.undo = append(s.undo, g)
	if len(s.undo) > s.limit {
		s.undo = s.undo[len(s.undo)-s.limit:]
	}
	s.redo = nil
}

// AbortGroup discards the open group, including any outer group it is
// nested in.
func (s *Service) AbortGroup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = nil
	s.depth = 0
}

// RecordState captures target now and again when the group closes.
func (s *Service) RecordState(target rdata.Restorable) {
	if target == nil {
		return
	}
	s.record(&stateStep{target: target, before: target.Snapshot()})
}

// RegisterCreated records that child was stored under parent.
func (s *Service) RegisterCreated(parent *rdata.Asset, child *rdata.Object) {
	s.record(&childStep{parent: parent, child: child, created: true})
}

// DestroyChild deletes child and records the deletion.
func (s *Service) DestroyChild(ctx context.Context, parent *rdata.Asset, child *rdata.Object) error {
	if err := s.persistence.DeleteChild(ctx, parent, child); err != nil {
		return err
	}
	s.record(&childStep{parent: parent, child: child})
	return nil
}

func (s *Service) record(st step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil {
		return
	}
	s.open.steps = append(s.open.steps, st)
}

// CanUndo reports whether a group can be undone.
func (s *Service) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

// CanRedo reports whether a group can be redone.
func (s *Service) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}

// Labels returns the undo stack labels, oldest first.
func (s *Service) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	labels := make([]string, len(s.undo))
	for i, g := range s.undo {
		labels[i] = g.label
	}
	return labels
}

// Undo reverts the newest group and returns its label. A group that fails
// halfway stays on the undo stack.
func (s *Service) Undo(ctx context.Context) (string, error) {
	s.mu.Lock()
	if len(s.undo) == 0 {
		s.mu.Unlock()
		return "", ErrNothingToUndo
	}
	g := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.mu.Unlock()

	// steps call back into the model, so the lock is not held here
	var err error
	for i := len(g.steps) - 1; i >= 0 && err == nil; i-- {
		err = g.steps[i].undo(ctx, s.persistence)
	}
	if err == nil {
		err = s.flush(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.undo = append(s.undo, g)
		return g.label, fmt.Errorf("history: undo %q: %w", g.label, err)
	}
	s.redo = append(s.redo, g)
	return g.label, nil
}

// Redo replays the newest undone group and returns its label.
func (s *Service) Redo(ctx context.Context) (string, error) {
	s.mu.Lock()
	if len(s.redo) == 0 {
		s.mu.Unlock()
		return "", ErrNothingToRedo
	}
	g := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.mu.Unlock()

	var err error
	for i := 0; i < len(g.steps) && err == nil; i++ {
		err = g.steps[i].redo(ctx, s.persistence)
	}
	if err == nil {
		err = s.flush(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.redo = append(s.redo, g)
		return g.label, fmt.Errorf("history: redo %q: %w", g.label, err)
	}
	s.undo = append(s.undo, g)
	return g.label, nil
}

func (s *Service) flush(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}
	return s.persistence.Flush(ctx)
}

type stateStep struct {
	target rdata.Restorable
	before rdata.ListSnapshot
	after  rdata.ListSnapshot
}

func (st *stateStep) seal() {
	st.after = st.target.Snapshot()
}

func (st *stateStep) undo(ctx context.Context, _ rdata.Persistence) error {
	return st.target.Restore(ctx, st.before)
}

func (st *stateStep) redo(ctx context.Context, _ rdata.Persistence) error {
	return st.target.Restore(ctx, st.after)
}

// childStep records a child that was stored (created) or deleted.
type childStep struct {
	parent  *rdata.Asset
	child   *rdata.Object
	created bool
}

func (st *childStep) seal() {}

func (st *childStep) undo(ctx context.Context, p rdata.Persistence) error {
	if st.created {
		return st.remove(ctx, p)
	}
	return st.store(ctx, p)
}

func (st *childStep) redo(ctx context.Context, p rdata.Persistence) error {
	if st.created {
		return st.store(ctx, p)
	}
	return st.remove(ctx, p)
}

func (st *childStep) store(ctx context.Context, p rdata.Persistence) error {
	if _, err := p.StoreChild(ctx, st.parent, st.child); err != nil {
		return err
	}
	return p.MarkDirty(ctx, st.parent)
}

func (st *childStep) remove(ctx context.Context, p rdata.Persistence) error {
	if err := p.DeleteChild(ctx, st.parent, st.child); err != nil {
		return err
	}
	return p.MarkDirty(ctx, st.parent)
}
