package rdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-rendererdata/pkg/activity"
)

// Session is one editing session over an asset: the model, its adapter
// cache and the bookkeeping needed to report the session when it closes.
type Session struct {
	model       *Model
	cache       *AdapterCache
	modified    bool
	changes     int
	closed      bool
	unsubscribe func()
}

// OpenSession builds a model over asset and an adapter cache fed by factory.
func OpenSession(asset *Asset, factory AdapterFactory, opts ...Option) (*Session, error) {
	model, err := Open(asset, opts...)
	if err != nil {
		return nil, err
	}
	cache, err := NewAdapterCache(model, factory)
	if err != nil {
		return nil, err
	}
	s := &Session{model: model, cache: cache}
	s.unsubscribe = model.Subscribe(func(Change) {
		s.modified = true
		s.changes++
	})
	return s, nil
}

// Model returns the session's feature model.
func (s *Session) Model() *Model {
	return s.model
}

// Cache returns the session's adapter cache.
func (s *Session) Cache() *AdapterCache {
	return s.cache
}

// Modified reports whether any change was committed during the session.
func (s *Session) Modified() bool {
	return s.modified
}

// Close tears the adapter cache down and, when the session modified the
// asset, emits a renderer.modified activity event.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return fmt.Errorf("rdata: session closed: %w", ErrTornDown)
	}
	s.closed = true
	if ctx == nil {
		ctx = context.Background()
	}
	s.unsubscribe()

	err := s.cache.Teardown()
	if s.modified {
		input := s.model.eventInput(-1, nil, 0, "")
		input.Metadata = map[string]any{
			"changes":  s.changes,
			"features": s.model.Len(),
			"pending":  s.model.Pending() != nil,
		}
		s.model.emit(ctx, activity.BuildRendererModifiedEvent(input))
	}
	if perr := s.model.Pending(); perr != nil {
		err = errors.Join(err, perr)
	}
	return err
}
