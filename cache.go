package rdata

import (
	"context"
	"errors"
	"fmt"
)

const (
	// EmptyListMessage is shown when the asset has no features.
	EmptyListMessage = "No Renderer Features added"
	// AddFeatureLabel labels the add button and its menu.
	AddFeatureLabel = "Add Renderer Feature"
	// AttemptFixLabel labels the repair button of unresolved entries.
	AttemptFixLabel = "Attempt Fix"
	// NameFieldLabel labels the rename field.
	NameFieldLabel = "Name"
	// PendingFailureMessage prefixes the error box shown while a failed
	// operation waits for Retry or Abandon.
	PendingFailureMessage = "Changes could not be saved, retry or abandon them to continue editing"
)

// RenderResult reports what happened while drawing one entry.
type RenderResult struct {
	Index    int
	Title    string
	Resolved bool
	Expanded bool
	// Changed is set when an edit was committed.
	Changed bool
	// Action is the context menu action that ran after the edit.
	Action Action
	// Repair is set when the placeholder's repair action ran.
	Repair *RepairReport
}

// AdapterCache keeps one adapter per resolved entry of a model. It rebuilds
// every adapter whenever its count drifts from the model's or a structural
// change was reported; the list is short and edited by hand, so a full
// rebuild is preferred over diffing.
type AdapterCache struct {
	model       *Model
	factory     AdapterFactory
	adapters    []Adapter
	invalid     bool
	tornDown    bool
	unsubscribe func()
}

// NewAdapterCache binds a cache to model. Adapters are created on the first
// Sync.
func NewAdapterCache(model *Model, factory AdapterFactory) (*AdapterCache, error) {
	if model == nil {
		return nil, fmt.Errorf("rdata: adapter cache requires a model")
	}
	if factory == nil {
		return nil, fmt.Errorf("rdata: adapter cache requires an adapter factory")
	}
	c := &AdapterCache{model: model, factory: factory, invalid: true}
	c.unsubscribe = model.Subscribe(func(change Change) {
		if change.Kind.Structural() {
			c.invalid = true
		}
	})
	return c, nil
}

// Len returns the number of cached slots.
func (c *AdapterCache) Len() int {
	return len(c.adapters)
}

// Adapter returns the adapter bound to index, if any.
func (c *AdapterCache) Adapter(index int) (Adapter, bool) {
	if index < 0 || index >= len(c.adapters) || c.adapters[index] == nil {
		return nil, false
	}
	return c.adapters[index], true
}

// Sync rebuilds the adapters when the cached count differs from the model's
// or the cache was invalidated. Unresolved entries get no adapter.
func (c *AdapterCache) Sync() error {
	if c.tornDown {
		return ErrTornDown
	}
	if !c.invalid && len(c.adapters) == c.model.Len() {
		return nil
	}
	if err := c.destroyAll(); err != nil {
		return err
	}

	entries := c.model.Entries()
	adapters := make([]Adapter, len(entries))
	for i, entry := range entries {
		if !entry.Resolved() {
			continue
		}
		adapter, err := c.factory.CreateAdapter(entry.Object)
		if err != nil {
			c.adapters = adapters[:i]
			return errors.Join(
				fmt.Errorf("rdata: create adapter for %q at %d: %w", entry.Type(), i, err),
				c.destroyAll(),
			)
		}
		adapters[i] = adapter
	}
	c.adapters = adapters
	c.invalid = false
	return nil
}

// destroyAll releases every adapter in reverse order and leaves the cache
// invalid.
func (c *AdapterCache) destroyAll() error {
	var errs []error
	for i := len(c.adapters) - 1; i >= 0; i-- {
		if c.adapters[i] == nil {
			continue
		}
		if err := c.factory.DestroyAdapter(c.adapters[i]); err != nil {
			errs = append(errs, err)
		}
	}
	c.adapters = nil
	c.invalid = true
	return errors.Join(errs...)
}

// RenderAndEdit draws the entry at index on surface and commits whatever the
// user changed as one edit. Fold state is stored outside history. A context
// menu action chosen on the header runs after the edit is committed.
//
// While a failed operation is pending the entry is drawn read-only: edits are
// discarded, the menu is disabled and the failure is shown in an error box.
func (c *AdapterCache) RenderAndEdit(ctx context.Context, index int, surface Surface) (RenderResult, error) {
	if err := c.Sync(); err != nil {
		return RenderResult{}, err
	}
	entry, err := c.model.EntryAt(index)
	if err != nil {
		return RenderResult{}, err
	}
	pending := c.model.Pending()
	menu := ContextMenu{
		CanMoveUp:   index > 0,
		CanMoveDown: index < c.model.Len()-1,
		CanRemove:   true,
	}
	if pending != nil {
		menu = ContextMenu{}
	}
	if !entry.Resolved() {
		return c.renderMissing(ctx, index, surface, menu, pending)
	}

	result := RenderResult{Index: index, Title: InspectorTitle(entry.Object), Resolved: true}
	draft := entry.Object.Clone()
	edited, err := c.draw(surface, c.adapters[index], draft, menu, &result)
	if err != nil {
		return result, err
	}
	if pending != nil {
		surface.HelpBox(MessageError, pendingMessage(pending))
		result.Action = ActionNone
		return result, nil
	}

	if edited {
		err := c.model.Edit(ctx, index, "", func(obj *Object) (bool, error) {
			obj.Active = draft.Active
			obj.Name = draft.Name
			obj.Settings = draft.Settings
			return true, nil
		})
		if err != nil {
			return result, err
		}
		result.Changed = true
	}
	if draft.Expanded != entry.Object.Expanded {
		if err := c.model.SetExpanded(ctx, index, draft.Expanded); err != nil {
			return result, err
		}
		result.Changed = true
	}

	if !menu.Allows(result.Action) {
		result.Action = ActionNone
		return result, nil
	}
	if err := c.runAction(ctx, index, result.Action); err != nil {
		return result, err
	}
	return result, c.Sync()
}

// draw renders obj, a detached copy of the entry, and applies the user's
// input to it. It reports whether anything other than the fold state changed.
func (c *AdapterCache) draw(surface Surface, adapter Adapter, obj *Object, menu ContextMenu, result *RenderResult) (bool, error) {
	header := surface.Header(Header{
		Title:         result.Title,
		Active:        obj.Active,
		Expanded:      obj.Expanded,
		ToggleEnabled: true,
		Menu:          menu,
	})
	result.Action = header.Action
	result.Expanded = header.Expanded
	obj.Expanded = header.Expanded

	edited := header.Active != obj.Active
	obj.Active = header.Active
	if !header.Expanded {
		return edited, nil
	}

	if name := SanitizeName(surface.TextField(NameFieldLabel, obj.Name)); name != obj.Name {
		obj.Name = name
		edited = true
	}
	if adapter != nil {
		drawn, err := adapter.Draw(surface, obj)
		if err != nil {
			return false, err
		}
		edited = edited || drawn
	}
	return edited, nil
}

func pendingMessage(err error) string {
	return fmt.Sprintf("%s: %v", PendingFailureMessage, err)
}

func (c *AdapterCache) renderMissing(ctx context.Context, index int, surface Surface, menu ContextMenu, pending error) (RenderResult, error) {
	result := RenderResult{Index: index, Title: MissingFeatureTitle}
	header := surface.Header(Header{
		Title:   MissingFeatureTitle,
		Tooltip: MissingFeatureTooltip,
		Menu:    menu,
	})
	surface.HelpBox(MessageError, MissingFeatureTooltip)
	if pending != nil {
		// repair is a mutation; it is offered again once the failure is resolved
		surface.HelpBox(MessageError, pendingMessage(pending))
		return result, nil
	}

	if surface.Button(AttemptFixLabel) {
		report, err := c.model.ValidateAndRepair(ctx)
		if err != nil {
			return result, err
		}
		result.Repair = &report
		return result, c.Sync()
	}
	if !menu.Allows(header.Action) {
		return result, nil
	}
	result.Action = header.Action
	if err := c.runAction(ctx, index, header.Action); err != nil {
		return result, err
	}
	return result, c.Sync()
}

func (c *AdapterCache) runAction(ctx context.Context, index int, action Action) error {
	switch action {
	case ActionMoveUp:
		return c.model.Move(ctx, index, -1)
	case ActionMoveDown:
		return c.model.Move(ctx, index, 1)
	case ActionRemove:
		return c.model.Remove(ctx, index)
	default:
		return nil
	}
}

// RenderList draws every entry followed by the add button. Drawing stops at
// the first entry whose action changed the list; the rest is drawn on the
// next call. The add button is hidden while a failed operation is pending.
func (c *AdapterCache) RenderList(ctx context.Context, surface Surface) ([]RenderResult, error) {
	if err := c.Sync(); err != nil {
		return nil, err
	}
	var results []RenderResult
	if c.model.Len() == 0 {
		surface.HelpBox(MessageInfo, EmptyListMessage)
	}
	for i := 0; i < c.model.Len(); i++ {
		result, err := c.RenderAndEdit(ctx, i, surface)
		results = append(results, result)
		if err != nil {
			return results, err
		}
		if result.Action != ActionNone || result.Repair != nil {
			return results, nil
		}
	}

	if c.model.Pending() != nil {
		return results, nil
	}
	if !surface.Button(AddFeatureLabel) {
		return results, nil
	}
	items, err := c.model.AvailableTypes()
	if err != nil {
		return results, err
	}
	choice := surface.Choose(AddFeatureLabel, items)
	if choice == "" {
		return results, nil
	}
	if _, err := c.model.Add(ctx, choice); err != nil {
		return results, err
	}
	return results, c.Sync()
}

// Teardown destroys every adapter and detaches from the model. It must be
// called exactly once; later calls and any other use return ErrTornDown.
func (c *AdapterCache) Teardown() error {
	if c.tornDown {
		return ErrTornDown
	}
	c.tornDown = true
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	return c.destroyAll()
}
