package rdata

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/goliatone/go-rendererdata/pkg/activity"
)

// ChangeKind classifies a model change notification.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota + 1
	ChangeRemoved
	ChangeMoved
	ChangeUpdated
	ChangeRepaired
	ChangeRestored
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeMoved:
		return "moved"
	case ChangeUpdated:
		return "updated"
	case ChangeRepaired:
		return "repaired"
	case ChangeRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// Structural reports whether the change may have altered which object sits
// at which index.
func (k ChangeKind) Structural() bool {
	return k != ChangeUpdated
}

// Change is delivered to subscribers after a mutation has been persisted.
type Change struct {
	Kind ChangeKind
	// Index is the affected slot, or -1 when the whole list changed.
	Index int
	// From is the source slot of a move, -1 otherwise.
	From int
	// Len is the list length after the change.
	Len int
}

// ListSnapshot captures the feature list for rollback and undo. Restoring a
// snapshot puts the captured objects back at their indices and resets their
// fields in place, so pointers held elsewhere stay valid.
type ListSnapshot struct {
	refs   []*Object
	values []*Object
	ids    []StableID
}

// Len returns the number of captured feature slots.
func (s ListSnapshot) Len() int {
	return len(s.refs)
}

// Model owns the feature list of one asset and keeps it aligned with the
// identifier list and with persistence. It is not safe for concurrent use.
type Model struct {
	asset   *Asset
	cfg     modelConfig
	emitter *activity.Emitter

	subscribers    []subscriber
	nextSubscriber int

	pending *pendingOperation
}

type subscriber struct {
	id int
	fn func(Change)
}

type pendingOperation struct {
	op    string
	err   error
	retry func(context.Context) error
}

// Open builds a model over a loaded asset. WithPersistence and WithRegistry
// are required.
func Open(asset *Asset, opts ...Option) (*Model, error) {
	if asset == nil {
		return nil, fmt.Errorf("rdata: asset must not be nil")
	}
	cfg := applyOptions(opts)
	if cfg.persistence == nil {
		return nil, fmt.Errorf("rdata: persistence is required")
	}
	if cfg.registry == nil {
		return nil, fmt.Errorf("rdata: type registry is required")
	}
	m := &Model{
		asset:   asset,
		cfg:     cfg,
		emitter: newEmitter(cfg),
	}
	cfg.metrics.SetFeatureCount(assetName(asset), len(asset.Features))
	return m, nil
}

// Asset returns the asset being edited.
func (m *Model) Asset() *Asset {
	return m.asset
}

// Len returns the number of feature slots.
func (m *Model) Len() int {
	return len(m.asset.Features)
}

// Aligned reports whether the feature and identifier lists have equal length.
func (m *Model) Aligned() bool {
	return len(m.asset.Features) == len(m.asset.FeatureMap)
}

// EntryAt returns the slot at index. The entry may be unresolved.
func (m *Model) EntryAt(index int) (Entry, error) {
	if index < 0 || index >= len(m.asset.Features) {
		return Entry{}, opError("entry", index, "", ErrInvalidIndex)
	}
	return m.entry(index), nil
}

// Entries returns every slot in order.
func (m *Model) Entries() []Entry {
	out := make([]Entry, len(m.asset.Features))
	for i := range m.asset.Features {
		out[i] = m.entry(i)
	}
	return out
}

func (m *Model) entry(index int) Entry {
	e := Entry{Index: index, Object: m.asset.Features[index]}
	if index < len(m.asset.FeatureMap) {
		e.ID = m.asset.FeatureMap[index]
	}
	return e
}

// Types returns the type of every slot in order, "" for unresolved slots.
func (m *Model) Types() []string {
	out := make([]string, len(m.asset.Features))
	for i, obj := range m.asset.Features {
		if obj != nil {
			out[i] = obj.Type
		}
	}
	return out
}

// AvailableTypes lists the add-menu items: every registered type the
// duplicate policy would accept, sorted by label.
func (m *Model) AvailableTypes() ([]MenuItem, error) {
	var items []MenuItem
	for _, info := range m.cfg.registry.Types() {
		rejected, err := m.cfg.policy.Rejects(m.asset, info)
		if err != nil {
			return nil, opError("available_types", -1, info.Name, err)
		}
		if rejected {
			continue
		}
		items = append(items, MenuItem{Label: MenuName(info), Type: info.Name, Category: info.Category})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items, nil
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (m *Model) Subscribe(fn func(Change)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	m.nextSubscriber++
	id := m.nextSubscriber
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range m.subscribers {
			if s.id == id {
				m.subscribers = slices.Delete(m.subscribers, i, i+1)
				return
			}
		}
	}
}

func (m *Model) notify(change Change) {
	for _, s := range slices.Clone(m.subscribers) {
		s.fn(change)
	}
}

// Pending returns the persistence failure that blocks further mutations, or
// nil.
func (m *Model) Pending() error {
	if m.pending == nil {
		return nil
	}
	return m.pending.err
}

// Retry re-runs the operation that failed to persist. The list was rolled
// back when it failed, so the operation starts from the same state.
func (m *Model) Retry(ctx context.Context) error {
	if m.pending == nil {
		return nil
	}
	p := m.pending
	m.pending = nil
	return p.retry(ctx)
}

// Abandon drops the failed operation. The rolled back list is written on the
// next successful flush.
func (m *Model) Abandon() {
	m.pending = nil
}

// Add appends a new feature of the named type.
func (m *Model) Add(ctx context.Context, typeName string) (Entry, error) {
	const label = "Add Renderer Feature"
	var added Entry
	op := operation{name: "add", index: -1, typeName: typeName, label: label, record: true, aligned: true}
	err := m.run(ctx, op, func(ctx context.Context, t *tx) (outcome, error) {
		info, ok := m.cfg.registry.Lookup(typeName)
		if !ok {
			return outcome{}, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
		}
		rejected, err := m.cfg.policy.Rejects(m.asset, info)
		if err != nil {
			return outcome{}, err
		}
		if rejected {
			return outcome{}, ErrDuplicateType
		}
		obj, err := m.cfg.registry.New(typeName)
		if err != nil {
			return outcome{}, err
		}
		id, err := m.cfg.persistence.StoreChild(ctx, m.asset, obj)
		if err != nil {
			return outcome{}, persistenceError("store child", err)
		}
		t.compensate(func(ctx context.Context) {
			if err := m.cfg.persistence.DeleteChild(ctx, m.asset, obj); err != nil {
				m.logRollback(obj.Type, persistenceError("delete child", err))
			}
		})
		m.cfg.history.RegisterCreated(m.asset, obj)

		m.asset.Features = append(m.asset.Features, obj)
		m.asset.FeatureMap = append(m.asset.FeatureMap, id)
		index := len(m.asset.Features) - 1
		added = Entry{Index: index, ID: id, Object: obj}
		return outcome{
			change: Change{Kind: ChangeAdded, Index: index, From: -1},
			event:  activity.BuildFeatureAddedEvent(m.eventInput(index, obj, id, label)),
		}, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return added, nil
}

// Remove deletes the slot at index from both lists. The detached object is
// destroyed through history only after the shortened list has been flushed.
func (m *Model) Remove(ctx context.Context, index int) error {
	label := "Remove Renderer Feature"
	typeName := ""
	if index >= 0 && index < len(m.asset.Features) {
		if obj := m.asset.Features[index]; obj != nil {
			label = "Remove " + obj.Name
			typeName = obj.Type
		}
	}
	op := operation{name: "remove", index: index, typeName: typeName, label: label, record: true, aligned: true}
	return m.run(ctx, op, func(ctx context.Context, t *tx) (outcome, error) {
		if index < 0 || index >= len(m.asset.Features) {
			return outcome{}, ErrInvalidIndex
		}
		obj := m.asset.Features[index]
		id := m.asset.FeatureMap[index]

		m.asset.Features = slices.Delete(m.asset.Features, index, index+1)
		m.asset.FeatureMap = slices.Delete(m.asset.FeatureMap, index, index+1)

		if obj != nil {
			t.afterFlush(func(ctx context.Context) error {
				if err := m.cfg.history.DestroyChild(ctx, m.asset, obj); err != nil {
					return persistenceError("destroy child", err)
				}
				return nil
			})
		}
		return outcome{
			change: Change{Kind: ChangeRemoved, Index: index, From: -1},
			event:  activity.BuildFeatureRemovedEvent(m.eventInput(index, obj, id, label)),
		}, nil
	})
}

// Move relocates the slot at index by offset. The target must stay within
// the list.
func (m *Model) Move(ctx context.Context, index, offset int) error {
	const label = "Move Render Feature"
	op := operation{name: "move", index: index, label: label, record: true, aligned: true}
	return m.run(ctx, op, func(ctx context.Context, t *tx) (outcome, error) {
		n := len(m.asset.Features)
		if index < 0 || index >= n {
			return outcome{}, ErrInvalidIndex
		}
		target := index + offset
		if target < 0 || target >= n {
			return outcome{}, fmt.Errorf("%w: target %d", ErrInvalidIndex, target)
		}
		if target == index {
			return outcome{noop: true}, nil
		}
		moveElement(m.asset.Features, index, target)
		moveElement(m.asset.FeatureMap, index, target)

		from := index
		input := m.eventInput(target, m.asset.Features[target], m.asset.FeatureMap[target], label)
		input.FromIndex = &from
		return outcome{
			change: Change{Kind: ChangeMoved, Index: target, From: index},
			event:  activity.BuildFeatureMovedEvent(input),
		}, nil
	})
}

// SetActive toggles the feature's active flag.
func (m *Model) SetActive(ctx context.Context, index int, active bool) error {
	return m.edit(ctx, "set_active", index, "", true, func(obj *Object) (bool, error) {
		if obj.Active == active {
			return false, nil
		}
		obj.Active = active
		return true, nil
	})
}

// SetExpanded stores the foldout state. It is persisted but not recorded in
// history.
func (m *Model) SetExpanded(ctx context.Context, index int, expanded bool) error {
	return m.edit(ctx, "set_expanded", index, "", false, func(obj *Object) (bool, error) {
		if obj.Expanded == expanded {
			return false, nil
		}
		obj.Expanded = expanded
		return true, nil
	})
}

// Rename sets the feature name after stripping everything but letters,
// digits and spaces.
func (m *Model) Rename(ctx context.Context, index int, name string) error {
	name = SanitizeName(name)
	return m.edit(ctx, "rename", index, "", true, func(obj *Object) (bool, error) {
		if obj.Name == name {
			return false, nil
		}
		obj.Name = name
		return true, nil
	})
}

// Edit runs fn against the object at index as one history group. fn reports
// whether it changed anything; an unchanged edit records and flushes
// nothing. An error from fn rolls the object back.
func (m *Model) Edit(ctx context.Context, index int, label string, fn func(obj *Object) (bool, error)) error {
	if fn == nil {
		return opError("edit", index, "", fmt.Errorf("rdata: edit function must not be nil"))
	}
	return m.edit(ctx, "edit", index, label, true, fn)
}

func (m *Model) edit(ctx context.Context, name string, index int, label string, recorded bool, fn func(obj *Object) (bool, error)) error {
	typeName := ""
	if index >= 0 && index < len(m.asset.Features) {
		if obj := m.asset.Features[index]; obj != nil {
			typeName = obj.Type
			if label == "" && recorded {
				label = "Modify " + obj.Name
			}
		}
	}
	if !recorded {
		label = ""
	}
	op := operation{name: name, index: index, typeName: typeName, label: label, record: recorded, aligned: true}
	return m.run(ctx, op, func(ctx context.Context, t *tx) (outcome, error) {
		if index < 0 || index >= len(m.asset.Features) {
			return outcome{}, ErrInvalidIndex
		}
		obj := m.asset.Features[index]
		if obj == nil {
			return outcome{}, ErrUnresolvedReference
		}
		changed, err := fn(obj)
		if err != nil {
			return outcome{}, err
		}
		if !changed {
			return outcome{noop: true}, nil
		}
		return outcome{
			change: Change{Kind: ChangeUpdated, Index: index, From: -1},
			event:  activity.BuildFeatureUpdatedEvent(m.eventInput(index, obj, m.asset.FeatureMap[index], label)),
		}, nil
	})
}

// Snapshot captures the current lists.
func (m *Model) Snapshot() ListSnapshot {
	s := ListSnapshot{
		refs:   make([]*Object, len(m.asset.Features)),
		values: make([]*Object, len(m.asset.Features)),
		ids:    append([]StableID(nil), m.asset.FeatureMap...),
	}
	for i, obj := range m.asset.Features {
		s.refs[i] = obj
		s.values[i] = obj.Clone()
	}
	return s
}

// Restore puts snapshot back and persists it. History calls it when undoing
// or redoing; it records nothing itself.
func (m *Model) Restore(ctx context.Context, snapshot ListSnapshot) error {
	op := operation{name: "restore", index: -1}
	return m.run(ctx, op, func(ctx context.Context, t *tx) (outcome, error) {
		m.applySnapshot(snapshot)
		return outcome{change: Change{Kind: ChangeRestored, Index: -1, From: -1}}, nil
	})
}

func (m *Model) applySnapshot(s ListSnapshot) {
	features := make([]*Object, len(s.refs))
	for i, ref := range s.refs {
		if ref != nil && s.values[i] != nil {
			*ref = *s.values[i].Clone()
		}
		features[i] = ref
	}
	m.asset.Features = features
	m.asset.FeatureMap = append([]StableID(nil), s.ids...)
}

type operation struct {
	name     string
	index    int
	typeName string
	// label names the history group; empty runs without one.
	label   string
	record  bool
	aligned bool
}

type outcome struct {
	change Change
	event  activity.Event
	noop   bool
}

// tx tracks the work an operation must undo when persisting fails.
type tx struct {
	snapshot   ListSnapshot
	undo       []func(context.Context)
	followUp   []func(context.Context) error
	flushed    bool
	rolledBack bool
}

func (t *tx) compensate(fn func(context.Context)) {
	t.undo = append(t.undo, fn)
}

func (t *tx) afterFlush(fn func(context.Context) error) {
	t.followUp = append(t.followUp, fn)
}

func (m *Model) run(ctx context.Context, op operation, apply func(context.Context, *tx) (outcome, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.pending != nil {
		return opError(op.name, op.index, op.typeName, fmt.Errorf("%w: %s", ErrOperationPending, m.pending.op))
	}
	if op.aligned && !m.Aligned() {
		return opError(op.name, op.index, op.typeName, ErrMisaligned)
	}

	ctx, span := m.startSpan(ctx, op.name, op.index, op.typeName)
	start := time.Now()
	out, err := m.commit(ctx, op, apply)
	duration := time.Since(start)
	if err == nil && out.noop {
		// nothing changed: no metrics, no log line
		endNoopSpan(span)
		return nil
	}
	err = opError(op.name, op.index, op.typeName, err)
	endSpan(span, err)

	m.cfg.metrics.ObserveOperation(op.name, duration, err)
	m.cfg.logger.Log(LogEvent{
		Operation: op.name,
		Asset:     assetName(m.asset),
		Index:     op.index,
		Type:      op.typeName,
		Label:     op.label,
		Duration:  duration,
		Err:       err,
	})

	if err != nil {
		if errors.Is(err, ErrPersistence) {
			m.pending = &pendingOperation{
				op:  op.name,
				err: err,
				retry: func(ctx context.Context) error {
					return m.run(ctx, op, apply)
				},
			}
		}
		return err
	}

	out.change.Len = len(m.asset.Features)
	m.cfg.metrics.SetFeatureCount(assetName(m.asset), out.change.Len)
	m.notify(out.change)
	if out.event.Verb != "" {
		m.emit(ctx, out.event)
	}
	return nil
}

func (m *Model) commit(ctx context.Context, op operation, apply func(context.Context, *tx) (outcome, error)) (outcome, error) {
	t := &tx{snapshot: m.Snapshot()}
	history := m.cfg.history
	grouped := op.label != ""
	if grouped {
		history.BeginGroup(op.label)
		if op.record {
			history.RecordState(m)
		}
	}

	out, err := apply(ctx, t)
	if err == nil && out.noop {
		if grouped {
			history.AbortGroup()
		}
		return out, nil
	}
	if err == nil {
		err = m.persist(ctx)
		t.flushed = err == nil
	}
	for _, fn := range t.followUp {
		if err != nil {
			break
		}
		err = fn(ctx)
	}
	if err != nil {
		m.rollback(ctx, t)
		if grouped {
			history.AbortGroup()
		}
		return outcome{}, err
	}
	if grouped {
		history.EndGroup()
	}
	return out, nil
}

func (m *Model) persist(ctx context.Context) error {
	if err := m.cfg.persistence.MarkDirty(ctx, m.asset); err != nil {
		return persistenceError("mark dirty", err)
	}
	if err := m.cfg.persistence.Flush(ctx); err != nil {
		return persistenceError("flush", err)
	}
	return nil
}

// rollback restores the lists captured before the operation and runs the
// compensations in reverse. A list that already reached storage is flushed
// again on a best effort basis; if that fails too, the next successful
// operation writes it.
func (m *Model) rollback(ctx context.Context, t *tx) {
	if t.rolledBack {
		return
	}
	t.rolledBack = true
	m.applySnapshot(t.snapshot)
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i](ctx)
	}
	if t.flushed {
		if err := m.persist(ctx); err != nil {
			m.logRollback("", err)
		}
	}
}

// logRollback reports a rollback step that failed. The in-memory lists are
// already restored; storage catches up on the next successful flush.
func (m *Model) logRollback(typeName string, err error) {
	m.cfg.logger.Log(LogEvent{
		Operation: "rollback",
		Asset:     assetName(m.asset),
		Index:     -1,
		Type:      typeName,
		Err:       err,
	})
}

func moveElement[T any](s []T, from, to int) {
	v := s[from]
	if from < to {
		copy(s[from:to], s[from+1:to+1])
	} else {
		copy(s[to+1:from+1], s[to:from])
	}
	s[to] = v
}

// directHistory is used when no history service is configured.
type directHistory struct {
	persistence Persistence
}

func (directHistory) BeginGroup(string)               {}
func (directHistory) EndGroup()                       {}
func (directHistory) AbortGroup()                     {}
func (directHistory) RecordState(Restorable)          {}
func (directHistory) RegisterCreated(*Asset, *Object) {}

func (h directHistory) DestroyChild(ctx context.Context, parent *Asset, child *Object) error {
	return h.persistence.DeleteChild(ctx, parent, child)
}
