package rdata

import (
	"context"
	"time"

	"github.com/goliatone/go-rendererdata/layering"
	"github.com/google/uuid"
)

// StableID is the persistence-assigned identifier of a stored feature. It is
// assigned once by Persistence.StoreChild and never reused for another child.
type StableID int64

// Object is a feature sub-object owned by a renderer asset. The concrete
// variant is selected by Type; Settings carries the type-specific fields.
type Object struct {
	ID       uuid.UUID      `json:"guid" yaml:"guid"`
	Type     string         `json:"type" yaml:"type"`
	Name     string         `json:"name" yaml:"name"`
	Active   bool           `json:"active" yaml:"active"`
	Expanded bool           `json:"expanded,omitempty" yaml:"expanded,omitempty"`
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	out := *o
	out.Settings = layering.Map(o.Settings)
	return &out
}

// Asset is the renderer configuration asset being edited. Features and
// FeatureMap are index-aligned; a nil entry in Features is an unresolved
// reference whose backing object failed to load.
type Asset struct {
	GUID       uuid.UUID
	Name       string
	Features   []*Object
	FeatureMap []StableID
	// Properties holds the scalar renderer settings (sort mode, HDR scale,
	// blend styles). They are persisted untouched by this package.
	Properties map[string]any
}

// Entry is a read view of one slot of the feature list.
type Entry struct {
	Index  int
	ID     StableID
	Object *Object
}

// Resolved reports whether the slot's backing object is loaded.
func (e Entry) Resolved() bool {
	return e.Object != nil
}

// Name returns the feature's display name or "" when unresolved.
func (e Entry) Name() string {
	if e.Object == nil {
		return ""
	}
	return e.Object.Name
}

// Active reports the feature's active flag; unresolved entries are inactive.
func (e Entry) Active() bool {
	return e.Object != nil && e.Object.Active
}

// Type returns the declared feature type or "" when unresolved.
func (e Entry) Type() string {
	if e.Object == nil {
		return ""
	}
	return e.Object.Type
}

// Child pairs a stored object with the identifier persistence assigned to it.
type Child struct {
	ID     StableID
	Object *Object
}

// Persistence stores feature objects as children of an asset.
type Persistence interface {
	StoreChild(ctx context.Context, parent *Asset, child *Object) (StableID, error)
	DeleteChild(ctx context.Context, parent *Asset, child *Object) error
	// Children lists the loadable children stored under parent, including
	// ones no longer referenced by the feature list.
	Children(ctx context.Context, parent *Asset) ([]Child, error)
	MarkDirty(ctx context.Context, parent *Asset) error
	Flush(ctx context.Context) error
}

// Restorable is implemented by state that the history service can capture and
// put back when undoing or redoing a group.
type Restorable interface {
	Snapshot() ListSnapshot
	Restore(ctx context.Context, snapshot ListSnapshot) error
}

// History groups mutations into reversible units.
type History interface {
	BeginGroup(label string)
	EndGroup()
	// AbortGroup drops everything recorded since BeginGroup.
	AbortGroup()
	RecordState(target Restorable)
	RegisterCreated(parent *Asset, child *Object)
	// DestroyChild deletes child through persistence and records the
	// deletion so it can be reverted.
	DestroyChild(ctx context.Context, parent *Asset, child *Object) error
}

// Adapter renders and edits the fields of one feature object.
type Adapter interface {
	Draw(surface Surface, obj *Object) (changed bool, err error)
}

// AdapterFactory creates and destroys adapters bound to feature objects.
type AdapterFactory interface {
	CreateAdapter(obj *Object) (Adapter, error)
	DestroyAdapter(adapter Adapter) error
}

// MessageKind selects the style of a help box.
type MessageKind int

const (
	MessageInfo MessageKind = iota
	MessageWarning
	MessageError
)

// Action is a context menu choice made on a feature header.
type Action int

const (
	ActionNone Action = iota
	ActionMoveUp
	ActionMoveDown
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionMoveUp:
		return "move_up"
	case ActionMoveDown:
		return "move_down"
	case ActionRemove:
		return "remove"
	default:
		return "none"
	}
}

// ContextMenu describes which header actions are enabled.
type ContextMenu struct {
	CanMoveUp   bool
	CanMoveDown bool
	CanRemove   bool
}

// Allows reports whether action is enabled by the menu.
func (m ContextMenu) Allows(action Action) bool {
	switch action {
	case ActionMoveUp:
		return m.CanMoveUp
	case ActionMoveDown:
		return m.CanMoveDown
	case ActionRemove:
		return m.CanRemove
	default:
		return false
	}
}

// Header describes a feature foldout header.
type Header struct {
	Title string
	// Tooltip is set for the missing feature placeholder.
	Tooltip       string
	Active        bool
	Expanded      bool
	ToggleEnabled bool
	Menu          ContextMenu
}

// HeaderResult is what the user did with a header during one draw.
type HeaderResult struct {
	Active   bool
	Expanded bool
	Action   Action
}

// Surface is the immediate-mode UI the inspector draws on. Every call returns
// the value after user input for the current frame.
type Surface interface {
	Header(header Header) HeaderResult
	TextField(label, value string) string
	Field(label string, value any) any
	HelpBox(kind MessageKind, message string)
	Button(label string) bool
	// Choose shows a menu and returns the chosen item or "" when dismissed.
	Choose(title string, items []MenuItem) string
}

// Metrics observes model operations.
type Metrics interface {
	ObserveOperation(op string, duration time.Duration, err error)
	SetFeatureCount(asset string, count int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}

func (noopMetrics) SetFeatureCount(string, int) {}
