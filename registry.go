package rdata

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/goliatone/go-rendererdata/layering"
	"github.com/google/uuid"
)

// CategoryExperimental marks feature types shown with an "(Experimental)"
// suffix in the add menu.
const CategoryExperimental = "Experimental"

var typeNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TypeInfo declares a concrete feature type that can be added to an asset.
type TypeInfo struct {
	Name        string
	Category    string
	Description string
	// DisallowMultiple rejects adding the type when an instance is present.
	DisallowMultiple bool
	// Defaults seeds Settings for new instances and fills keys missing from
	// stored ones.
	Defaults map[string]any
	// Schema is the JSON Schema the settings must satisfy. When nil, one is
	// derived from Defaults.
	Schema map[string]any
}

// TypeRegistry stores the concrete feature types keyed by name.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]TypeInfo
}

// NewTypeRegistry constructs a registry seeded with types.
func NewTypeRegistry(types ...TypeInfo) (*TypeRegistry, error) {
	r := &TypeRegistry{types: make(map[string]TypeInfo, len(types))}
	for _, info := range types {
		if err := r.Register(info); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register stores info guarding against duplicates and malformed names.
func (r *TypeRegistry) Register(info TypeInfo) error {
	if info.Name == "" {
		return fmt.Errorf("rdata: feature type name must not be empty")
	}
	if !typeNamePattern.MatchString(info.Name) {
		return fmt.Errorf("rdata: feature type name %q is not an identifier", info.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.types == nil {
		r.types = make(map[string]TypeInfo)
	}
	if _, exists := r.types[info.Name]; exists {
		return fmt.Errorf("rdata: feature type %q already registered", info.Name)
	}
	info.Defaults = layering.Map(info.Defaults)
	info.Schema = layering.Map(info.Schema)
	r.types[info.Name] = info
	return nil
}

// Lookup returns the type registered under name. The returned defaults are a
// copy.
func (r *TypeRegistry) Lookup(name string) (TypeInfo, bool) {
	if r == nil {
		return TypeInfo{}, false
	}
	r.mu.RLock()
	info, ok := r.types[name]
	r.mu.RUnlock()
	if !ok {
		return TypeInfo{}, false
	}
	info.Defaults = layering.Map(info.Defaults)
	info.Schema = layering.Map(info.Schema)
	return info, true
}

// Types returns the registered types sorted by name.
func (r *TypeRegistry) Types() []TypeInfo {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TypeInfo, 0, len(r.types))
	for _, info := range r.types {
		info.Defaults = layering.Map(info.Defaults)
		info.Schema = layering.Map(info.Schema)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// New constructs a fresh, active object of the named type with a default
// display name and a copy of the type's default settings.
func (r *TypeRegistry) New(name string) (*Object, error) {
	info, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return &Object{
		ID:       uuid.New(),
		Type:     info.Name,
		Name:     DefaultName(info.Name),
		Active:   true,
		Settings: layering.Settings(nil, info.Defaults),
	}, nil
}
