// Package inspector provides the default feature adapters and headless
// drawing surfaces.
//
// SchemaAdapterFactory hands out adapters that edit an object's Settings one
// key at a time and validate the result against the JSON Schema of the
// object's type before writing it back.
package inspector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	rdata "github.com/goliatone/go-rendererdata"
	"github.com/goliatone/go-rendererdata/layering"
	"github.com/goliatone/go-rendererdata/schema"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var (
	// ErrInvalidSettings reports settings rejected by the type's schema.
	ErrInvalidSettings = errors.New("inspector: settings do not match schema")
	// ErrUnknownAdapter reports an adapter this factory did not create or
	// already destroyed.
	ErrUnknownAdapter = errors.New("inspector: adapter not owned by factory")
)

// SchemaAdapterFactory implements rdata.AdapterFactory. Compiled schemas are
// cached per type.
type SchemaAdapterFactory struct {
	registry *rdata.TypeRegistry

	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
	live    map[*SettingsAdapter]struct{}
}

// NewSchemaAdapterFactory builds a factory resolving types through registry.
func NewSchemaAdapterFactory(registry *rdata.TypeRegistry) (*SchemaAdapterFactory, error) {
	if registry == nil {
		return nil, fmt.Errorf("inspector: type registry is required")
	}
	return &SchemaAdapterFactory{
		registry: registry,
		schemas:  map[string]*jsonschema.Schema{},
		live:     map[*SettingsAdapter]struct{}{},
	}, nil
}

// CreateAdapter implements rdata.AdapterFactory.
func (f *SchemaAdapterFactory) CreateAdapter(obj *rdata.Object) (rdata.Adapter, error) {
	if obj == nil {
		return nil, fmt.Errorf("inspector: object is required")
	}
	compiled, err := f.schemaFor(obj.Type)
	if err != nil {
		return nil, err
	}
	adapter := &SettingsAdapter{typeName: obj.Type, schema: compiled}

	f.mu.Lock()
	f.live[adapter] = struct{}{}
	f.mu.Unlock()
	return adapter, nil
}

// DestroyAdapter implements rdata.AdapterFactory.
func (f *SchemaAdapterFactory) DestroyAdapter(adapter rdata.Adapter) error {
	settings, ok := adapter.(*SettingsAdapter)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnknownAdapter, adapter)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[settings]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAdapter, settings.typeName)
	}
	delete(f.live, settings)
	settings.destroyed = true
	return nil
}

// Live returns how many adapters were created and not yet destroyed.
func (f *SchemaAdapterFactory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// Validate checks obj's settings against the schema of its type.
func (f *SchemaAdapterFactory) Validate(obj *rdata.Object) error {
	if obj == nil {
		return fmt.Errorf("inspector: object is required")
	}
	compiled, err := f.schemaFor(obj.Type)
	if err != nil {
		return err
	}
	return validate(compiled, obj.Type, obj.Settings)
}

func (f *SchemaAdapterFactory) schemaFor(typeName string) (*jsonschema.Schema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if compiled, ok := f.schemas[typeName]; ok {
		return compiled, nil
	}
	info, ok := f.registry.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("inspector: %w: %q", rdata.ErrUnknownType, typeName)
	}
	doc, err := schema.ForType(info)
	if err != nil {
		return nil, err
	}
	compiled, err := compile(typeName, doc)
	if err != nil {
		return nil, err
	}
	f.schemas[typeName] = compiled
	return compiled, nil
}

func compile(typeName string, doc map[string]any) (*jsonschema.Schema, error) {
	loaded, err := toJSONValue(doc)
	if err != nil {
		return nil, fmt.Errorf("inspector: encode %s schema: %w", typeName, err)
	}
	url := typeName + ".settings.json"
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	if err := compiler.AddResource(url, loaded); err != nil {
		return nil, fmt.Errorf("inspector: add %s schema: %w", typeName, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("inspector: compile %s schema: %w", typeName, err)
	}
	return compiled, nil
}

func validate(compiled *jsonschema.Schema, typeName string, settings map[string]any) error {
	if settings == nil {
		settings = map[string]any{}
	}
	instance, err := toJSONValue(settings)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSettings, typeName, err)
	}
	if err := compiled.Validate(instance); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSettings, typeName, err)
	}
	return nil
}

// toJSONValue converts value to the generic form the validator expects.
func toJSONValue(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}

// SettingsAdapter draws one field per settings key. Edited settings are only
// written back when they satisfy the type's schema; otherwise the violation
// is shown in an error box and the stored settings are kept.
type SettingsAdapter struct {
	typeName  string
	schema    *jsonschema.Schema
	destroyed bool
}

// Type returns the feature type the adapter edits.
func (a *SettingsAdapter) Type() string {
	return a.typeName
}

// Draw implements rdata.Adapter.
func (a *SettingsAdapter) Draw(surface rdata.Surface, obj *rdata.Object) (bool, error) {
	if a.destroyed {
		return false, fmt.Errorf("%w: %s adapter destroyed", ErrUnknownAdapter, a.typeName)
	}
	if obj == nil || obj.Type != a.typeName {
		return false, fmt.Errorf("inspector: %s adapter cannot draw %v", a.typeName, objectType(obj))
	}

	keys := make([]string, 0, len(obj.Settings))
	for key := range obj.Settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	next := layering.Map(obj.Settings)
	changed := false
	for _, key := range keys {
		current := obj.Settings[key]
		value := surface.Field(key, current)
		if reflect.DeepEqual(value, current) {
			continue
		}
		next[key] = value
		changed = true
	}
	if !changed {
		return false, nil
	}
	if err := validate(a.schema, a.typeName, next); err != nil {
		surface.HelpBox(rdata.MessageError, err.Error())
		return false, nil
	}
	obj.Settings = next
	return true, nil
}

func objectType(obj *rdata.Object) string {
	if obj == nil {
		return "<nil>"
	}
	return obj.Type
}
