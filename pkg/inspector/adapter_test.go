package inspector_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	rdata "github.com/goliatone/go-rendererdata"
	"github.com/goliatone/go-rendererdata/pkg/inspector"
	"github.com/goliatone/go-rendererdata/pkg/store"
	"github.com/google/uuid"
)

func testRegistry(t *testing.T) *rdata.TypeRegistry {
	t.Helper()
	registry, err := rdata.NewTypeRegistry(
		rdata.TypeInfo{Name: "Blit", Defaults: map[string]any{"pass": "AfterRendering", "intensity": 1.0}},
		rdata.TypeInfo{Name: "Decal", DisallowMultiple: true, Defaults: map[string]any{"maxDistance": 1000}},
		rdata.TypeInfo{Name: "Strict", Schema: map[string]any{
			"type":     "object",
			"required": []any{"mode"},
			"properties": map[string]any{
				"mode": map[string]any{"enum": []any{"fast", "exact"}},
			},
		}},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry
}

func TestFactoryTracksAdapters(t *testing.T) {
	registry := testRegistry(t)
	factory, err := inspector.NewSchemaAdapterFactory(registry)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	obj, _ := registry.New("Blit")

	first, err := factory.CreateAdapter(obj)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := factory.CreateAdapter(obj)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if factory.Live() != 2 {
		t.Fatalf("expected 2 live adapters, got %d", factory.Live())
	}
	if err := factory.DestroyAdapter(first); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if err := factory.DestroyAdapter(first); !errors.Is(err, inspector.ErrUnknownAdapter) {
		t.Fatalf("expected ErrUnknownAdapter on double destroy, got %v", err)
	}
	if _, err := first.Draw(&inspector.ScriptSurface{}, obj); !errors.Is(err, inspector.ErrUnknownAdapter) {
		t.Fatalf("expected destroyed adapter to refuse drawing, got %v", err)
	}
	if err := factory.DestroyAdapter(second); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if factory.Live() != 0 {
		t.Fatalf("expected no live adapters, got %d", factory.Live())
	}

	unknown := &rdata.Object{ID: uuid.New(), Type: "Missing"}
	if _, err := factory.CreateAdapter(unknown); !errors.Is(err, rdata.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := inspector.NewSchemaAdapterFactory(nil); err == nil {
		t.Fatalf("expected nil registry to be rejected")
	}
}

func TestSettingsAdapterValidatesEdits(t *testing.T) {
	registry := testRegistry(t)
	factory, _ := inspector.NewSchemaAdapterFactory(registry)
	obj, _ := registry.New("Blit")
	adapter, err := factory.CreateAdapter(obj)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	surface := &inspector.ScriptSurface{Fields: map[string]any{"intensity": 2.5}}
	changed, err := adapter.Draw(surface, obj)
	if err != nil || !changed {
		t.Fatalf("expected valid edit to apply, changed=%v err=%v", changed, err)
	}
	if obj.Settings["intensity"] != 2.5 {
		t.Fatalf("expected intensity 2.5, got %v", obj.Settings["intensity"])
	}
	if got := surface.Drawn("field"); strings.Join(got, ",") != "intensity,pass" {
		t.Fatalf("expected fields in key order, got %v", got)
	}

	surface = &inspector.ScriptSurface{Fields: map[string]any{"intensity": "bright"}}
	changed, err = adapter.Draw(surface, obj)
	if err != nil || changed {
		t.Fatalf("expected invalid edit to be dropped, changed=%v err=%v", changed, err)
	}
	if obj.Settings["intensity"] != 2.5 {
		t.Fatalf("expected settings untouched, got %v", obj.Settings["intensity"])
	}
	if help := surface.Drawn("help"); len(help) != 1 || !strings.Contains(help[0], "settings do not match schema") {
		t.Fatalf("expected schema violation help box, got %v", help)
	}

	changed, err = adapter.Draw(&inspector.ScriptSurface{}, obj)
	if err != nil || changed {
		t.Fatalf("expected untouched draw to report no change, changed=%v err=%v", changed, err)
	}

	decal, _ := registry.New("Decal")
	if _, err := adapter.Draw(&inspector.ScriptSurface{}, decal); err == nil {
		t.Fatalf("expected type mismatch to fail")
	}
}

func TestFactoryValidateDeclaredSchema(t *testing.T) {
	registry := testRegistry(t)
	factory, _ := inspector.NewSchemaAdapterFactory(registry)

	obj, _ := registry.New("Strict")
	if err := factory.Validate(obj); !errors.Is(err, inspector.ErrInvalidSettings) {
		t.Fatalf("expected missing required key to fail, got %v", err)
	}
	obj.Settings = map[string]any{"mode": "fast"}
	if err := factory.Validate(obj); err != nil {
		t.Fatalf("expected valid settings, got %v", err)
	}
	obj.Settings["mode"] = "slow"
	if err := factory.Validate(obj); !errors.Is(err, inspector.ErrInvalidSettings) {
		t.Fatalf("expected enum violation, got %v", err)
	}

	decal, _ := registry.New("Decal")
	decal.Settings["maxDistance"] = 12.5
	if err := factory.Validate(decal); !errors.Is(err, inspector.ErrInvalidSettings) {
		t.Fatalf("expected fractional value to violate integer default, got %v", err)
	}
}

func TestRenderAndEditThroughCache(t *testing.T) {
	ctx := context.Background()
	registry := testRegistry(t)
	factory, _ := inspector.NewSchemaAdapterFactory(registry)
	persistence := store.NewMemoryStore()
	asset := &rdata.Asset{GUID: uuid.New(), Name: "Renderer2D"}

	session, err := rdata.OpenSession(asset, factory,
		rdata.WithPersistence(persistence),
		rdata.WithRegistry(registry),
	)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := session.Model().Add(ctx, "Blit"); err != nil {
		t.Fatalf("add: %v", err)
	}
	flushes := persistence.Flushes()

	surface := &inspector.ScriptSurface{
		OnHeader: func(h rdata.Header) rdata.HeaderResult {
			return rdata.HeaderResult{Active: h.Active, Expanded: true}
		},
		Texts:  map[string]string{rdata.NameFieldLabel: "Main Blit!"},
		Fields: map[string]any{"intensity": 0.5},
	}
	result, err := session.Cache().RenderAndEdit(ctx, 0, surface)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !result.Changed || !result.Resolved {
		t.Fatalf("expected a committed edit, got %+v", result)
	}
	obj := asset.Features[0]
	if obj.Name != "Main Blit" || !obj.Expanded || obj.Settings["intensity"] != 0.5 {
		t.Fatalf("unexpected object after edit: %+v", obj)
	}
	if persistence.Flushes() != flushes+1 {
		t.Fatalf("expected one flush for the edit, got %d", persistence.Flushes()-flushes)
	}
	if factory.Live() != 1 {
		t.Fatalf("expected one live adapter, got %d", factory.Live())
	}

	if err := session.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if factory.Live() != 0 {
		t.Fatalf("expected adapters destroyed on close, got %d", factory.Live())
	}
}
