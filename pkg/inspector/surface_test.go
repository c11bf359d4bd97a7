package inspector_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	rdata "github.com/goliatone/go-rendererdata"
	"github.com/goliatone/go-rendererdata/pkg/inspector"
	"github.com/goliatone/go-rendererdata/pkg/store"
	"github.com/google/uuid"
)

func TestTextSurfaceRendersList(t *testing.T) {
	ctx := context.Background()
	registry := testRegistry(t)
	factory, _ := inspector.NewSchemaAdapterFactory(registry)
	persistence := store.NewMemoryStore()
	asset := &rdata.Asset{GUID: uuid.New(), Name: "Renderer2D"}

	model, err := rdata.Open(asset, rdata.WithPersistence(persistence), rdata.WithRegistry(registry))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := model.Add(ctx, "Blit"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := model.SetExpanded(ctx, 0, true); err != nil {
		t.Fatalf("expand: %v", err)
	}
	asset.Features = append(asset.Features, nil)
	asset.FeatureMap = append(asset.FeatureMap, 77)

	cache, err := rdata.NewAdapterCache(model, factory)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	var out bytes.Buffer
	flushes := persistence.Flushes()
	if _, err := cache.RenderList(ctx, inspector.NewTextSurface(&out)); err != nil {
		t.Fatalf("render list: %v", err)
	}
	if persistence.Flushes() != flushes {
		t.Fatalf("expected a read-only render, got %d flushes", persistence.Flushes()-flushes)
	}

	text := out.String()
	for _, want := range []string{
		"- [x] NewBlit (Blit)",
		"    Name: NewBlit",
		"    intensity: 1",
		"    pass: AfterRendering",
		"+     " + rdata.MissingFeatureTitle,
		"(error) " + rdata.MissingFeatureTooltip,
		"[" + rdata.AttemptFixLabel + "]",
		"[" + rdata.AddFeatureLabel + "]",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, text)
		}
	}
}

func TestScriptSurfaceConsumesAnswers(t *testing.T) {
	surface := (&inspector.ScriptSurface{
		Texts:  map[string]string{"Name": "Bloom"},
		Choice: "Blit",
	}).Press("Go")

	if got := surface.TextField("Name", "old"); got != "Bloom" {
		t.Fatalf("expected scripted text, got %q", got)
	}
	if got := surface.TextField("Name", "old"); got != "old" {
		t.Fatalf("expected echo after the answer was consumed, got %q", got)
	}
	if !surface.Button("Go") || surface.Button("Go") {
		t.Fatalf("expected exactly one click")
	}
	if got := surface.Choose("Add", nil); got != "Blit" {
		t.Fatalf("expected scripted choice, got %q", got)
	}
	if got := surface.Choose("Add", nil); got != "" {
		t.Fatalf("expected dismissed menu, got %q", got)
	}
	header := surface.Header(rdata.Header{Title: "T", Active: true})
	if !header.Active || header.Expanded || header.Action != rdata.ActionNone {
		t.Fatalf("expected echoed header, got %+v", header)
	}
	if got := len(surface.Drawn("button")); got != 2 {
		t.Fatalf("expected 2 button calls, got %d", got)
	}
}
