package rdata_test

import (
	"context"
	"slices"
	"testing"

	rdata "github.com/goliatone/go-rendererdata"
	"github.com/goliatone/go-rendererdata/pkg/history"
	"github.com/goliatone/go-rendererdata/pkg/store"
)

func TestHistoryGroupsAndUndo(t *testing.T) {
	ctx := context.Background()
	asset := newAsset()
	persistence := store.NewMemoryStore()
	hist := history.New(persistence)
	model := openModel(t, asset, persistence, rdata.WithHistory(hist))

	entry, err := model.Add(ctx, "TypeA")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := model.Add(ctx, "TypeB"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := model.Move(ctx, 1, -1); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := model.Rename(ctx, 1, "Main"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := model.SetExpanded(ctx, 1, true); err != nil {
		t.Fatalf("expand: %v", err)
	}
	if err := model.Remove(ctx, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}

	want := []string{
		"Add Renderer Feature",
		"Add Renderer Feature",
		"Move Render Feature",
		"Modify NewTypeA",
		"Remove Main",
	}
	if got := hist.Labels(); !slices.Equal(got, want) {
		t.Fatalf("expected labels %v, got %v", want, got)
	}

	if label, err := hist.Undo(ctx); err != nil || label != "Remove Main" {
		t.Fatalf("undo remove: %q %v", label, err)
	}
	requireAligned(t, asset)
	if model.Len() != 2 || asset.Features[1] != entry.Object || asset.FeatureMap[1] != entry.ID {
		t.Fatalf("expected the removed feature back at index 1 with its id")
	}
	if children, _ := persistence.Children(ctx, asset); len(children) != 2 {
		t.Fatalf("expected the destroyed child to be stored again, got %d", len(children))
	}

	if _, err := hist.Undo(ctx); err != nil {
		t.Fatalf("undo rename: %v", err)
	}
	if entry.Object.Name != "NewTypeA" {
		t.Fatalf("expected rename undone in place, got %q", entry.Object.Name)
	}
	if _, err := hist.Undo(ctx); err != nil {
		t.Fatalf("undo move: %v", err)
	}
	if got := model.Types(); !slices.Equal(got, []string{"TypeA", "TypeB"}) {
		t.Fatalf("expected move undone, got %v", got)
	}

	if _, err := hist.Redo(ctx); err != nil {
		t.Fatalf("redo move: %v", err)
	}
	if got := model.Types(); !slices.Equal(got, []string{"TypeB", "TypeA"}) {
		t.Fatalf("expected move redone, got %v", got)
	}
	requireAligned(t, asset)
}

func TestFailedOperationLeavesNoHistory(t *testing.T) {
	ctx := context.Background()
	asset := newAsset()
	persistence := newFlakyStore()
	hist := history.New(persistence)
	model := openModel(t, asset, persistence, rdata.WithHistory(hist))

	persistence.flushErrs = []error{errFlush}
	if _, err := model.Add(ctx, "TypeA"); err == nil {
		t.Fatalf("expected flush failure")
	}
	if hist.CanUndo() {
		t.Fatalf("expected the failed group to be aborted")
	}
	model.Abandon()

	if _, err := model.Add(ctx, "Single"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := model.Add(ctx, "Single"); err == nil {
		t.Fatalf("expected duplicate to be rejected")
	}
	if got := hist.Labels(); len(got) != 1 {
		t.Fatalf("expected one recorded group, got %v", got)
	}
}
