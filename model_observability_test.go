package rdata_test

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"testing"

	rdata "github.com/goliatone/go-rendererdata"
	"github.com/goliatone/go-rendererdata/pkg/activity"
	"github.com/goliatone/go-rendererdata/pkg/store"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingTracer struct {
	noop.Tracer
	spans []string
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	r.spans = append(r.spans, name)
	return r.Tracer.Start(ctx, name, opts...)
}

func TestActivityEventsPerOperation(t *testing.T) {
	ctx := context.Background()
	asset := newAsset()
	hook := &activity.CaptureHook{}
	model := openModel(t, asset, store.NewMemoryStore(),
		rdata.WithActivityHooks(activity.Hooks{hook}),
		rdata.WithActor("user-1", "tenant-1"),
	)

	a, _ := model.Add(ctx, "TypeA")
	if _, err := model.Add(ctx, "TypeB"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := model.Move(ctx, 0, 1); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := model.SetActive(ctx, 1, false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := model.Remove(ctx, 0); err != nil {
		t.Fatalf("remove: %v", err)
	}

	verbs := make([]string, len(hook.Events))
	for i, event := range hook.Events {
		verbs[i] = event.Verb
	}
	want := []string{
		activity.VerbFeatureAdded,
		activity.VerbFeatureAdded,
		activity.VerbFeatureMoved,
		activity.VerbFeatureUpdated,
		activity.VerbFeatureRemoved,
	}
	if !slices.Equal(verbs, want) {
		t.Fatalf("expected %v, got %v", want, verbs)
	}

	moved := hook.Events[2]
	if moved.ActorID != "user-1" || moved.TenantID != "tenant-1" || moved.Channel != "renderer" {
		t.Fatalf("unexpected actor fields %+v", moved)
	}
	if moved.ObjectType != activity.ObjectTypeFeature {
		t.Fatalf("unexpected object type %q", moved.ObjectType)
	}
	if moved.Metadata["from_index"] != 0 || moved.Metadata["index"] != 1 || moved.Metadata["feature_type"] != "TypeA" {
		t.Fatalf("unexpected move metadata %v", moved.Metadata)
	}
	wantID := asset.GUID.String() + "#" + strconv.FormatInt(int64(a.ID), 10)
	if moved.ObjectID != wantID {
		t.Fatalf("expected object id %q, got %q", wantID, moved.ObjectID)
	}
}

func TestActivityHookFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	hookErr := errors.New("sink down")
	hook := &activity.CaptureHook{Err: hookErr}
	var logged []rdata.LogEvent
	model := openModel(t, newAsset(), store.NewMemoryStore(),
		rdata.WithActivityHooks(activity.Hooks{hook}),
		rdata.WithLogger(rdata.LoggerFunc(func(event rdata.LogEvent) {
			logged = append(logged, event)
		})),
	)

	if _, err := model.Add(ctx, "TypeA"); err != nil {
		t.Fatalf("expected add to succeed, got %v", err)
	}
	if len(hook.Events) != 1 {
		t.Fatalf("expected the hook to be called")
	}
	if len(logged) != 2 || logged[0].Operation != "add" || logged[1].Operation != "activity" || !errors.Is(logged[1].Err, hookErr) {
		t.Fatalf("unexpected log events %+v", logged)
	}
}

func TestActivityDisabled(t *testing.T) {
	hook := &activity.CaptureHook{}
	model := openModel(t, newAsset(), store.NewMemoryStore(),
		rdata.WithActivityHooks(activity.Hooks{hook, nil}),
		rdata.WithActivityConfig(activity.Config{Enabled: false}),
	)
	if got := len(model.ActivityHooks()); got != 1 {
		t.Fatalf("expected nil hooks dropped, got %d", got)
	}
	if _, err := model.Add(context.Background(), "TypeA"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(hook.Events) != 0 {
		t.Fatalf("expected no events when disabled, got %d", len(hook.Events))
	}
}

func TestOperationsAreTracedAndLogged(t *testing.T) {
	ctx := context.Background()
	tracer := &recordingTracer{}
	var logged []rdata.LogEvent
	model := openModel(t, newAsset(), store.NewMemoryStore(),
		rdata.WithTracer(tracer),
		rdata.WithLogger(rdata.LoggerFunc(func(event rdata.LogEvent) {
			logged = append(logged, event)
		})),
	)

	if _, err := model.Add(ctx, "TypeA"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := model.Move(ctx, 0, -1); err == nil {
		t.Fatalf("expected invalid move")
	}
	if !slices.Equal(tracer.spans, []string{"rdata.add", "rdata.move"}) {
		t.Fatalf("unexpected spans %v", tracer.spans)
	}
	if len(logged) != 2 {
		t.Fatalf("expected 2 log events, got %d", len(logged))
	}
	if logged[0].Label != "Add Renderer Feature" || logged[0].Type != "TypeA" || logged[0].Err != nil {
		t.Fatalf("unexpected add log %+v", logged[0])
	}
	if logged[1].Index != 0 || !errors.Is(logged[1].Err, rdata.ErrInvalidIndex) {
		t.Fatalf("unexpected move log %+v", logged[1])
	}
}
