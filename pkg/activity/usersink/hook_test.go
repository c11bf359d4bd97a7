package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-rendererdata/pkg/activity"
	"github.com/goliatone/go-rendererdata/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsFeatureEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	tenantID := uuid.New()
	assetID := uuid.New().String()

	event := activity.BuildFeatureRemovedEvent(activity.FeatureEventInput{
		ActorID:        actorID.String(),
		TenantID:       tenantID.String(),
		Channel:        "renderer",
		DefinitionCode: "renderer:remove",
		Recipients:     []string{"lead@example.com"},
		AssetID:        assetID,
		FeatureType:    "Decal",
		StableID:       12,
		Index:          1,
		OccurredAt:     now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.TenantID != tenantID {
		t.Fatalf("unexpected identities: %+v", record)
	}
	if record.UserID != uuid.Nil {
		t.Fatalf("expected empty user id to map to nil uuid, got %s", record.UserID)
	}
	if record.Verb != activity.VerbFeatureRemoved || record.ObjectType != activity.ObjectTypeFeature {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.ObjectID != assetID+"#12" {
		t.Fatalf("unexpected object id %q", record.ObjectID)
	}
	if record.OccurredAt != now {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["asset_id"] != assetID {
		t.Fatalf("expected asset_id split from object id, got %v", record.Data["asset_id"])
	}
	if record.Data["feature_type"] != "Decal" || record.Data["definition_code"] != "renderer:remove" {
		t.Fatalf("expected metadata passthrough, got %+v", record.Data)
	}
	recipients, ok := record.Data["recipients"].([]string)
	if !ok || len(recipients) != 1 || recipients[0] != "lead@example.com" {
		t.Fatalf("expected recipients metadata got %v", record.Data["recipients"])
	}
}

func TestHookNotifyFiltersObjectTypes(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	if err := hook.Notify(context.Background(), activity.Event{Verb: "update", ObjectType: "option", ObjectID: "1"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 0 {
		t.Fatalf("expected foreign object types to be skipped, got %d", len(sink.records))
	}

	hook.ObjectTypes = []string{"option"}
	if err := hook.Notify(context.Background(), activity.Event{Verb: "update", ObjectType: "option", ObjectID: "1"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected explicit object type to be forwarded, got %d", len(sink.records))
	}
}

func TestHookNotifySkipsMissingVerb(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
}

func TestHookNotifyAppliesDefaults(t *testing.T) {
	sink := &recordingSink{err: errors.New("sink down")}
	tenant := uuid.New()
	hook := usersink.Hook{Sink: sink, DefaultTenant: tenant}

	err := hook.Notify(context.Background(), activity.BuildRendererModifiedEvent(activity.FeatureEventInput{AssetID: "asset-1"}))
	if err == nil || err.Error() != "sink down" {
		t.Fatalf("expected sink error to propagate, got %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
	if record.TenantID != tenant {
		t.Fatalf("expected default tenant %s got %s", tenant, record.TenantID)
	}
	if record.Data["asset_id"] != "asset-1" {
		t.Fatalf("expected asset id for renderer events, got %v", record.Data["asset_id"])
	}
}
