// Package usersink forwards renderer activity events to a go-users
// ActivitySink.
package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-rendererdata/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts renderer activity events to a go-users ActivitySink.
//
// Only renderer object types are forwarded unless ObjectTypes narrows or
// widens the set. DefaultTenant is applied when the event carries no tenant.
type Hook struct {
	Sink          usertypes.ActivitySink
	ObjectTypes   []string
	DefaultTenant uuid.UUID
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	if !event.Deliverable() {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !h.accepts(normalized.ObjectType) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		UserID:     parseUUID(normalized.UserID),
		TenantID:   parseUUID(normalized.TenantID),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       recordData(normalized),
		OccurredAt: normalized.OccurredAt,
	}
	if record.TenantID == uuid.Nil {
		record.TenantID = h.DefaultTenant
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}

	return h.Sink.Log(ctx, record)
}

func (h Hook) accepts(objectType string) bool {
	allowed := h.ObjectTypes
	if len(allowed) == 0 {
		allowed = []string{activity.ObjectTypeFeature, activity.ObjectTypeRenderer}
	}
	for _, candidate := range allowed {
		if strings.EqualFold(strings.TrimSpace(candidate), objectType) {
			return true
		}
	}
	return false
}

// recordData flattens event metadata and splits feature object ids of the
// form "<asset>#<stable id>" so sinks can filter by asset.
func recordData(event activity.Event) map[string]any {
	data := make(map[string]any, len(event.Metadata)+3)
	for key, value := range event.Metadata {
		data[key] = value
	}
	if asset, _, ok := strings.Cut(event.ObjectID, "#"); ok {
		data["asset_id"] = asset
	} else if event.ObjectType == activity.ObjectTypeRenderer {
		data["asset_id"] = event.ObjectID
	}
	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = append([]string{}, event.Recipients...)
	}
	if len(data) == 0 {
		return nil
	}
	return data
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
