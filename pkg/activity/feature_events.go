package activity

import (
	"strconv"
	"strings"
	"time"
)

const (
	// ObjectTypeFeature is the object type of feature list events.
	ObjectTypeFeature = "renderer_feature"
	// ObjectTypeRenderer is the object type of asset-level events.
	ObjectTypeRenderer = "renderer_data"

	VerbFeatureAdded    = "renderer.feature.added"
	VerbFeatureRemoved  = "renderer.feature.removed"
	VerbFeatureMoved    = "renderer.feature.moved"
	VerbFeatureUpdated  = "renderer.feature.updated"
	VerbFeatureRepaired = "renderer.feature.repaired"
	VerbRendererChanged = "renderer.modified"
)

// FeatureEventInput describes the common fields of feature list events.
type FeatureEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	AssetID        string
	AssetName      string
	FeatureType    string
	FeatureName    string
	StableID       int64
	Index          int
	// FromIndex is set for moves.
	FromIndex  *int
	Label      string
	OccurredAt time.Time
}

// BuildFeatureAddedEvent constructs a normalized event for a feature addition.
func BuildFeatureAddedEvent(input FeatureEventInput) Event {
	return buildFeatureEvent(VerbFeatureAdded, ObjectTypeFeature, input)
}

// BuildFeatureRemovedEvent constructs a normalized event for a feature removal.
func BuildFeatureRemovedEvent(input FeatureEventInput) Event {
	return buildFeatureEvent(VerbFeatureRemoved, ObjectTypeFeature, input)
}

// BuildFeatureMovedEvent constructs a normalized event for a reorder.
func BuildFeatureMovedEvent(input FeatureEventInput) Event {
	return buildFeatureEvent(VerbFeatureMoved, ObjectTypeFeature, input)
}

// BuildFeatureUpdatedEvent constructs a normalized event for a field edit
// (toggle, rename, settings).
func BuildFeatureUpdatedEvent(input FeatureEventInput) Event {
	return buildFeatureEvent(VerbFeatureUpdated, ObjectTypeFeature, input)
}

// BuildFeatureRepairedEvent constructs an event for a repair pass. It is
// reported against the asset rather than a single feature.
func BuildFeatureRepairedEvent(input FeatureEventInput) Event {
	return buildFeatureEvent(VerbFeatureRepaired, ObjectTypeRenderer, input)
}

// BuildRendererModifiedEvent constructs the event sent when an editing
// session that modified the asset closes.
func BuildRendererModifiedEvent(input FeatureEventInput) Event {
	return buildFeatureEvent(VerbRendererChanged, ObjectTypeRenderer, input)
}

func buildFeatureEvent(verb, objectType string, input FeatureEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.AssetName != "" {
		metadata = ensureMetadata(metadata)
		metadata["asset_name"] = input.AssetName
	}
	if objectType == ObjectTypeFeature {
		metadata = ensureMetadata(metadata)
		metadata["index"] = input.Index
		if input.FeatureType != "" {
			metadata["feature_type"] = input.FeatureType
		}
		if input.FeatureName != "" {
			metadata["feature_name"] = input.FeatureName
		}
		if input.StableID != 0 {
			metadata["stable_id"] = input.StableID
		}
	}
	if input.FromIndex != nil {
		metadata = ensureMetadata(metadata)
		metadata["from_index"] = *input.FromIndex
	}
	if input.Label != "" {
		metadata = ensureMetadata(metadata)
		metadata["label"] = input.Label
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	assetID := strings.TrimSpace(input.AssetID)
	if assetID == "" {
		assetID = strings.TrimSpace(input.AssetName)
	}
	objectID := assetID
	if objectType == ObjectTypeFeature && input.StableID != 0 {
		objectID = assetID + "#" + strconv.FormatInt(input.StableID, 10)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
