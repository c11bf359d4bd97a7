package rdata

import (
	"context"

	"github.com/goliatone/go-rendererdata/pkg/activity"
)

// ActivityHooks returns a cloned slice of the hooks configured on the model.
func (m *Model) ActivityHooks() activity.Hooks {
	if m == nil {
		return nil
	}
	return cloneActivityHooks(m.cfg.activityHooks)
}

func newEmitter(cfg modelConfig) *activity.Emitter {
	return activity.NewEmitter(cfg.activityHooks, cfg.activityConfig)
}

func (m *Model) eventInput(index int, obj *Object, id StableID, label string) activity.FeatureEventInput {
	input := activity.FeatureEventInput{
		ActorID:   m.cfg.actorID,
		UserID:    m.cfg.actorID,
		TenantID:  m.cfg.tenantID,
		AssetID:   m.asset.GUID.String(),
		AssetName: m.asset.Name,
		StableID:  int64(id),
		Index:     index,
		Label:     label,
	}
	if obj != nil {
		input.FeatureType = obj.Type
		input.FeatureName = obj.Name
	}
	return input
}

// emit delivers event without failing the operation that produced it. Hook
// errors are logged.
func (m *Model) emit(ctx context.Context, event activity.Event) {
	if !m.emitter.Enabled() {
		return
	}
	if err := m.emitter.Emit(ctx, event); err != nil {
		m.cfg.logger.Log(LogEvent{
			Operation: "activity",
			Asset:     assetName(m.asset),
			Index:     -1,
			Label:     event.Verb,
			Err:       err,
		})
	}
}
