package rdata

import (
	"context"
	"sort"

	"github.com/goliatone/go-rendererdata/pkg/activity"
	"github.com/google/uuid"
)

// RepairReport describes what ValidateAndRepair found and changed.
type RepairReport struct {
	// Relinked lists the slots that were resolved again.
	Relinked []int
	// Unresolved lists the slots still missing their object. They are left
	// in place for the user to remove.
	Unresolved []int
	// Duplicates lists identifiers referenced by more than one slot.
	Duplicates []StableID
	// Realigned is set when the identifier list was rebuilt.
	Realigned bool
}

// Changed reports whether the repair modified the asset.
func (r RepairReport) Changed() bool {
	return len(r.Relinked) > 0 || r.Realigned
}

// ValidateAndRepair resolves dangling slots against the children stored
// under the asset and rebuilds the identifier list when it drifted. Slots
// are relinked by identifier when the list is usable, otherwise they take
// the first stored child no slot references yet. Nothing is deleted.
func (m *Model) ValidateAndRepair(ctx context.Context) (RepairReport, error) {
	const label = "Repair Renderer Features"
	var report RepairReport
	op := operation{name: "repair", index: -1, label: label, record: true}
	err := m.run(ctx, op, func(ctx context.Context, t *tx) (outcome, error) {
		report = RepairReport{}
		children, err := m.cfg.persistence.Children(ctx, m.asset)
		if err != nil {
			return outcome{}, persistenceError("children", err)
		}

		loaded := make(map[StableID]*Object, len(children))
		idOf := make(map[uuid.UUID]StableID, len(children))
		for _, child := range children {
			if child.Object == nil {
				continue
			}
			loaded[child.ID] = child.Object
			idOf[child.Object.ID] = child.ID
		}

		features := m.asset.Features
		mapValid := len(m.asset.FeatureMap) == len(features)
		linked := make(map[StableID]bool, len(features))
		for _, obj := range features {
			if obj == nil {
				continue
			}
			if id, ok := idOf[obj.ID]; ok {
				linked[id] = true
			}
		}

		for i, obj := range features {
			if obj != nil {
				continue
			}
			var candidate StableID
			if mapValid && m.asset.FeatureMap[i] != 0 {
				candidate = m.asset.FeatureMap[i]
				if linked[candidate] || loaded[candidate] == nil {
					candidate = 0
				}
			} else {
				candidate = firstUnlinked(loaded, linked)
			}
			if candidate == 0 {
				continue
			}
			features[i] = loaded[candidate]
			linked[candidate] = true
			report.Relinked = append(report.Relinked, i)
		}

		if !mapValid {
			m.asset.FeatureMap = make([]StableID, len(features))
			report.Realigned = true
		}
		for i, obj := range features {
			if obj == nil {
				report.Unresolved = append(report.Unresolved, i)
				continue
			}
			if id, ok := idOf[obj.ID]; ok && m.asset.FeatureMap[i] != id {
				m.asset.FeatureMap[i] = id
				report.Realigned = true
			}
		}
		report.Duplicates = duplicateIDs(m.asset.FeatureMap)

		if !report.Changed() {
			return outcome{noop: true}, nil
		}
		input := m.eventInput(-1, nil, 0, label)
		input.Metadata = map[string]any{
			"relinked":   len(report.Relinked),
			"unresolved": len(report.Unresolved),
			"duplicates": len(report.Duplicates),
			"realigned":  report.Realigned,
		}
		return outcome{
			change: Change{Kind: ChangeRepaired, Index: -1, From: -1},
			event:  activity.BuildFeatureRepairedEvent(input),
		}, nil
	})
	if err != nil {
		return RepairReport{}, err
	}
	return report, nil
}

func firstUnlinked(loaded map[StableID]*Object, linked map[StableID]bool) StableID {
	ids := make([]StableID, 0, len(loaded))
	for id := range loaded {
		if !linked[id] {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids[0]
}

func duplicateIDs(ids []StableID) []StableID {
	seen := make(map[StableID]int, len(ids))
	var out []StableID
	for _, id := range ids {
		if id == 0 {
			continue
		}
		seen[id]++
		if seen[id] == 2 {
			out = append(out, id)
		}
	}
	return out
}
