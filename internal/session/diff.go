package session

import (
	"reflect"

	"github.com/adamancini/clasp/internal/types"
)

// CategoryDiff is the add/remove set difference for one resource category.
type CategoryDiff struct {
	ToAdd    []string `json:"to_add,omitempty" yaml:"to_add,omitempty"`
	ToRemove []string `json:"to_remove,omitempty" yaml:"to_remove,omitempty"`
}

// Empty reports whether the category needs no work.
func (d CategoryDiff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// SettingChange is one settings-key transition. After is nil when the key
// stops being defined at project scope.
type SettingChange struct {
	Key         string      `json:"key" yaml:"key"`
	Before      any         `json:"before,omitempty" yaml:"before,omitempty"`
	BeforeScope types.Scope `json:"before_scope,omitempty" yaml:"before_scope,omitempty"`
	After       any         `json:"after,omitempty" yaml:"after,omitempty"`
}

// ProfileChange records a permission profile transition.
type ProfileChange struct {
	Before string `json:"before" yaml:"before"`
	After  string `json:"after" yaml:"after"`
}

// Diff is the complete difference between desired and current state. It is
// recomputed fresh before every commit and never cached across applies.
type Diff struct {
	Profile    *ProfileChange                  `json:"profile,omitempty" yaml:"profile,omitempty"`
	Categories map[types.Category]CategoryDiff `json:"categories,omitempty" yaml:"categories,omitempty"`
	Settings   []SettingChange                 `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Empty reports whether applying the diff would be a no-op.
func (d *Diff) Empty() bool {
	if d.Profile != nil || len(d.Settings) > 0 {
		return false
	}
	for _, cd := range d.Categories {
		if !cd.Empty() {
			return false
		}
	}
	return true
}

// Counts returns total additions and removals across categories.
func (d *Diff) Counts() (add, remove int) {
	for _, cd := range d.Categories {
		add += len(cd.ToAdd)
		remove += len(cd.ToRemove)
	}
	return
}

// Diff computes the pending difference between the current selections and
// the detected state. Pure: no side effects, safe to call repeatedly.
func (cs *ConfigState) Diff() *Diff {
	d := &Diff{Categories: make(map[types.Category]CategoryDiff)}

	if cs.selectedProfile != cs.detected.Profile {
		d.Profile = &ProfileChange{Before: cs.detected.Profile, After: cs.selectedProfile}
	}

	for _, category := range types.AllCategories() {
		d.Categories[category] = cs.categoryDiff(category)
	}

	d.Settings = cs.settingsDiff()
	return d
}

// EffectiveSelection returns the selection for a category after user-scope
// dedup: items already provided by ~/.claude are not materialized again at
// project scope.
func (cs *ConfigState) EffectiveSelection(cat types.Category) map[string]bool {
	selected := cs.selected[cat]
	userSet := cs.userResources[cat]
	if len(userSet) == 0 {
		return copySet(selected)
	}
	effective := make(map[string]bool, len(selected))
	for name := range selected {
		if !userSet[name] {
			effective[name] = true
		}
	}
	return effective
}

// categoryDiff is a pure set difference over resource names.
func (cs *ConfigState) categoryDiff(cat types.Category) CategoryDiff {
	selected := cs.EffectiveSelection(cat)
	existing := cs.detected.ExistingNames(cat)

	var cd CategoryDiff
	for _, name := range sortedNames(selected) {
		if !existing[name] {
			cd.ToAdd = append(cd.ToAdd, name)
		}
	}
	for _, name := range sortedNames(existing) {
		if !selected[name] {
			cd.ToRemove = append(cd.ToRemove, name)
		}
	}
	return cd
}

// settingsDiff compares desired overrides against the detected project
// settings with redundancy elimination: a desired value identical to what
// the chosen profile's base document or a lower surviving scope (user,
// directive, default) already guarantees produces no entry.
func (cs *ConfigState) settingsDiff() []SettingChange {
	keys := map[string]bool{}
	for key := range cs.detected.Settings {
		keys[key] = true
	}
	for key := range cs.overrides {
		keys[key] = true
	}

	var changes []SettingChange
	for _, key := range sortedNames(keys) {
		oldVal, oldOk := cs.detected.Settings[key]
		newVal, newOk := cs.overrides[key]

		if newOk && cs.isRedundant(key, newVal) {
			continue
		}
		if oldOk && newOk && reflect.DeepEqual(oldVal, newVal) {
			continue
		}

		change := SettingChange{Key: key}
		if resolved, ok := cs.EffectiveValue(key); ok {
			change.Before = resolved.Value
			change.BeforeScope = resolved.Origin
		}
		if newOk {
			change.After = newVal
		} else {
			// Key cleared from project scope. A base-supplied key keeps the
			// base value in the rendered document.
			if baseVal, ok := cs.profileBaseValue(key); ok {
				if oldOk && reflect.DeepEqual(oldVal, baseVal) {
					continue
				}
				change.After = baseVal
			} else if !oldOk {
				continue
			}
		}
		changes = append(changes, change)
	}
	return changes
}

// isRedundant reports whether writing key=value at project scope would
// duplicate a value already in force from the profile base or a lower scope.
func (cs *ConfigState) isRedundant(key string, value any) bool {
	if baseVal, ok := cs.profileBaseValue(key); ok && reflect.DeepEqual(baseVal, value) {
		// Supplied by the profile base document; the rendered settings file
		// carries it either way.
		if oldVal, oldOk := cs.detected.Settings[key]; !oldOk || reflect.DeepEqual(oldVal, value) {
			return true
		}
		return false
	}
	if inherited, _, ok := cs.inheritedValue(key); ok && reflect.DeepEqual(inherited, value) {
		return true
	}
	return false
}
