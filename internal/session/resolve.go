package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/adamancini/clasp/internal/schema"
	"github.com/adamancini/clasp/internal/state"
	"github.com/adamancini/clasp/internal/types"
)

// EffectiveSetting is a key's resolved value and the scope that supplied it.
type EffectiveSetting struct {
	Key    string      `json:"key" yaml:"key"`
	Value  any         `json:"value" yaml:"value"`
	Origin types.Scope `json:"origin" yaml:"origin"`
}

// scopeDoc is one settings document in the precedence chain. Within the
// project scope the local override file is consulted before the shared
// settings file; both carry the project tag.
type scopeDoc struct {
	scope  types.Scope
	values map[string]any
}

type chain struct {
	docs     []scopeDoc
	defaults map[string]any
}

// loadChain reads every scope's settings document in precedence order.
// Missing documents are skipped; malformed ones were already surfaced as
// detection warnings and are treated as absent here too.
func loadChain(projectDir, userDir, enterpriseDir string, det *state.Detected, defs []schema.SettingDef) chain {
	var docs []scopeDoc
	add := func(scope types.Scope, path string) {
		values := readJSONObject(path)
		if values != nil {
			docs = append(docs, scopeDoc{scope: scope, values: values})
		}
	}

	add(types.ScopeEnterprise, filepath.Join(enterpriseDir, "managed-settings.json"))
	add(types.ScopeProject, filepath.Join(projectDir, ".claude", "settings.local.json"))
	add(types.ScopeProject, filepath.Join(projectDir, ".claude", "settings.json"))
	add(types.ScopeUser, filepath.Join(userDir, "settings.json"))

	if len(det.Directives) > 0 {
		docs = append(docs, scopeDoc{scope: types.ScopeDirective, values: det.Directives})
	}

	defaults := map[string]any{}
	for _, def := range defs {
		if def.Default != nil {
			defaults[def.Key] = def.Default
		}
	}
	return chain{docs: docs, defaults: defaults}
}

func readJSONObject(path string) map[string]any {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil
	}
	return doc
}

// EffectiveValue walks the fixed precedence chain (enterprise > project >
// user > CLAUDE.md directive > built-in default) and returns the first
// defined value with its origin scope. The second return is false when no
// scope defines the key.
func (cs *ConfigState) EffectiveValue(key string) (EffectiveSetting, bool) {
	if schema.IsStructuralKey(key) {
		return EffectiveSetting{Key: key}, false
	}
	for _, doc := range cs.chain.docs {
		if value, ok := doc.values[key]; ok {
			return EffectiveSetting{Key: key, Value: value, Origin: doc.scope}, true
		}
	}
	if value, ok := cs.chain.defaults[key]; ok {
		return EffectiveSetting{Key: key, Value: value, Origin: types.ScopeDefault}, true
	}
	return EffectiveSetting{Key: key}, false
}

// EffectiveSettings resolves every key known from the chain or the schema
// definitions, sorted by key.
func (cs *ConfigState) EffectiveSettings() []EffectiveSetting {
	keys := map[string]bool{}
	for _, doc := range cs.chain.docs {
		for key := range doc.values {
			if !schema.IsStructuralKey(key) {
				keys[key] = true
			}
		}
	}
	for key := range cs.chain.defaults {
		keys[key] = true
	}

	var result []EffectiveSetting
	for _, key := range sortedNames(keys) {
		if resolved, ok := cs.EffectiveValue(key); ok {
			result = append(result, resolved)
		}
	}
	return result
}

// inheritedValue returns the value a key would resolve to if the project
// scope stopped defining it: the first hit walking user > directive >
// default. Used for redundancy elimination in the settings diff.
func (cs *ConfigState) inheritedValue(key string) (any, types.Scope, bool) {
	for _, doc := range cs.chain.docs {
		if doc.scope == types.ScopeEnterprise || doc.scope == types.ScopeProject {
			continue
		}
		if value, ok := doc.values[key]; ok {
			return value, doc.scope, true
		}
	}
	if value, ok := cs.chain.defaults[key]; ok {
		return value, types.ScopeDefault, true
	}
	return nil, "", false
}

// profileBaseValue returns the value the chosen profile's base document
// supplies for a key, if any.
func (cs *ConfigState) profileBaseValue(key string) (any, bool) {
	value, ok := cs.ProfileBase()[key]
	return value, ok
}

// ProfileBase returns the chosen profile's base settings document, or an
// empty map when no profile is selected or its document is unreadable.
func (cs *ConfigState) ProfileBase() map[string]any {
	if cs.selectedProfile == "" {
		return map[string]any{}
	}
	doc, err := cs.catalog.ProfileDocument(cs.selectedProfile)
	if err != nil {
		return map[string]any{}
	}
	return doc
}

// InheritedValue is the exported form of inheritedValue, used by the
// persistence renderer for the same redundancy elimination the diff applies.
func (cs *ConfigState) InheritedValue(key string) (any, types.Scope, bool) {
	return cs.inheritedValue(key)
}
