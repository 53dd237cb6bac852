// Package audit detects cross-scope configuration problems: the same key
// set in multiple scopes, contradictory permission rules, and MCP servers
// declared in the wrong document.
//
// Audit reads a wider set of layers than scope resolution does, including
// the per-project user directory and the legacy ~/.claude.json, because a
// shadowed or misplaced value is exactly what it exists to surface.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/adamancini/clasp/internal/schema"
	"github.com/adamancini/clasp/internal/session"
)

// Warning kinds.
const (
	// KindDupe: the same key carries the same value in two scopes.
	KindDupe = "DUPE"
	// KindOverride: a higher scope shadows a different value below it.
	KindOverride = "OVERRIDE"
	// KindConflict: one permission rule appears with contradictory types.
	KindConflict = "CONFLICT"
)

// Warning is one audit finding.
type Warning struct {
	Scope   string `json:"scope" yaml:"scope"`
	Kind    string `json:"kind" yaml:"kind"`
	Key     string `json:"key" yaml:"key"`
	Message string `json:"message" yaml:"message"`
}

// Options overrides the real scope locations, for tests.
type Options struct {
	UserClaudeDir string // default ~/.claude
	UserHomeDir   string // default os.UserHomeDir
	ManagedDir    string // default platform managed-settings dir
}

// Audit layer names, highest precedence first.
var precedence = []string{"managed", "local", "project", "user-project", "user-global"}

// Run audits every configuration layer visible from a project directory.
func Run(projectDir string, opts Options) []Warning {
	scopes := scanScopes(projectDir, opts)

	var warnings []Warning
	if len(scopes) >= 2 {
		warnings = append(warnings, scalarConflicts(scopes)...)
		warnings = append(warnings, permissionConflicts(scopes)...)
	}
	warnings = append(warnings, orphanedMCPs(projectDir)...)
	return warnings
}

// scanScopes reads every layer that exists and parses cleanly. Layers that
// are absent or malformed are simply not audited.
func scanScopes(projectDir string, opts Options) map[string]map[string]any {
	home := opts.UserHomeDir
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	userDir := opts.UserClaudeDir
	if userDir == "" {
		userDir = filepath.Join(home, ".claude")
	}
	managedDir := opts.ManagedDir
	if managedDir == "" {
		managedDir = session.EnterpriseDir()
	}

	scopes := map[string]map[string]any{}
	add := func(name, path string) {
		if doc := readJSONSafe(path); len(doc) > 0 {
			scopes[name] = doc
		}
	}

	add("managed", filepath.Join(managedDir, "managed-settings.json"))
	add("user-global", filepath.Join(userDir, "settings.json"))
	if _, ok := scopes["user-global"]; !ok && home != "" {
		add("user-global", filepath.Join(home, ".claude.json"))
	}
	add("user-project", filepath.Join(userDir, "projects", encodeProjectPath(projectDir), "settings.json"))
	add("project", filepath.Join(projectDir, ".claude", "settings.json"))
	add("local", filepath.Join(projectDir, ".claude", "settings.local.json"))
	return scopes
}

// encodeProjectPath mirrors the editor's dash encoding of project paths
// inside the per-project user directory.
func encodeProjectPath(projectDir string) string {
	return strings.TrimPrefix(strings.ReplaceAll(projectDir, "/", "-"), "-")
}

func readJSONSafe(path string) map[string]any {
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

// scalarConflicts reports every key defined in two or more layers: DUPE for
// equal values, OVERRIDE when the winning layer shadows a different value.
func scalarConflicts(scopes map[string]map[string]any) []Warning {
	keySet := map[string]bool{}
	for _, doc := range scopes {
		for key := range doc {
			if !schema.IsStructuralKey(key) {
				keySet[key] = true
			}
		}
	}
	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var warnings []Warning
	for _, key := range keys {
		type holder struct {
			scope string
			value any
		}
		var defining []holder
		for _, scope := range precedence {
			if doc, ok := scopes[scope]; ok {
				if value, ok := doc[key]; ok {
					defining = append(defining, holder{scope, value})
				}
			}
		}
		if len(defining) < 2 {
			continue
		}
		winner := defining[0]
		for _, loser := range defining[1:] {
			if reflect.DeepEqual(winner.value, loser.value) {
				warnings = append(warnings, Warning{
					Scope: loser.scope,
					Kind:  KindDupe,
					Key:   key,
					Message: fmt.Sprintf("%s: same value %v in both %s and %s",
						key, loser.value, winner.scope, loser.scope),
				})
			} else {
				warnings = append(warnings, Warning{
					Scope: loser.scope,
					Kind:  KindOverride,
					Key:   key,
					Message: fmt.Sprintf("%s: %s %v overrides %s %v",
						key, winner.scope, winner.value, loser.scope, loser.value),
				})
			}
		}
	}
	return warnings
}

// permissionConflicts reports permission rules that appear under different
// rule types (allow/deny/ask) in any combination of layers.
func permissionConflicts(scopes map[string]map[string]any) []Warning {
	type occurrence struct {
		scope, ruleType string
	}
	byPattern := map[string][]occurrence{}

	scopeNames := make([]string, 0, len(scopes))
	for name := range scopes {
		scopeNames = append(scopeNames, name)
	}
	sort.Strings(scopeNames)

	for _, scope := range scopeNames {
		perms, _ := scopes[scope]["permissions"].(map[string]any)
		for _, ruleType := range []string{"allow", "deny", "ask"} {
			rules, _ := perms[ruleType].([]any)
			for _, rule := range rules {
				if pattern, ok := rule.(string); ok {
					byPattern[pattern] = append(byPattern[pattern], occurrence{scope, ruleType})
				}
			}
		}
	}

	patterns := make([]string, 0, len(byPattern))
	for pattern := range byPattern {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)

	var warnings []Warning
	for _, pattern := range patterns {
		occurrences := byPattern[pattern]
		types := map[string]bool{}
		for _, occ := range occurrences {
			types[occ.ruleType] = true
		}
		if len(types) < 2 {
			continue
		}
		parts := make([]string, 0, len(occurrences))
		for _, occ := range occurrences {
			parts = append(parts, occ.scope+"="+occ.ruleType)
		}
		warnings = append(warnings, Warning{
			Scope: "multi",
			Kind:  KindConflict,
			Key:   pattern,
			Message: fmt.Sprintf("permission rule '%s' has conflicting types: %s",
				pattern, strings.Join(parts, ", ")),
		})
	}
	return warnings
}

// orphanedMCPs reports MCP servers declared in settings.local.json, which
// belong in .mcp.json.
func orphanedMCPs(projectDir string) []Warning {
	local := readJSONSafe(filepath.Join(projectDir, ".claude", "settings.local.json"))
	servers, ok := local["mcpServers"].(map[string]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return []Warning{{
		Scope: "local",
		Kind:  KindOverride,
		Key:   "mcpServers",
		Message: fmt.Sprintf("MCP servers found in settings.local.json: %s. These belong in .mcp.json",
			strings.Join(names, ", ")),
	}}
}
