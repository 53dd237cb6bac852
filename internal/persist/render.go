package persist

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/adamancini/clasp/internal/session"
	"github.com/adamancini/clasp/internal/state"
	"github.com/adamancini/clasp/internal/types"
)

// SettingsSchemaURL is the $schema value written when no profile supplies one.
const SettingsSchemaURL = "https://json.schemastore.org/claude-code-settings.json"

// Sentinel block names owned by clasp.
const (
	// ToolsBlock is the CLAUDE.md block listing the bootstrapped tools.
	ToolsBlock = "BOOTSTRAPPED_TOOLS"
	// GitignoreBlock is the .gitignore block carrying clasp's ignore entries.
	GitignoreBlock = "CLASP"
)

// buildSettingsDoc renders the candidate project settings document.
// Merge order: profile base, then enabled-plugin map, then hooks structure,
// then scalar overrides. Overrides matching the profile base or a lower
// surviving scope are elided; values that fail type coercion are reverted
// from the selection and returned as warnings.
func buildSettingsDoc(cs *session.ConfigState) (map[string]any, []string) {
	var warnings []string

	base := cs.ProfileBase()
	doc := make(map[string]any, len(base)+4)
	for k, v := range base {
		doc[k] = v
	}
	if _, ok := doc["$schema"]; !ok {
		doc["$schema"] = SettingsSchemaURL
	}

	plugins := cs.EffectiveSelection(types.CategoryPlugin)
	if len(plugins) > 0 {
		enabled := make(map[string]any, len(plugins))
		for id := range plugins {
			enabled[id] = true
		}
		doc["enabledPlugins"] = enabled
	}

	if hooks := buildHooksStructure(cs); len(hooks) > 0 {
		doc["hooks"] = hooks
	}

	schemaTypes := map[string]string{}
	for _, def := range cs.SettingDefs() {
		schemaTypes[def.Key] = def.Type
	}

	overrides := cs.Overrides()
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := overrides[key]
		if baseVal, ok := base[key]; ok && reflect.DeepEqual(baseVal, value) {
			continue // the base document already carries it
		}
		if inherited, _, ok := cs.InheritedValue(key); ok && reflect.DeepEqual(inherited, value) {
			continue // redundant with a lower scope that stays in force
		}
		coerced, err := coerceValue(value, schemaTypes[key])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			cs.DropOverrideSilently(key)
			continue
		}
		doc[key] = coerced
	}

	return doc, warnings
}

// buildHooksStructure renders the hooks map from the selected hooks, keyed
// by event name, with {HOOKS_DIR} substituted to the project's install dir.
func buildHooksStructure(cs *session.ConfigState) map[string]any {
	selected := cs.EffectiveSelection(types.CategoryHook)
	if len(selected) == 0 {
		return nil
	}

	byName := map[string]struct {
		event, matcher, template string
	}{}
	for _, hook := range cs.AvailableHooks() {
		byName[hook.Name] = struct {
			event, matcher, template string
		}{hook.Event, hook.Matcher, hook.CommandTemplate}
	}

	installDir := state.HooksInstallDir(cs.ProjectDir())
	result := map[string]any{}
	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def, ok := byName[name]
		if !ok || def.event == "" {
			continue
		}
		command := strings.ReplaceAll(def.template, "{HOOKS_DIR}", installDir)
		entry := map[string]any{
			"matcher": def.matcher,
			"hooks": []any{
				map[string]any{"type": "command", "command": command},
			},
		}
		existing, _ := result[def.event].([]any)
		result[def.event] = append(existing, entry)
	}
	return result
}

// buildMCPDoc renders the project MCP manifest from the selected servers.
func buildMCPDoc(cs *session.ConfigState) map[string]any {
	servers := map[string]any{}
	selected := cs.EffectiveSelection(types.CategoryMCP)
	for _, mcp := range cs.AvailableMCPs() {
		if selected[mcp.Name] {
			servers[mcp.Name] = mcp.Config
		}
	}
	return map[string]any{"mcpServers": servers}
}

// buildToolsBody renders the BOOTSTRAPPED_TOOLS sentinel block body.
func buildToolsBody(cs *session.ConfigState) string {
	var b strings.Builder
	b.WriteString("## Bootstrapped Tools\n\n")
	fmt.Fprintf(&b, "**Permission profile:** %s\n", displayProfile(cs.Profile()))

	sections := []struct {
		title string
		cat   types.Category
	}{
		{"Commands", types.CategoryCommand},
		{"Agents", types.CategoryAgent},
		{"Skills", types.CategorySkill},
		{"Plugins", types.CategoryPlugin},
		{"MCPs", types.CategoryMCP},
		{"Hooks", types.CategoryHook},
	}
	for _, section := range sections {
		b.WriteString("\n**" + section.title + ":**\n")
		selected := cs.Selected(section.cat)
		names := make([]string, 0, len(selected))
		for name := range selected {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  - %s\n", name)
		}
	}

	b.WriteString("\nRun `clasp` to reconfigure.")
	return b.String()
}

func displayProfile(name string) string {
	if name == "" {
		return "(none)"
	}
	return name
}

// gitignoreBody is the content of the .gitignore sentinel block.
func gitignoreBody() string {
	return ".claude/\n.mcp.json"
}
