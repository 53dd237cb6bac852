// Package session owns the in-memory configuration state for one project:
// available resources, detected state, user selections, scope resolution,
// and the diff between desired and current state.
//
// Selection mutators touch only memory and fire change events to registered
// observers; nothing here performs I/O after construction. The persistence
// engine consumes a freshly computed Diff at apply time.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/adamancini/clasp/internal/catalog"
	"github.com/adamancini/clasp/internal/schema"
	"github.com/adamancini/clasp/internal/state"
	"github.com/adamancini/clasp/internal/types"
)

// Event describes a selection mutation, delivered to observers.
type Event struct {
	Kind     string // "resource", "profile", "setting"
	Category types.Category
	Name     string
	Key      string
}

// Options configures construction. Zero values fall back to the real
// user/enterprise locations; tests override them with temp directories.
type Options struct {
	UserClaudeDir string // default ~/.claude
	EnterpriseDir string // default platform managed-settings dir
	SettingDefs   []schema.SettingDef
}

// EnterpriseDir returns the managed settings directory for the platform.
func EnterpriseDir() string {
	if runtime.GOOS == "darwin" {
		return "/Library/Application Support/ClaudeCode"
	}
	return "/etc/claude-code"
}

// ConfigState combines catalog, detected state, and mutable selections.
type ConfigState struct {
	catalog    *catalog.Catalog
	projectDir string

	profiles    []catalog.Profile
	available   map[types.Category][]catalog.Resource
	plugins     []catalog.Plugin
	mcps        []catalog.MCP
	hooks       []catalog.Hook
	settingDefs []schema.SettingDef

	detected *state.Detected

	userResources map[types.Category]map[string]bool

	selectedProfile string
	selected        map[types.Category]map[string]bool
	overrides       map[string]any

	chain chain

	observers []func(Event)
}

// New builds a ConfigState: scans the catalog, detects current state, loads
// the scope chain, and seeds selections from what already exists so the
// initial diff is empty.
func New(cat *catalog.Catalog, projectDir string, opts Options) (*ConfigState, error) {
	userDir := opts.UserClaudeDir
	if userDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		userDir = filepath.Join(home, ".claude")
	}
	enterpriseDir := opts.EnterpriseDir
	if enterpriseDir == "" {
		enterpriseDir = EnterpriseDir()
	}

	cs := &ConfigState{
		catalog:       cat,
		projectDir:    projectDir,
		profiles:      cat.Profiles(),
		available:     make(map[types.Category][]catalog.Resource),
		plugins:       cat.Plugins(),
		mcps:          cat.MCPs(),
		hooks:         cat.Hooks(),
		settingDefs:   opts.SettingDefs,
		userResources: make(map[types.Category]map[string]bool),
		selected:      make(map[types.Category]map[string]bool),
		overrides:     map[string]any{},
	}

	for _, category := range types.SymlinkCategories() {
		resources, err := cat.Scan(category, projectDir)
		if err != nil {
			return nil, err
		}
		cs.available[category] = resources
		cs.userResources[category] = state.DetectUserResources(userDir, category)
	}
	cs.available[types.CategoryPlugin] = pluginResources(cs.plugins)
	cs.available[types.CategoryMCP] = mcpResources(cs.mcps)
	cs.available[types.CategoryHook] = hookResources(cs.hooks)

	cs.detected = state.NewDetector(cat, projectDir).Detect()
	cs.chain = loadChain(projectDir, userDir, enterpriseDir, cs.detected, cs.settingDefs)

	cs.selectedProfile = cs.detected.Profile
	for _, category := range types.AllCategories() {
		cs.selected[category] = copySet(cs.detected.ExistingNames(category))
	}
	for key, value := range cs.detected.Settings {
		cs.overrides[key] = value
	}
	return cs, nil
}

func pluginResources(plugins []catalog.Plugin) []catalog.Resource {
	var resources []catalog.Resource
	for _, p := range plugins {
		resources = append(resources, catalog.Resource{Category: types.CategoryPlugin, Name: p.ID})
	}
	return resources
}

func mcpResources(mcps []catalog.MCP) []catalog.Resource {
	var resources []catalog.Resource
	for _, m := range mcps {
		resources = append(resources, catalog.Resource{Category: types.CategoryMCP, Name: m.Name})
	}
	return resources
}

func hookResources(hooks []catalog.Hook) []catalog.Resource {
	var resources []catalog.Resource
	for _, h := range hooks {
		resources = append(resources, catalog.Resource{Category: types.CategoryHook, Name: h.Name})
	}
	return resources
}

func copySet(src map[string]bool) map[string]bool {
	dst := make(map[string]bool, len(src))
	for k, v := range src {
		if v {
			dst[k] = true
		}
	}
	return dst
}

// Catalog returns the catalog this session scans.
func (cs *ConfigState) Catalog() *catalog.Catalog { return cs.catalog }

// ProjectDir returns the project directory this session reconciles.
func (cs *ConfigState) ProjectDir() string { return cs.projectDir }

// Profiles returns the available permission profiles.
func (cs *ConfigState) Profiles() []catalog.Profile { return cs.profiles }

// Available returns the ordered available resources for a category.
func (cs *ConfigState) Available(cat types.Category) []catalog.Resource {
	return cs.available[cat]
}

// AvailableMCPs returns the discovered MCP server definitions.
func (cs *ConfigState) AvailableMCPs() []catalog.MCP { return cs.mcps }

// AvailableHooks returns the discovered hook definitions.
func (cs *ConfigState) AvailableHooks() []catalog.Hook { return cs.hooks }

// AvailablePlugins returns the discovered plugins.
func (cs *ConfigState) AvailablePlugins() []catalog.Plugin { return cs.plugins }

// SettingDefs returns the setting definitions offered by the editor.
func (cs *ConfigState) SettingDefs() []schema.SettingDef { return cs.settingDefs }

// Existing returns the detected existing resource names for a category.
func (cs *ConfigState) Existing(cat types.Category) map[string]bool {
	return copySet(cs.detected.ExistingNames(cat))
}

// Selected returns the currently selected resource names for a category.
func (cs *ConfigState) Selected(cat types.Category) map[string]bool {
	return copySet(cs.selected[cat])
}

// UserScope returns the resource names already provided at user scope.
func (cs *ConfigState) UserScope(cat types.Category) map[string]bool {
	return copySet(cs.userResources[cat])
}

// Profile returns the currently selected profile name.
func (cs *ConfigState) Profile() string { return cs.selectedProfile }

// DetectedProfile returns the profile detected on disk ("" when none matched).
func (cs *ConfigState) DetectedProfile() string { return cs.detected.Profile }

// Overrides returns a copy of the desired project-scope settings.
func (cs *ConfigState) Overrides() map[string]any {
	out := make(map[string]any, len(cs.overrides))
	for k, v := range cs.overrides {
		out[k] = v
	}
	return out
}

// Warnings returns the non-fatal problems recorded during detection.
func (cs *ConfigState) Warnings() []state.Warning { return cs.detected.Warnings }

// Note returns the project note block body detected in CLAUDE.md.
func (cs *ConfigState) Note() string { return cs.detected.Note }

// Subscribe registers an observer for selection mutations.
func (cs *ConfigState) Subscribe(fn func(Event)) {
	cs.observers = append(cs.observers, fn)
}

func (cs *ConfigState) notify(ev Event) {
	for _, fn := range cs.observers {
		fn(ev)
	}
}

// Toggle flips the selection of a resource in a category.
func (cs *ConfigState) Toggle(cat types.Category, name string) {
	if cs.selected[cat] == nil {
		cs.selected[cat] = map[string]bool{}
	}
	if cs.selected[cat][name] {
		delete(cs.selected[cat], name)
	} else {
		cs.selected[cat][name] = true
	}
	cs.notify(Event{Kind: "resource", Category: cat, Name: name})
}

// Select marks a resource as desired.
func (cs *ConfigState) Select(cat types.Category, name string) {
	if cs.selected[cat] == nil {
		cs.selected[cat] = map[string]bool{}
	}
	if !cs.selected[cat][name] {
		cs.selected[cat][name] = true
		cs.notify(Event{Kind: "resource", Category: cat, Name: name})
	}
}

// Deselect marks a resource as not desired.
func (cs *ConfigState) Deselect(cat types.Category, name string) {
	if cs.selected[cat][name] {
		delete(cs.selected[cat], name)
		cs.notify(Event{Kind: "resource", Category: cat, Name: name})
	}
}

// SelectProfile chooses the permission profile.
func (cs *ConfigState) SelectProfile(name string) {
	if cs.selectedProfile != name {
		cs.selectedProfile = name
		cs.notify(Event{Kind: "profile", Name: name})
	}
}

// SetOverride sets the desired project-scope value for a settings key.
func (cs *ConfigState) SetOverride(key string, value any) {
	cs.overrides[key] = value
	cs.notify(Event{Kind: "setting", Key: key})
}

// ClearOverride drops the desired project-scope value for a settings key.
func (cs *ConfigState) ClearOverride(key string) {
	if _, ok := cs.overrides[key]; ok {
		delete(cs.overrides, key)
		cs.notify(Event{Kind: "setting", Key: key})
	}
}

// DropOverrideSilently removes a selection entry without an event; used by
// persistence when a value fails coercion and is reverted.
func (cs *ConfigState) DropOverrideSilently(key string) {
	delete(cs.overrides, key)
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
