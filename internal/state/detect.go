package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/adamancini/clasp/internal/catalog"
	"github.com/adamancini/clasp/internal/schema"
	"github.com/adamancini/clasp/internal/sentinel"
	"github.com/adamancini/clasp/internal/types"
)

// NoteBlock is the CLAUDE.md sentinel block owned by clasp for project notes
// and directive lines.
const NoteBlock = "PROJECT_NOTES"

// directivePrefix marks a settings directive inside the note block,
// e.g. "set effortLevel: low".
const directivePrefix = "set "

// Detector inspects a project directory against a resource repository. Both
// roots are explicit configuration so sessions and tests can run against
// different trees concurrently.
type Detector struct {
	catalog    *catalog.Catalog
	projectDir string
}

// NewDetector creates a Detector for a project directory.
func NewDetector(cat *catalog.Catalog, projectDir string) *Detector {
	return &Detector{catalog: cat, projectDir: projectDir}
}

// SettingsPath returns the project settings document path.
func (d *Detector) SettingsPath() string {
	return filepath.Join(d.projectDir, ".claude", "settings.json")
}

// Detect produces a snapshot of the project's current configuration state.
// Every sub-detection degrades to an empty result when its source file is
// absent; malformed sources are recorded as warnings. Detect never fails.
func (d *Detector) Detect() *Detected {
	det := &Detected{
		Existing:   make(map[types.Category]map[string]bool),
		Settings:   map[string]any{},
		Directives: map[string]any{},
	}

	settings := d.readJSONDoc(d.SettingsPath(), det)

	det.Profile = d.detectProfile(settings)
	for _, cat := range types.SymlinkCategories() {
		det.Existing[cat] = d.detectResources(cat, det)
	}
	det.Existing[types.CategoryPlugin] = detectPlugins(settings)
	det.Existing[types.CategoryMCP] = d.detectMCPs(det)
	det.Existing[types.CategoryHook] = d.detectHooks(settings)

	for key, value := range settings {
		if !schema.IsStructuralKey(key) {
			det.Settings[key] = value
		}
	}

	d.detectNote(det)
	return det
}

// readJSONDoc reads a JSON object, recording a warning and returning an
// empty document when the file is malformed.
func (d *Detector) readJSONDoc(path string, det *Detected) map[string]any {
	content, err := os.ReadFile(path)
	if err != nil {
		return map[string]any{}
	}
	var doc map[string]any
	if err := json.Unmarshal(content, &doc); err != nil {
		det.Warnings = append(det.Warnings, Warning{
			Source:  path,
			Message: fmt.Sprintf("malformed JSON, treated as absent: %v", err),
		})
		return map[string]any{}
	}
	return doc
}

// detectProfile matches the settings document against each known profile.
// Only the permission payload ($schema plus permissions) identifies a
// profile; the enabled-plugin map, hooks map, and per-key scalar overrides
// are managed separately and stripped before comparison. First match wins;
// no match yields "".
func (d *Detector) detectProfile(settings map[string]any) string {
	stripped := profileIdentity(settings)
	if len(stripped) == 0 {
		return ""
	}
	for _, profile := range d.catalog.Profiles() {
		doc, err := d.catalog.ProfileDocument(profile.Name)
		if err != nil {
			continue
		}
		if reflect.DeepEqual(stripped, profileIdentity(doc)) {
			return profile.Name
		}
	}
	return ""
}

func profileIdentity(doc map[string]any) map[string]any {
	identity := map[string]any{}
	for _, key := range []string{"$schema", "permissions"} {
		if v, ok := doc[key]; ok {
			identity[key] = v
		}
	}
	return identity
}

// detectResources classifies each entry under .claude/<category>/:
// a symlink resolving into the repository's category directory is
// repo-managed; a plain file or directory is local and recorded as
// pre-existing; a symlink resolving anywhere else is excluded entirely.
func (d *Detector) detectResources(cat types.Category, det *Detected) map[string]bool {
	existing := map[string]bool{}
	base := filepath.Join(d.projectDir, ".claude", cat.DirName())
	repoCategory := filepath.Join(d.catalog.RepoRoot(), cat.DirName())

	if cat.MarkerFile() != "" {
		entries, err := os.ReadDir(base)
		if err != nil {
			return existing
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				continue
			}
			path := filepath.Join(base, e.Name())
			d.classify(cat, e.Name(), path, repoCategory, existing, det)
		}
		return existing
	}

	_ = filepath.WalkDir(base, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") && path != base {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !strings.HasSuffix(name, ".md") || name == "CLAUDE.md" || name == "README.md" {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		resName := strings.TrimSuffix(filepath.ToSlash(rel), ".md")
		d.classify(cat, resName, path, repoCategory, existing, det)
		return nil
	})
	return existing
}

func (d *Detector) classify(cat types.Category, name, path, repoCategory string, existing map[string]bool, det *Detected) {
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if catalog.ResolvesInto(path, repoCategory) {
			existing[name] = true
			return
		}
		if _, err := filepath.EvalSymlinks(path); err != nil {
			det.Warnings = append(det.Warnings, Warning{
				Source:  path,
				Message: "broken symlink, excluded from detection",
			})
		}
		// Foreign symlink: excluded entirely, not merely unflagged.
		return
	}

	// Marker-based categories require the marker file for plain directories.
	if marker := cat.MarkerFile(); marker != "" {
		if _, err := os.Stat(filepath.Join(path, marker)); err != nil {
			return
		}
	}
	existing[name] = true
	det.Local = append(det.Local, catalog.Resource{
		Category:   cat,
		Name:       name,
		SourcePath: path,
		IsLocal:    true,
	})
}

// detectMCPs enumerates server names from the project's MCP manifest.
func (d *Detector) detectMCPs(det *Detected) map[string]bool {
	doc := d.readJSONDoc(filepath.Join(d.projectDir, ".mcp.json"), det)
	names := map[string]bool{}
	if servers, ok := doc["mcpServers"].(map[string]any); ok {
		for name := range servers {
			names[name] = true
		}
	}
	return names
}

// detectPlugins enumerates enabled keys from the enabled-plugin map.
func detectPlugins(settings map[string]any) map[string]bool {
	names := map[string]bool{}
	enabled, ok := settings["enabledPlugins"].(map[string]any)
	if !ok {
		return names
	}
	for id, v := range enabled {
		if on, ok := v.(bool); ok && on {
			names[id] = true
		}
	}
	return names
}

// HooksInstallDir returns the directory hook scripts are installed to, the
// value substituted for {HOOKS_DIR} in command templates.
func HooksInstallDir(projectDir string) string {
	return filepath.Join(projectDir, ".claude", "hooks")
}

// detectHooks recovers logical hook names by matching each configured hook
// command against the catalog's command templates after placeholder
// substitution. A basename match is the fallback, so hooks installed from
// another checkout path still detect. Unmatched commands simply do not
// appear as existing.
func (d *Detector) detectHooks(settings map[string]any) map[string]bool {
	names := map[string]bool{}
	hooksObj, ok := settings["hooks"].(map[string]any)
	if !ok || len(hooksObj) == 0 {
		return names
	}

	installDir := HooksInstallDir(d.projectDir)
	byCommand := map[string]string{}
	byBasename := map[string]string{}
	for _, hook := range d.catalog.Hooks() {
		command := strings.ReplaceAll(hook.CommandTemplate, "{HOOKS_DIR}", installDir)
		byCommand[command] = hook.Name
		for _, script := range hook.ScriptFiles {
			byBasename[script] = hook.Name
		}
	}

	for _, rawMatchers := range hooksObj {
		matchers, ok := rawMatchers.([]any)
		if !ok {
			continue
		}
		for _, rawEntry := range matchers {
			entry, ok := rawEntry.(map[string]any)
			if !ok {
				continue
			}
			hookList, ok := entry["hooks"].([]any)
			if !ok {
				continue
			}
			for _, rawHook := range hookList {
				hookDef, ok := rawHook.(map[string]any)
				if !ok {
					continue
				}
				command, _ := hookDef["command"].(string)
				if command == "" {
					continue
				}
				if name, ok := byCommand[command]; ok {
					names[name] = true
					continue
				}
				fields := strings.Fields(command)
				if len(fields) > 0 {
					if name, ok := byBasename[filepath.Base(fields[0])]; ok {
						names[name] = true
					}
				}
			}
		}
	}
	return names
}

// detectNote parses the PROJECT_NOTES sentinel block from CLAUDE.md and
// extracts directive lines of the form "set key: value".
func (d *Detector) detectNote(det *Detected) {
	content, err := os.ReadFile(filepath.Join(d.projectDir, "CLAUDE.md"))
	if err != nil {
		return
	}
	body, ok := sentinel.Extract(content, NoteBlock, sentinel.StyleMarkup)
	if !ok {
		return
	}
	det.Note = body
	det.Directives = ParseDirectives(body)
}

// ParseDirectives extracts settings directives from a note body. Each
// directive is a line "set <key>: <value>"; values are parsed as YAML
// scalars so booleans and numbers come through typed.
func ParseDirectives(body string) map[string]any {
	directives := map[string]any{}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, directivePrefix) {
			continue
		}
		key, rawValue, found := strings.Cut(strings.TrimPrefix(line, directivePrefix), ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		var value any
		if err := yaml.Unmarshal([]byte(strings.TrimSpace(rawValue)), &value); err != nil || value == nil {
			value = strings.TrimSpace(rawValue)
		}
		directives[key] = value
	}
	return directives
}

// DetectUserResources returns the names of resources already provided at
// user scope (~/.claude/<category>/), used for project-scope dedup.
func DetectUserResources(userClaudeDir string, cat types.Category) map[string]bool {
	names := map[string]bool{}
	base := filepath.Join(userClaudeDir, cat.DirName())

	if cat.MarkerFile() != "" {
		entries, err := os.ReadDir(base)
		if err != nil {
			return names
		}
		for _, e := range entries {
			dir := filepath.Join(base, e.Name())
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				continue
			}
			if _, err := os.Stat(filepath.Join(dir, cat.MarkerFile())); err == nil {
				names[e.Name()] = true
			}
		}
		return names
	}

	_ = filepath.WalkDir(base, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".md") || name == "CLAUDE.md" || name == "README.md" {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		names[strings.TrimSuffix(filepath.ToSlash(rel), ".md")] = true
		return nil
	})
	return names
}
