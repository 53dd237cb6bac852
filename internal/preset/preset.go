// Package preset saves and restores named configuration snapshots under the
// resource repository's configs/ directory. Presets are written as JSON and
// read back in JSON, YAML, or TOML.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/adamancini/clasp/internal/session"
	"github.com/adamancini/clasp/internal/types"
)

// Listing limits. A configs/ directory is user-authored content; cap how
// much of it one listing will read.
const (
	MaxFiles    = 100
	MaxFileSize = 256 * 1024
)

// Preset is a named snapshot of a complete selection.
type Preset struct {
	Slug        string
	Name        string
	Description string
	CreatedAt   string
	Profile     string
	Resources   map[types.Category][]string
	Settings    map[string]any
}

// Issue is one problem found when checking a preset against the catalog.
type Issue struct {
	Domain  string
	Key     string
	Message string
}

// SkipKey identifies one preset entry to leave unapplied during load.
type SkipKey struct {
	Domain string // category name, "profile", or "settings"
	Key    string
}

// Dir returns the configs directory under a repository root.
func Dir(repoRoot string) string {
	return filepath.Join(repoRoot, "configs")
}

var presetExtensions = map[string]bool{
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
}

// List returns the valid presets under the repository's configs/ directory,
// sorted by display name. Symlinks, oversized files, and files that fail
// strict parsing are skipped; a missing configs/ directory yields an empty
// list.
func List(repoRoot string) []Preset {
	entries, err := os.ReadDir(Dir(repoRoot))
	if err != nil {
		return nil
	}

	var presets []Preset
	count := 0
	for _, entry := range entries {
		if count >= MaxFiles {
			break
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if entry.IsDir() || !presetExtensions[ext] {
			continue
		}
		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() > MaxFileSize {
			continue
		}
		count++

		path := filepath.Join(Dir(repoRoot), name)
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		slug := strings.TrimSuffix(name, ext)
		p, err := parse(slug, content, detectFormat(path, content))
		if err != nil {
			continue
		}
		presets = append(presets, *p)
	}

	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets
}

// Validate checks a preset against what the session actually offers. Each
// unknown profile, resource, or setting key yields one Issue; an empty
// result means the preset loads cleanly.
func Validate(p *Preset, cs *session.ConfigState) []Issue {
	var issues []Issue

	if p.Profile != "" {
		known := false
		for _, profile := range cs.Profiles() {
			if profile.Name == p.Profile {
				known = true
				break
			}
		}
		if !known {
			issues = append(issues, Issue{
				Domain:  "profile",
				Key:     p.Profile,
				Message: fmt.Sprintf("unknown profile: %s", p.Profile),
			})
		}
	}

	for _, cat := range types.AllCategories() {
		available := map[string]bool{}
		for _, r := range cs.Available(cat) {
			available[r.Name] = true
		}
		for _, name := range p.Resources[cat] {
			if !available[name] {
				issues = append(issues, Issue{
					Domain:  cat.String(),
					Key:     name,
					Message: fmt.Sprintf("not available: %s", name),
				})
			}
		}
	}

	knownKeys := map[string]bool{}
	for _, def := range cs.SettingDefs() {
		knownKeys[def.Key] = true
	}
	for key := range p.Settings {
		if !knownKeys[key] {
			issues = append(issues, Issue{
				Domain:  "settings",
				Key:     key,
				Message: fmt.Sprintf("unknown setting: %s", key),
			})
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Domain != issues[j].Domain {
			return issues[i].Domain < issues[j].Domain
		}
		return issues[i].Key < issues[j].Key
	})
	return issues
}

// LoadInto replaces the session's selections with the preset's, leaving out
// any entry named in skip. Selections are replaced wholesale, not merged.
func LoadInto(p *Preset, cs *session.ConfigState, skip map[SkipKey]bool) {
	if !skip[SkipKey{Domain: "profile", Key: p.Profile}] {
		cs.SelectProfile(p.Profile)
	}

	for _, cat := range types.AllCategories() {
		for name := range cs.Selected(cat) {
			cs.Deselect(cat, name)
		}
		for _, name := range p.Resources[cat] {
			if !skip[SkipKey{Domain: cat.String(), Key: name}] {
				cs.Select(cat, name)
			}
		}
	}

	for key := range cs.Overrides() {
		cs.ClearOverride(key)
	}
	for key, value := range p.Settings {
		if !skip[SkipKey{Domain: "settings", Key: key}] {
			cs.SetOverride(key, value)
		}
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a display name into a filesystem-safe slug. Fails when
// nothing survives sanitization.
func Slugify(name string) (string, error) {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "", fmt.Errorf("cannot derive a slug from %q", name)
	}
	return slug, nil
}

// savedPreset is the JSON shape Save writes.
type savedPreset struct {
	Meta     rawMeta        `json:"meta"`
	Profile  string         `json:"profile"`
	Commands []string       `json:"commands"`
	Agents   []string       `json:"agents"`
	Skills   []string       `json:"skills"`
	Plugins  []string       `json:"plugins"`
	MCPs     []string       `json:"mcps"`
	Hooks    []string       `json:"hooks"`
	Settings map[string]any `json:"settings"`
}

// Save snapshots the session's current selections as a named preset and
// returns the written path. The write goes through a temp file and rename;
// an existing symlink at the target is refused.
func Save(repoRoot, name, description string, cs *session.ConfigState) (string, error) {
	slug, err := Slugify(name)
	if err != nil {
		return "", err
	}
	configsDir := Dir(repoRoot)
	if err := os.MkdirAll(configsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create configs directory: %w", err)
	}

	target := filepath.Join(configsDir, slug+".json")
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("refusing to overwrite symlink: %s", target)
	}

	doc := savedPreset{
		Meta: rawMeta{
			Name:        name,
			Description: description,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		},
		Profile:  cs.Profile(),
		Commands: selectedNames(cs, types.CategoryCommand),
		Agents:   selectedNames(cs, types.CategoryAgent),
		Skills:   selectedNames(cs, types.CategorySkill),
		Plugins:  selectedNames(cs, types.CategoryPlugin),
		MCPs:     selectedNames(cs, types.CategoryMCP),
		Hooks:    selectedNames(cs, types.CategoryHook),
		Settings: cs.Overrides(),
	}

	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(configsDir, "."+slug+".tmp")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(content, '\n')); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	return target, nil
}

func selectedNames(cs *session.ConfigState, cat types.Category) []string {
	selected := cs.Selected(cat)
	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
