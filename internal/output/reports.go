package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adamancini/clasp/internal/audit"
	"github.com/adamancini/clasp/internal/session"
	"github.com/adamancini/clasp/internal/types"
)

// DiffReport is the serializable form of a pending diff.
type DiffReport struct {
	Profile    *ProfileChange   `json:"profile,omitempty" yaml:"profile,omitempty"`
	Categories []CategoryChange `json:"categories,omitempty" yaml:"categories,omitempty"`
	Settings   []SettingChange  `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// ProfileChange reports a profile switch.
type ProfileChange struct {
	Before string `json:"before" yaml:"before"`
	After  string `json:"after" yaml:"after"`
}

// CategoryChange reports the additions and removals within one category.
type CategoryChange struct {
	Category string   `json:"category" yaml:"category"`
	Add      []string `json:"add,omitempty" yaml:"add,omitempty"`
	Remove   []string `json:"remove,omitempty" yaml:"remove,omitempty"`
}

// SettingChange reports one project-scope settings change.
type SettingChange struct {
	Key         string `json:"key" yaml:"key"`
	Before      any    `json:"before" yaml:"before"`
	BeforeScope string `json:"before_scope,omitempty" yaml:"before_scope,omitempty"`
	After       any    `json:"after" yaml:"after"`
}

// BuildDiffReport converts a session diff into its report form.
func BuildDiffReport(d *session.Diff) *DiffReport {
	report := &DiffReport{}
	if d.Profile != nil {
		report.Profile = &ProfileChange{Before: d.Profile.Before, After: d.Profile.After}
	}
	for _, cat := range types.AllCategories() {
		cd := d.Categories[cat]
		if cd.Empty() {
			continue
		}
		report.Categories = append(report.Categories, CategoryChange{
			Category: cat.String(),
			Add:      cd.ToAdd,
			Remove:   cd.ToRemove,
		})
	}
	for _, sc := range d.Settings {
		scope := ""
		if sc.Before != nil || sc.BeforeScope != "" {
			scope = sc.BeforeScope.String()
		}
		report.Settings = append(report.Settings, SettingChange{
			Key:         sc.Key,
			Before:      sc.Before,
			BeforeScope: scope,
			After:       sc.After,
		})
	}
	return report
}

// Empty reports whether the diff report carries no changes.
func (r *DiffReport) Empty() bool {
	return r.Profile == nil && len(r.Categories) == 0 && len(r.Settings) == 0
}

func (r *DiffReport) String() string {
	if r.Empty() {
		return "No changes. Project matches the current selection."
	}

	var b strings.Builder
	b.WriteString("Pending changes:\n")
	if r.Profile != nil {
		fmt.Fprintf(&b, "\n  profile: %s -> %s\n", orNone(r.Profile.Before), orNone(r.Profile.After))
	}
	for _, cc := range r.Categories {
		fmt.Fprintf(&b, "\n  %s:\n", cc.Category)
		for _, name := range cc.Add {
			fmt.Fprintf(&b, "    + %s\n", name)
		}
		for _, name := range cc.Remove {
			fmt.Fprintf(&b, "    - %s\n", name)
		}
	}
	if len(r.Settings) > 0 {
		b.WriteString("\n  settings:\n")
		for _, sc := range r.Settings {
			switch {
			case sc.After == nil:
				fmt.Fprintf(&b, "    - %s (was %v)\n", sc.Key, sc.Before)
			case sc.Before == nil && sc.BeforeScope == "":
				fmt.Fprintf(&b, "    + %s = %v\n", sc.Key, sc.After)
			default:
				fmt.Fprintf(&b, "    ~ %s: %v (%s) -> %v\n", sc.Key, sc.Before, sc.BeforeScope, sc.After)
			}
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// StatusReport summarizes the detected state of a project.
type StatusReport struct {
	Project    string           `json:"project" yaml:"project"`
	Repository string           `json:"repository" yaml:"repository"`
	Profile    string           `json:"profile" yaml:"profile"`
	Categories []CategoryStatus `json:"categories" yaml:"categories"`
	Warnings   []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// CategoryStatus is the per-category portion of a status report.
type CategoryStatus struct {
	Category  string   `json:"category" yaml:"category"`
	Available int      `json:"available" yaml:"available"`
	Existing  []string `json:"existing,omitempty" yaml:"existing,omitempty"`
}

// BuildStatusReport summarizes the session's detected state.
func BuildStatusReport(cs *session.ConfigState) *StatusReport {
	report := &StatusReport{
		Project:    cs.ProjectDir(),
		Repository: cs.Catalog().RepoRoot(),
		Profile:    cs.DetectedProfile(),
	}
	for _, cat := range types.AllCategories() {
		existing := cs.Existing(cat)
		names := make([]string, 0, len(existing))
		for name := range existing {
			names = append(names, name)
		}
		sort.Strings(names)
		report.Categories = append(report.Categories, CategoryStatus{
			Category:  cat.String(),
			Available: len(cs.Available(cat)),
			Existing:  names,
		})
	}
	for _, warning := range cs.Warnings() {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", warning.Source, warning.Message))
	}
	return report
}

func (r *StatusReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project:    %s\n", r.Project)
	fmt.Fprintf(&b, "Repository: %s\n", r.Repository)
	fmt.Fprintf(&b, "Profile:    %s\n", orNone(r.Profile))
	for _, cs := range r.Categories {
		fmt.Fprintf(&b, "\n%s (%d/%d):\n", cs.Category, len(cs.Existing), cs.Available)
		for _, name := range cs.Existing {
			fmt.Fprintf(&b, "  %s\n", name)
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, warning := range r.Warnings {
			fmt.Fprintf(&b, "  ! %s\n", warning)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// EffectiveReport lists every known setting with its winning value and the
// scope that supplied it.
type EffectiveReport struct {
	Settings []EffectiveEntry `json:"settings" yaml:"settings"`
}

// EffectiveEntry is one resolved setting.
type EffectiveEntry struct {
	Key    string `json:"key" yaml:"key"`
	Value  any    `json:"value" yaml:"value"`
	Origin string `json:"origin" yaml:"origin"`
}

// BuildEffectiveReport resolves every known setting through the scope chain.
func BuildEffectiveReport(cs *session.ConfigState) *EffectiveReport {
	report := &EffectiveReport{}
	for _, es := range cs.EffectiveSettings() {
		report.Settings = append(report.Settings, EffectiveEntry{
			Key:    es.Key,
			Value:  es.Value,
			Origin: es.Origin.String(),
		})
	}
	return report
}

func (r *EffectiveReport) String() string {
	if len(r.Settings) == 0 {
		return "No settings resolved."
	}
	var b strings.Builder
	for _, entry := range r.Settings {
		fmt.Fprintf(&b, "%-36s %-14v [%s]\n", entry.Key, entry.Value, entry.Origin)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// AuditReport wraps audit warnings for formatted output.
type AuditReport struct {
	Warnings []audit.Warning `json:"warnings" yaml:"warnings"`
}

func (r *AuditReport) String() string {
	if len(r.Warnings) == 0 {
		return "No cross-scope problems found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d finding(s):\n", len(r.Warnings))
	for _, warning := range r.Warnings {
		fmt.Fprintf(&b, "  [%s] %s\n", warning.Kind, warning.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
