// Package state detects the project's current on-disk configuration state.
package state

import (
	"github.com/adamancini/clasp/internal/catalog"
	"github.com/adamancini/clasp/internal/types"
)

// Warning records a non-fatal detection problem. Malformed source files are
// surfaced here and then treated as absent; detection never fails on them.
type Warning struct {
	Source  string `json:"source" yaml:"source"`
	Message string `json:"message" yaml:"message"`
}

// Detected is a snapshot of what is already materialized in the project.
type Detected struct {
	// Profile is the name of the matching permission profile, or "" when no
	// profile matches the current settings document.
	Profile string

	// Existing holds, per category, the names of materialized resources:
	// repo-managed symlinks and locally-authored entries. Foreign symlinks
	// are excluded entirely.
	Existing map[types.Category]map[string]bool

	// Local lists the locally-authored resources (plain files/directories)
	// found during detection, in walk order.
	Local []catalog.Resource

	// Settings holds the project settings document's scalar keys, excluding
	// structurally-managed ones.
	Settings map[string]any

	// Note is the body of the PROJECT_NOTES sentinel block in CLAUDE.md.
	Note string

	// Directives holds settings values declared by directive lines inside
	// the project note block.
	Directives map[string]any

	Warnings []Warning
}

// ExistingNames returns the existing-name set for a category, never nil.
func (d *Detected) ExistingNames(cat types.Category) map[string]bool {
	if set, ok := d.Existing[cat]; ok {
		return set
	}
	return map[string]bool{}
}
