// Package types provides type-safe constants for the clasp configuration system.
//
// This package centralizes the enumerated types used throughout the codebase,
// replacing magic strings with typed constants that provide compile-time safety
// and validation methods.
package types

import (
	"fmt"
	"strings"
)

// Category represents a reconciled resource category.
type Category string

const (
	// CategoryCommand is a slash command (.md file, nested folders allowed).
	CategoryCommand Category = "command"
	// CategorySkill is a skill directory carrying a SKILL.md marker.
	CategorySkill Category = "skill"
	// CategoryAgent is an agent definition (.md file, nested folders allowed).
	CategoryAgent Category = "agent"
	// CategoryPlugin is an entry in the enabled-plugin map.
	CategoryPlugin Category = "plugin"
	// CategoryMCP is a server in the MCP manifest.
	CategoryMCP Category = "mcp"
	// CategoryHook is a hook command wired into the hooks map.
	CategoryHook Category = "hook"
)

// AllCategories returns every category in a stable order.
func AllCategories() []Category {
	return []Category{
		CategoryCommand, CategorySkill, CategoryAgent,
		CategoryPlugin, CategoryMCP, CategoryHook,
	}
}

// SymlinkCategories returns the categories materialized as entries under
// the project's .claude/ tree (symlinks into the repo, or local files).
func SymlinkCategories() []Category {
	return []Category{CategoryCommand, CategorySkill, CategoryAgent}
}

// Validate checks if the Category is a valid value.
func (c Category) Validate() error {
	switch c {
	case CategoryCommand, CategorySkill, CategoryAgent,
		CategoryPlugin, CategoryMCP, CategoryHook:
		return nil
	case "":
		return fmt.Errorf("category is required")
	default:
		return fmt.Errorf("invalid category '%s' (must be command, skill, agent, plugin, mcp, or hook)", c)
	}
}

// String returns the string representation of the Category.
func (c Category) String() string {
	return string(c)
}

// DirName returns the directory name used for this category in both the
// resource repository and the project's .claude/ tree.
func (c Category) DirName() string {
	switch c {
	case CategoryCommand:
		return "commands"
	case CategorySkill:
		return "skills"
	case CategoryAgent:
		return "agents"
	case CategoryPlugin:
		return "plugins"
	case CategoryMCP:
		return "mcps"
	case CategoryHook:
		return "hooks"
	}
	return string(c)
}

// Recursive reports whether the category's repo directory is walked
// recursively (nested folders become part of the resource name).
func (c Category) Recursive() bool {
	return c == CategoryCommand || c == CategoryAgent
}

// MarkerFile returns the marker file that identifies a resource directory
// for marker-based categories, or "" for file-based ones.
func (c Category) MarkerFile() string {
	if c == CategorySkill {
		return "SKILL.md"
	}
	return ""
}

// IsSymlinked reports whether resources of this category are materialized
// as filesystem entries (rather than settings-document entries).
func (c Category) IsSymlinked() bool {
	return c == CategoryCommand || c == CategorySkill || c == CategoryAgent
}

// ParseCategory parses a string into a Category. Accepts both the singular
// constant form and the directory-name plural.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if err := c.Validate(); err == nil {
		return c, nil
	}
	for _, known := range AllCategories() {
		if known.DirName() == strings.ToLower(s) {
			return known, nil
		}
	}
	return "", fmt.Errorf("invalid category '%s'", s)
}

// Scope represents one source in the settings precedence chain.
type Scope string

const (
	// ScopeEnterprise is the machine-wide managed settings document.
	ScopeEnterprise Scope = "enterprise"
	// ScopeProject covers the project settings file and its local override.
	ScopeProject Scope = "project"
	// ScopeUser is the user's global settings file.
	ScopeUser Scope = "user"
	// ScopeDirective is a value set by a CLAUDE.md directive line.
	ScopeDirective Scope = "directive"
	// ScopeDefault is the schema-supplied built-in default.
	ScopeDefault Scope = "default"
)

// ScopePrecedence returns the scopes from highest to lowest precedence.
// The order is fixed and non-configurable.
func ScopePrecedence() []Scope {
	return []Scope{ScopeEnterprise, ScopeProject, ScopeUser, ScopeDirective, ScopeDefault}
}

// Validate checks if the Scope is a valid value.
func (s Scope) Validate() error {
	switch s {
	case ScopeEnterprise, ScopeProject, ScopeUser, ScopeDirective, ScopeDefault:
		return nil
	case "":
		return fmt.Errorf("scope is required")
	default:
		return fmt.Errorf("invalid scope '%s'", s)
	}
}

// String returns the string representation of the Scope.
func (s Scope) String() string {
	return string(s)
}

// Outranks reports whether s takes precedence over other.
func (s Scope) Outranks(other Scope) bool {
	rank := func(sc Scope) int {
		for i, known := range ScopePrecedence() {
			if sc == known {
				return i
			}
		}
		return len(ScopePrecedence())
	}
	return rank(s) < rank(other)
}
