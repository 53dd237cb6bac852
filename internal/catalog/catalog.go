// Package catalog discovers available resources from the central resource
// repository and the project's local overrides.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adamancini/clasp/internal/types"
)

// Resource is a single discoverable item in a category. Immutable once
// produced by a scan.
type Resource struct {
	Category   types.Category `json:"category" yaml:"category"`
	Name       string         `json:"name" yaml:"name"`
	SourcePath string         `json:"source_path" yaml:"source_path"`
	Folder     string         `json:"folder,omitempty" yaml:"folder,omitempty"`
	IsLocal    bool           `json:"local,omitempty" yaml:"local,omitempty"`
}

// Profile is a permission profile discovered from profiles/*.json.
type Profile struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Path        string `json:"path" yaml:"path"`
}

// Plugin is a plugin listed in the repository's registry.
type Plugin struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// MCP is an MCP server definition from mcps/<name>/config.json.
type MCP struct {
	Name        string         `json:"name" yaml:"name"`
	Config      map[string]any `json:"config" yaml:"config"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Binary      string         `json:"binary,omitempty" yaml:"binary,omitempty"`
	BinaryFound bool           `json:"binary_found" yaml:"binary_found"`
}

// Hook is a hook definition from hooks/available/<name>/hook.json.
type Hook struct {
	Name            string   `json:"name" yaml:"name"`
	Event           string   `json:"event" yaml:"event"`
	Matcher         string   `json:"matcher,omitempty" yaml:"matcher,omitempty"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	CommandTemplate string   `json:"command_template" yaml:"command_template"`
	ScriptFiles     []string `json:"script_files,omitempty" yaml:"script_files,omitempty"`
}

// RepositoryNotFoundError indicates the resource repository root is missing.
// Missing per-category subdirectories are not an error; only the root is.
type RepositoryNotFoundError struct {
	Path string
}

func (e *RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("resource repository not found: %s", e.Path)
}

// Catalog scans a resource repository rooted at a fixed path. The root is
// passed in explicitly so multiple sessions can run against different repos.
type Catalog struct {
	repoRoot string
}

// New creates a Catalog for the given repository root. Returns
// *RepositoryNotFoundError if the root directory does not exist.
func New(repoRoot string) (*Catalog, error) {
	info, err := os.Stat(repoRoot)
	if err != nil || !info.IsDir() {
		return nil, &RepositoryNotFoundError{Path: repoRoot}
	}
	return &Catalog{repoRoot: repoRoot}, nil
}

// RepoRoot returns the repository root this catalog scans.
func (c *Catalog) RepoRoot() string {
	return c.repoRoot
}

// CategoryRoot returns the repository directory for a category.
func (c *Catalog) CategoryRoot(cat types.Category) string {
	if cat == types.CategoryHook {
		return filepath.Join(c.repoRoot, cat.DirName(), "available")
	}
	return filepath.Join(c.repoRoot, cat.DirName())
}

// Scan returns the ordered, deduplicated resource list for a symlink-based
// category: the repository's entries in scan order, with the project's local
// entries prepended. A local entry shadows a repo entry of the same name.
// projectDir may be empty to skip the local overlay.
func (c *Catalog) Scan(cat types.Category, projectDir string) ([]Resource, error) {
	if !cat.IsSymlinked() {
		return nil, fmt.Errorf("category %s is not file-materialized", cat)
	}
	repo := c.scanRepo(cat)
	if projectDir == "" {
		return repo, nil
	}

	local := c.scanLocal(cat, projectDir)
	if len(local) == 0 {
		return repo, nil
	}

	// Dedup: local wins and is ordered first; repo order otherwise preserved.
	shadowed := make(map[string]bool, len(local))
	for _, r := range local {
		shadowed[r.Name] = true
	}
	merged := make([]Resource, 0, len(local)+len(repo))
	merged = append(merged, local...)
	for _, r := range repo {
		if !shadowed[r.Name] {
			merged = append(merged, r)
		}
	}
	return merged, nil
}

// scanRepo walks the repository's category root. Missing directories yield
// an empty slice, never an error.
func (c *Catalog) scanRepo(cat types.Category) []Resource {
	base := filepath.Join(c.repoRoot, cat.DirName())
	if cat.MarkerFile() != "" {
		return scanMarkerDirs(base, cat, false)
	}
	return scanMarkdownTree(base, cat, false)
}

// scanLocal walks the project's category directory and returns entries that
// are not symlinks resolving into the repository. Plain files, directories,
// and symlinks pointing elsewhere all count as local.
func (c *Catalog) scanLocal(cat types.Category, projectDir string) []Resource {
	base := filepath.Join(projectDir, ".claude", cat.DirName())
	var all []Resource
	if cat.MarkerFile() != "" {
		all = scanMarkerDirs(base, cat, true)
	} else {
		all = scanMarkdownTree(base, cat, true)
	}
	repoCategory := filepath.Join(c.repoRoot, cat.DirName())
	var local []Resource
	for _, r := range all {
		if ResolvesInto(r.SourcePath, repoCategory) {
			continue // repo-managed symlink, already in the repo scan
		}
		local = append(local, r)
	}
	return local
}

// skippedNames are files never treated as resources.
var skippedNames = map[string]bool{
	"CLAUDE.md": true,
	"README.md": true,
}

// scanMarkdownTree collects *.md files recursively under base. The resource
// name is the slash-separated relative path without the .md suffix.
func scanMarkdownTree(base string, cat types.Category, local bool) []Resource {
	var result []Resource
	_ = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree: skip, never fail the scan
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != base {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(name, ".md") || skippedNames[name] {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		result = append(result, Resource{
			Category:   cat,
			Name:       strings.TrimSuffix(rel, ".md"),
			SourcePath: path,
			Folder:     folderOf(rel),
			IsLocal:    local,
		})
		return nil
	})
	return result
}

// scanMarkerDirs collects top-level directories under base that carry the
// category's marker file. Non-marker directories are ignored.
func scanMarkerDirs(base string, cat types.Category, local bool) []Resource {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil
	}
	var result []Resource
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(base, e.Name())
		info, err := os.Stat(dir) // follows symlinks
		if err != nil || !info.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, cat.MarkerFile())); err != nil {
			continue
		}
		result = append(result, Resource{
			Category:   cat,
			Name:       e.Name(),
			SourcePath: dir,
			IsLocal:    local,
		})
	}
	return result
}

func folderOf(rel string) string {
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		return rel[:i]
	}
	return ""
}

// ResolvesInto reports whether path is a symlink whose fully resolved target
// lives under root. A plain file, a directory, a broken symlink, or a symlink
// pointing elsewhere all report false.
func ResolvesInto(path, root string) bool {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return false
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false // broken symlink
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolvedRoot = root
	}
	rel, err := filepath.Rel(resolvedRoot, target)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
