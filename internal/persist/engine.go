// Package persist commits a computed diff to the filesystem through a
// staged-write/validate/commit protocol.
//
// Each apply is a linear state machine: PREPARE re-derives the diff from the
// live ConfigState, STAGE renders every changed artifact into a temporary
// directory, VALIDATE re-parses the staged documents, and COMMIT replaces
// each target file atomically. Rollback (discard staging, finals untouched)
// is possible from STAGE and VALIDATE; the set of COMMIT replacements is not
// one transaction, so a mid-commit failure is reported as a partial commit
// and converges on re-run.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adamancini/clasp/internal/backup"
	"github.com/adamancini/clasp/internal/catalog"
	"github.com/adamancini/clasp/internal/git"
	"github.com/adamancini/clasp/internal/sentinel"
	"github.com/adamancini/clasp/internal/session"
	"github.com/adamancini/clasp/internal/templates"
	"github.com/adamancini/clasp/internal/types"
)

// Phase identifies where an apply invocation currently is.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePrepare
	PhaseStage
	PhaseValidate
	PhaseCommit
	PhaseRollback
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePrepare:
		return "prepare"
	case PhaseStage:
		return "stage"
	case PhaseValidate:
		return "validate"
	case PhaseCommit:
		return "commit"
	case PhaseRollback:
		return "rollback"
	}
	return "unknown"
}

// Result reports what an apply did.
type Result struct {
	// Diff is the freshly computed diff the apply acted on.
	Diff *session.Diff
	// Changed lists the project-relative paths created, replaced, or removed.
	Changed []string
	// Warnings are non-fatal problems (coercion reverts, backup failures).
	Warnings []string
	// CommitErrors are per-artifact failures during COMMIT; other artifacts
	// in the same commit may still have succeeded.
	CommitErrors []error
	// Partial is set when some but not all COMMIT replacements succeeded.
	Partial bool
}

// Engine applies diffs to one project directory.
type Engine struct {
	projectDir string
	backups    *backup.Manager
	gitChecker *git.Checker
	phase      Phase
}

// New creates an Engine for a project directory.
func New(projectDir string) *Engine {
	return &Engine{projectDir: projectDir}
}

// WithBackups enables pre-commit snapshots of the files COMMIT replaces.
func (e *Engine) WithBackups(m *backup.Manager) *Engine {
	e.backups = m
	return e
}

// WithGit enables git awareness (the .gitignore block is only managed
// inside a work tree).
func (e *Engine) WithGit(c *git.Checker) *Engine {
	e.gitChecker = c
	return e
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() Phase { return e.phase }

// stagedArtifacts tracks what STAGE produced, for COMMIT to move into place.
type stagedArtifacts struct {
	settingsPath string // staged settings.json, "" when unchanged
	mcpPath      string // staged .mcp.json, "" when unchanged
	links        map[types.Category][]stagedLink
	hookScripts  []string // staged script paths
	toolsBody    string
	patchTools   bool
}

type stagedLink struct {
	name   string
	staged string
}

// Apply re-derives the diff from cs and commits it. An unchanged selection
// yields an empty diff and performs no filesystem work at all.
func (e *Engine) Apply(cs *session.ConfigState) (*Result, error) {
	e.phase = PhasePrepare
	defer func() { e.phase = PhaseIdle }()

	// Never trust a diff computed earlier in the session.
	d := cs.Diff()
	res := &Result{Diff: d}
	if d.Empty() {
		return res, nil
	}

	claudeDir := filepath.Join(e.projectDir, ".claude")
	stagingDir := filepath.Join(claudeDir, ".tmp")
	if err := os.RemoveAll(stagingDir); err != nil {
		return res, fmt.Errorf("failed to clear staging directory: %w", err)
	}

	e.phase = PhaseStage
	staged, err := e.stage(cs, d, stagingDir, res)
	if err != nil {
		e.phase = PhaseRollback
		_ = os.RemoveAll(stagingDir)
		return res, err
	}

	e.phase = PhaseValidate
	if err := e.validate(stagingDir); err != nil {
		e.phase = PhaseRollback
		_ = os.RemoveAll(stagingDir)
		return res, err
	}

	e.phase = PhaseCommit
	e.commit(cs, d, staged, res)
	_ = os.RemoveAll(stagingDir)

	if len(res.CommitErrors) > 0 {
		res.Partial = true
		return res, &PartialCommitError{Errors: res.CommitErrors}
	}
	return res, nil
}

// stage renders every changed artifact into the staging directory without
// touching any final path.
func (e *Engine) stage(cs *session.ConfigState, d *session.Diff, stagingDir string, res *Result) (*stagedArtifacts, error) {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	staged := &stagedArtifacts{links: make(map[types.Category][]stagedLink)}

	settingsChanged := d.Profile != nil || len(d.Settings) > 0 ||
		!d.Categories[types.CategoryPlugin].Empty() ||
		!d.Categories[types.CategoryHook].Empty()
	if settingsChanged {
		doc, warnings := buildSettingsDoc(cs)
		res.Warnings = append(res.Warnings, warnings...)
		staged.settingsPath = filepath.Join(stagingDir, "settings.json")
		if err := writeJSON(staged.settingsPath, doc); err != nil {
			return nil, err
		}
	}

	if !d.Categories[types.CategoryMCP].Empty() {
		staged.mcpPath = filepath.Join(stagingDir, "mcp.json")
		if err := writeJSON(staged.mcpPath, buildMCPDoc(cs)); err != nil {
			return nil, err
		}
	}

	for _, cat := range types.SymlinkCategories() {
		for _, name := range d.Categories[cat].ToAdd {
			resource, ok := findResource(cs.Available(cat), name)
			if !ok || resource.IsLocal {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s %s: not available in the repository, skipped", cat, name))
				continue
			}
			linkPath := filepath.Join(stagingDir, cat.DirName(), linkName(cat, name))
			if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
				return nil, fmt.Errorf("failed to stage %s %s: %w", cat, name, err)
			}
			if err := os.Symlink(resource.SourcePath, linkPath); err != nil {
				return nil, fmt.Errorf("failed to stage %s %s: %w", cat, name, err)
			}
			staged.links[cat] = append(staged.links[cat], stagedLink{name: name, staged: linkPath})
		}
	}

	if !d.Categories[types.CategoryHook].Empty() {
		scripts, err := e.stageHookScripts(cs, stagingDir)
		if err != nil {
			return nil, err
		}
		staged.hookScripts = scripts
	}

	staged.patchTools = true
	staged.toolsBody = buildToolsBody(cs)

	return staged, nil
}

// stageHookScripts copies the scripts of every selected hook into staging
// and marks them executable.
func (e *Engine) stageHookScripts(cs *session.ConfigState, stagingDir string) ([]string, error) {
	hooksStaging := filepath.Join(stagingDir, "hooks")
	if err := os.MkdirAll(hooksStaging, 0o755); err != nil {
		return nil, err
	}

	selected := cs.EffectiveSelection(types.CategoryHook)
	var scripts []string
	for _, hook := range cs.AvailableHooks() {
		if !selected[hook.Name] {
			continue
		}
		srcDir := cs.Catalog().HookDir(hook.Name)
		for _, script := range hook.ScriptFiles {
			src := filepath.Join(srcDir, script)
			dst := filepath.Join(hooksStaging, script)
			content, err := os.ReadFile(src)
			if err != nil {
				return nil, fmt.Errorf("failed to stage hook script %s: %w", script, err)
			}
			if err := os.WriteFile(dst, content, 0o755); err != nil {
				return nil, fmt.Errorf("failed to stage hook script %s: %w", script, err)
			}
			scripts = append(scripts, dst)
		}
	}
	return scripts, nil
}

// validate re-parses every staged document and rejects broken staged
// symlinks. Any failure means rollback: staging is discarded by the caller
// and no final file has been touched.
func (e *Engine) validate(stagingDir string) error {
	return filepath.WalkDir(stagingDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return &ValidationError{Path: stagingDir, Err: err}
		}
		if entry.Type()&os.ModeSymlink != 0 {
			if _, err := filepath.EvalSymlinks(path); err != nil {
				return &ValidationError{Path: path, Err: fmt.Errorf("broken staged symlink")}
			}
			return nil
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return &ValidationError{Path: path, Err: err}
		}
		var doc map[string]any
		if err := json.Unmarshal(content, &doc); err != nil {
			return &ValidationError{Path: path, Err: err}
		}
		if entry.Name() == "mcp.json" {
			if _, ok := doc["mcpServers"].(map[string]any); !ok {
				return &ValidationError{Path: path, Err: fmt.Errorf("missing required key mcpServers")}
			}
		}
		return nil
	})
}

// commit moves staged artifacts into place. Each single-file replace is
// atomic; the set of replaces is not one transaction. Failures are collected
// per artifact so independent artifacts can still succeed.
func (e *Engine) commit(cs *session.ConfigState, d *session.Diff, staged *stagedArtifacts, res *Result) {
	claudeDir := filepath.Join(e.projectDir, ".claude")

	e.snapshotTargets(staged, res)

	fail := func(err error) {
		res.CommitErrors = append(res.CommitErrors, err)
	}
	changed := func(rel string) {
		res.Changed = append(res.Changed, rel)
	}

	if staged.settingsPath != "" {
		final := filepath.Join(claudeDir, "settings.json")
		if err := renameInto(staged.settingsPath, final); err != nil {
			fail(fmt.Errorf("settings.json: %w", err))
		} else {
			changed(".claude/settings.json")
		}
	}

	if staged.mcpPath != "" {
		final := filepath.Join(e.projectDir, ".mcp.json")
		if err := renameInto(staged.mcpPath, final); err != nil {
			fail(fmt.Errorf(".mcp.json: %w", err))
		} else {
			changed(".mcp.json")
		}
	}

	for _, cat := range types.SymlinkCategories() {
		categoryRoot := filepath.Join(claudeDir, cat.DirName())

		for _, link := range staged.links[cat] {
			dest := filepath.Join(categoryRoot, linkName(cat, link.name))
			if err := replaceEntry(link.staged, dest); err != nil {
				fail(fmt.Errorf("%s %s: %w", cat, link.name, err))
				continue
			}
			changed(relPath(e.projectDir, dest))
		}

		for _, name := range d.Categories[cat].ToRemove {
			dest := filepath.Join(categoryRoot, linkName(cat, name))
			if err := removeEntry(dest); err != nil {
				fail(fmt.Errorf("%s %s: %w", cat, name, err))
				continue
			}
			changed(relPath(e.projectDir, dest))
			pruneEmptyParents(categoryRoot, filepath.Dir(dest))
		}
	}

	e.commitHookScripts(cs, d, staged, res)

	if staged.patchTools {
		if err := e.patchHostDocument(
			filepath.Join(e.projectDir, "CLAUDE.md"), templates.ClaudeMD,
			ToolsBlock, staged.toolsBody, sentinel.StyleMarkup,
		); err != nil {
			fail(fmt.Errorf("CLAUDE.md: %w", err))
		} else {
			changed("CLAUDE.md")
		}
	}

	e.commitGitignore(res)
}

// snapshotTargets backs up the files COMMIT is about to replace. Snapshot
// failure degrades to a warning; it never blocks the commit.
func (e *Engine) snapshotTargets(staged *stagedArtifacts, res *Result) {
	if e.backups == nil {
		return
	}
	var rels []string
	if staged.settingsPath != "" {
		rels = append(rels, ".claude/settings.json")
	}
	if staged.mcpPath != "" {
		rels = append(rels, ".mcp.json")
	}
	rels = append(rels, "CLAUDE.md", ".gitignore")
	if _, err := e.backups.Create(e.projectDir, rels, "pre-apply"); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("backup skipped: %v", err))
	}
}

// commitHookScripts installs scripts for selected hooks and removes the
// scripts belonging to deselected ones.
func (e *Engine) commitHookScripts(cs *session.ConfigState, d *session.Diff, staged *stagedArtifacts, res *Result) {
	hooksDir := filepath.Join(e.projectDir, ".claude", "hooks")

	for _, script := range staged.hookScripts {
		dest := filepath.Join(hooksDir, filepath.Base(script))
		if err := replaceEntry(script, dest); err != nil {
			res.CommitErrors = append(res.CommitErrors, fmt.Errorf("hook script %s: %w", filepath.Base(script), err))
			continue
		}
		res.Changed = append(res.Changed, relPath(e.projectDir, dest))
	}

	removed := map[string]bool{}
	for _, name := range d.Categories[types.CategoryHook].ToRemove {
		removed[name] = true
	}
	if len(removed) == 0 {
		return
	}
	for _, hook := range cs.AvailableHooks() {
		if !removed[hook.Name] {
			continue
		}
		for _, script := range hook.ScriptFiles {
			path := filepath.Join(hooksDir, script)
			if err := removeEntry(path); err != nil {
				res.CommitErrors = append(res.CommitErrors, fmt.Errorf("hook script %s: %w", script, err))
				continue
			}
			res.Changed = append(res.Changed, relPath(e.projectDir, path))
		}
	}
}

// commitGitignore maintains the .gitignore sentinel block. Outside a git
// work tree the block is only managed when a .gitignore already exists.
func (e *Engine) commitGitignore(res *Result) {
	path := filepath.Join(e.projectDir, ".gitignore")
	_, statErr := os.Lstat(path)
	inWorkTree := e.gitChecker != nil && e.gitChecker.IsWorkTree(e.projectDir)
	if statErr != nil && !inWorkTree {
		return
	}
	if err := e.patchHostDocument(path, templates.Gitignore, GitignoreBlock, gitignoreBody(), sentinel.StyleLine); err != nil {
		res.CommitErrors = append(res.CommitErrors, fmt.Errorf(".gitignore: %w", err))
		return
	}
	res.Changed = append(res.Changed, ".gitignore")
}

// patchHostDocument replaces one sentinel block in a host document, leaving
// every byte outside the markers untouched, and writes the result through a
// temp file + rename. A document that does not exist is created whole from
// its skeleton; an existing document without the marker pair fails with
// *sentinel.MissingError.
func (e *Engine) patchHostDocument(path, skeleton, block, body string, style sentinel.Style) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		content, err = templates.Get(skeleton)
		if err != nil {
			return err
		}
	}

	patched, err := sentinel.Patch(content, block, body, style)
	if err != nil {
		return err
	}
	if string(patched) == string(content) {
		// Only possible when the file already existed with this exact body.
		if _, statErr := os.Lstat(path); statErr == nil {
			return nil
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(patched); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// linkName returns the on-disk entry name for a resource: <name>.md for
// file categories, the bare name for directory categories.
func linkName(cat types.Category, name string) string {
	if cat.MarkerFile() != "" {
		return filepath.FromSlash(name)
	}
	return filepath.FromSlash(name) + ".md"
}

func findResource(resources []catalog.Resource, name string) (catalog.Resource, bool) {
	for _, r := range resources {
		if r.Name == name {
			return r, true
		}
	}
	return catalog.Resource{}, false
}

func relPath(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func writeJSON(path string, doc map[string]any) error {
	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(content, '\n'), 0o644)
}

// renameInto moves a staged file over its final path, creating parents.
func renameInto(staged, final string) error {
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return err
	}
	return os.Rename(staged, final)
}

// replaceEntry moves a staged entry (file or symlink) over its destination,
// removing whatever occupied the path first.
func replaceEntry(staged, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if _, err := os.Lstat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return err
		}
	}
	return os.Rename(staged, dest)
}

// removeEntry deletes an artifact: a symlink is unlinked, a local file or
// directory is removed recursively. A missing path is not an error.
func removeEntry(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return os.Remove(path)
	}
	return os.RemoveAll(path)
}

// pruneEmptyParents removes now-empty directories from dir up to, but not
// including, root.
func pruneEmptyParents(root, dir string) {
	for {
		if dir == root || len(dir) <= len(root) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
